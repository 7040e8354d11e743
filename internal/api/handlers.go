// Package api exposes the console's HTTP handlers: auth flows, the callback
// list and detail views, editor form sessions, claim/unclaim, and the
// activity timeline.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/auth"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/editor"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/listview"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/observability"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/session"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/upstream"
)

// DefaultActivityLimit caps timeline fetches when the client does not ask
// for a specific window.
const DefaultActivityLimit = 50

// Handler coordinates HTTP requests with the session manager, the editor
// store, and the upstream CRM client.
type Handler struct {
	sessions *session.Manager
	client   *upstream.Client
	editor   *editor.Store
	agents   []string
}

// NewHandler builds a Handler.
func NewHandler(sessions *session.Manager, client *upstream.Client, editorStore *editor.Store, agents []string) *Handler {
	return &Handler{sessions: sessions, client: client, editor: editorStore, agents: agents}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/console/login", h.login)
	mux.HandleFunc("/console/signup", h.signup)
	mux.HandleFunc("/console/logout", h.logout)
	mux.HandleFunc("/console/me", h.me)
	mux.HandleFunc("/console/callbacks", h.callbacks)
	mux.HandleFunc("/console/callbacks/", h.callbackSubtree)
	mux.HandleFunc("/console/editor", h.openEditor)
	mux.HandleFunc("/console/editor/", h.editorSubtree)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- auth ---

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "email and password are required")
		return
	}

	user, err := h.sessions.Login(r.Context(), w, r, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "incorrect email or password")
			return
		}
		h.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req upstream.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "username, email and password are required")
		return
	}

	user, err := h.sessions.Signup(r.Context(), w, r, req)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.sessions.Logout(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	op, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := h.client.CurrentUser(r.Context(), op.Token)
		if err != nil {
			h.upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserView(user))
	case http.MethodPut:
		var update upstream.ProfileUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		user, err := h.sessions.UpdateProfile(r.Context(), w, r, update)
		if err != nil {
			h.upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserView(user))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// --- callback list ---

func (h *Handler) callbacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	op, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	query := listview.NewQuery()
	params := r.URL.Query()

	if column := params.Get("sort"); column != "" {
		dir := listview.DirectionAscending
		if raw := params.Get("dir"); raw != "" {
			parsed, err := listview.ParseDirection(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
				return
			}
			dir = parsed
		}
		if err := query.SetSort(column, dir); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
	}

	if term := params.Get("search"); term != "" {
		if err := query.SetSearch(term); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
	} else {
		filters, err := filtersFromParams(params.Get("follow_up_date_start"), params.Get("follow_up_date_end"), params.Get("status"), params.Get("agent_name"))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		query.ApplyFilters(filters)
	}

	var records []domain.CallbackRecord
	var err error
	if query.Mode() == listview.ModeSearch {
		records, err = h.client.SearchCallbacks(r.Context(), op.Token, query.SearchTerm())
	} else {
		records, err = h.client.ListCallbacks(r.Context(), op.Token, query.Filters().Upstream())
	}
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	records = query.Apply(records)
	items := make([]CallbackView, 0, len(records))
	for _, record := range records {
		items = append(items, toCallbackView(record))
	}

	column, dir := query.Sort()
	writeJSON(w, http.StatusOK, ListCallbacksResponse{
		Items:   items,
		Summary: listview.Summarize(records, time.Now()),
		Mode:    string(query.Mode()),
		Sort:    SortView{Column: column, Direction: string(dir)},
	})
}

func filtersFromParams(start, end, status, agentName string) (listview.Filters, error) {
	filters := listview.Filters{Status: status, AgentName: agentName}
	if status != "" && status != listview.AllOption && !domain.Status(status).Valid() {
		return listview.Filters{}, errors.New("unknown status filter " + strconv.Quote(status))
	}
	if start != "" {
		parsed, err := domain.ParseDate(start)
		if err != nil {
			return listview.Filters{}, err
		}
		filters.FollowUpDateStart = &parsed
	}
	if end != "" {
		parsed, err := domain.ParseDate(end)
		if err != nil {
			return listview.Filters{}, err
		}
		filters.FollowUpDateEnd = &parsed
	}
	return filters, nil
}

// --- callback detail, claim, timeline ---

func (h *Handler) callbackSubtree(w http.ResponseWriter, r *http.Request) {
	op, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/console/callbacks/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.Atoi(idPart)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid callback id")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getCallback(w, r, op, id)
		case http.MethodDelete:
			h.deleteCallback(w, r, op, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case "claim":
		h.claim(w, r, op, id, true)
	case "unclaim":
		h.claim(w, r, op, id, false)
	case "view":
		h.recordView(w, r, op, id)
	case "activities":
		h.activities(w, r, op, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) getCallback(w http.ResponseWriter, r *http.Request, op *session.Operator, id int) {
	// Passing the viewer id makes the backend append a view activity.
	record, err := h.client.GetCallback(r.Context(), op.Token, id, op.UserID)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallbackView(*record))
}

func (h *Handler) deleteCallback(w http.ResponseWriter, r *http.Request, op *session.Operator, id int) {
	if err := h.client.DeleteCallback(r.Context(), op.Token, id); err != nil {
		h.upstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// claim handles both claim and unclaim. State never flips optimistically:
// the current record is checked first, the action posted, and the response
// body is a fresh re-fetch.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, op *session.Operator, id int, claiming bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	record, err := h.client.GetCallback(r.Context(), op.Token, id, "")
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	if claiming {
		if record.Claimed() {
			writeError(w, http.StatusConflict, "already_claimed", "callback is already claimed")
			return
		}
		err = h.client.Claim(r.Context(), op.Token, id, op.UserID)
	} else {
		switch {
		case !record.Claimed():
			writeError(w, http.StatusConflict, "not_claimed", "callback is not claimed")
			return
		case record.ClaimedBy != op.UserID:
			writeError(w, http.StatusConflict, "claimed_by_other", "callback is claimed by another agent")
			return
		}
		err = h.client.Unclaim(r.Context(), op.Token, id, op.UserID)
	}
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	refreshed, err := h.client.GetCallback(r.Context(), op.Token, id, "")
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallbackView(*refreshed))
}

func (h *Handler) recordView(w http.ResponseWriter, r *http.Request, op *session.Operator, id int) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	entry, err := h.client.RecordView(r.Context(), op.Token, id, op.UserID)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimelineEntry(*entry))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request, op *session.Operator, id int) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	limit := DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.client.ListActivities(r.Context(), op.Token, id, limit)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	domain.SortActivities(entries)
	items := make([]TimelineEntry, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toTimelineEntry(entry))
	}
	writeJSON(w, http.StatusOK, TimelineResponse{CallbackID: id, Items: items})
}

// --- editor ---

func (h *Handler) openEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	op, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	// An empty body opens a blank form; anything else must parse.
	var req OpenEditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	var form *editor.Form
	if req.RecordID > 0 {
		record, err := h.client.GetCallback(r.Context(), op.Token, req.RecordID, "")
		if err != nil {
			h.upstreamError(w, r, err)
			return
		}
		form = h.editor.OpenEdit(op.UserID, *record)
	} else {
		form = h.editor.OpenNew(op.UserID)
	}
	writeJSON(w, http.StatusCreated, h.toFormView(form))
}

func (h *Handler) editorSubtree(w http.ResponseWriter, r *http.Request) {
	op, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/console/editor/")
	formID, action, _ := strings.Cut(rest, "/")
	if formID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing form id")
		return
	}

	form, err := h.editor.Get(formID)
	if err != nil {
		writeError(w, http.StatusNotFound, "form_not_found", "editor form not found or expired")
		return
	}
	if form.OpenedBy != op.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "form belongs to another operator")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodPatch:
		h.setEditorField(w, r, form)
		return
	case action == "" && r.Method == http.MethodDelete:
		_ = h.editor.Close(form.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, h.toFormView(form))
		return
	case action == "submit" && r.Method == http.MethodPost:
		h.submitEditor(w, r, op, form)
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
}

func (h *Handler) setEditorField(w http.ResponseWriter, r *http.Request, form *editor.Form) {
	var req SetFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	score, err := form.SetField(req.Field, req.Value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LeadScoreResponse{LeadScore: score})
}

func (h *Handler) submitEditor(w http.ResponseWriter, r *http.Request, op *session.Operator, form *editor.Form) {
	draft, validationErrors := form.Submit(op.Username)
	if len(validationErrors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Type:   "validation_failed",
			Errors: validationErrors,
		})
		return
	}

	var record *domain.CallbackRecord
	var err error
	if form.State == editor.StateEdit {
		record, err = h.client.UpdateCallback(r.Context(), op.Token, form.RecordID, *draft)
	} else {
		record, err = h.client.CreateCallback(r.Context(), op.Token, *draft)
	}
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	_ = h.editor.Close(form.ID)
	status := http.StatusOK
	if form.State == editor.StateNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCallbackView(*record))
}

// upstreamError maps client failures onto the console's error taxonomy. A
// 401 from any endpoint clears the session before answering.
func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		h.sessions.Clear(w, r)
		observability.RecordForcedLogout()
		writeError(w, http.StatusUnauthorized, "session_expired", "the backend rejected the session, log in again")
	case errors.Is(err, upstream.ErrNotFound):
		// The wrapped error names the operation that came up empty.
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, "upstream_error", apiErr.Detail)
	default:
		writeError(w, http.StatusBadGateway, "upstream_unreachable", err.Error())
	}
}

// --- request/response types ---

// LoginRequest carries console login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the operator identity returned by auth endpoints.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// CallbackView decorates a record with display-ready derivations.
type CallbackView struct {
	domain.CallbackRecord
	PhoneDisplay string `json:"phone_display"`
	Vehicle      string `json:"vehicle,omitempty"`
}

// SortView reports the sort state the response was ordered by.
type SortView struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// ListCallbacksResponse packages the list with its dashboard summary.
type ListCallbacksResponse struct {
	Items   []CallbackView   `json:"items"`
	Summary listview.Summary `json:"summary"`
	Mode    string           `json:"mode"`
	Sort    SortView         `json:"sort"`
}

// TimelineEntry is one activity with parsed field changes attached.
type TimelineEntry struct {
	domain.ActivityEntry
	Changes []domain.FieldChange `json:"changes,omitempty"`
}

// TimelineResponse is the activity history for one callback, newest first.
type TimelineResponse struct {
	CallbackID int             `json:"callback_id"`
	Items      []TimelineEntry `json:"items"`
}

// OpenEditorRequest opens a blank form, or an edit form when record_id is set.
type OpenEditorRequest struct {
	RecordID int `json:"record_id"`
}

// SetFieldRequest writes one editor field.
type SetFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// LeadScoreResponse returns the score re-derived after a field change.
type LeadScoreResponse struct {
	LeadScore float64 `json:"lead_score"`
}

// ValidationErrorResponse carries inline field errors from a failed submit.
type ValidationErrorResponse struct {
	Type   string                  `json:"type"`
	Errors editor.ValidationErrors `json:"errors"`
}

// FormView is the full editor form state returned to the UI.
type FormView struct {
	FormID    string          `json:"form_id"`
	State     string          `json:"state"`
	RecordID  int             `json:"record_id,omitempty"`
	Fields    editor.Fields   `json:"fields"`
	LeadScore float64         `json:"lead_score"`
	Agents    []string        `json:"agents"`
	Statuses  []domain.Status `json:"statuses"`
}

func (h *Handler) toFormView(form *editor.Form) FormView {
	return FormView{
		FormID:    form.ID,
		State:     string(form.State),
		RecordID:  form.RecordID,
		Fields:    form.Fields(),
		LeadScore: form.LeadScore(),
		Agents:    h.agents,
		Statuses:  domain.Statuses,
	}
}

func toUserView(user *upstream.User) UserView {
	return UserView{ID: user.ID, Username: user.Username, Email: user.Email}
}

func toCallbackView(record domain.CallbackRecord) CallbackView {
	return CallbackView{
		CallbackRecord: record,
		PhoneDisplay:   domain.FormatPhone(record.CallbackNumber),
		Vehicle:        record.Vehicle(),
	}
}

func toTimelineEntry(entry domain.ActivityEntry) TimelineEntry {
	return TimelineEntry{ActivityEntry: entry, Changes: entry.Changes()}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
