// Package upstream is the typed client for the CRM backend REST API. The
// backend owns all records and the activity log; the console only consumes
// this contract with the operator's bearer token attached per call.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/observability"
)

var (
	// ErrUnauthorized is returned for any 401 from the backend; callers must
	// treat it as a global forced logout.
	ErrUnauthorized = errors.New("upstream rejected credentials")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("upstream resource not found")
)

// APIError carries the backend's error detail for non-401/404 failures.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the CRM backend.
type Client struct {
	rc *resty.Client
}

// New builds a Client for the given API base URL, e.g. "http://host:8000/api/v1".
func New(baseURL string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc}
}

// HTTPClient exposes the underlying transport client so tests can intercept it.
func (c *Client) HTTPClient() *http.Client {
	return c.rc.GetClient()
}

// Filters mirrors the query parameters GET /callbacks accepts.
type Filters struct {
	FollowUpDateStart string
	FollowUpDateEnd   string
	Status            string
	AgentName         string
}

func (f Filters) params() map[string]string {
	params := map[string]string{}
	if f.FollowUpDateStart != "" {
		params["follow_up_date_start"] = f.FollowUpDateStart
	}
	if f.FollowUpDateEnd != "" {
		params["follow_up_date_end"] = f.FollowUpDateEnd
	}
	if f.Status != "" {
		params["status"] = f.Status
	}
	if f.AgentName != "" {
		params["agent_name"] = f.AgentName
	}
	return params
}

// TokenResponse is the bearer token issued by POST /auth/login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the operator identity the backend manages.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupRequest creates a new operator account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the editable /users/me fields.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// ListCallbacks fetches callback records with optional filters applied server-side.
func (c *Client) ListCallbacks(ctx context.Context, token string, filters Filters) ([]domain.CallbackRecord, error) {
	var out []domain.CallbackRecord
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(filters.params()).
		SetResult(&out).
		Get("/callbacks")
	if err := c.finish("list_callbacks", resp, err, started); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCallback fetches a single record. A non-empty viewerID is forwarded so
// the backend logs a view activity for the timeline.
func (c *Client) GetCallback(ctx context.Context, token string, id int, viewerID string) (*domain.CallbackRecord, error) {
	var out domain.CallbackRecord
	req := c.rc.R().SetContext(ctx).SetAuthToken(token).SetResult(&out)
	if viewerID != "" {
		req.SetQueryParam("user_id", viewerID)
	}
	started := time.Now()
	resp, err := req.Get("/callbacks/" + strconv.Itoa(id))
	if err := c.finish("get_callback", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCallback creates a record and returns it with the server-assigned id.
func (c *Client) CreateCallback(ctx context.Context, token string, draft domain.CallbackDraft) (*domain.CallbackRecord, error) {
	var out domain.CallbackRecord
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(draft).
		SetResult(&out).
		Post("/callbacks")
	if err := c.finish("create_callback", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCallback replaces the editable fields of an existing record.
func (c *Client) UpdateCallback(ctx context.Context, token string, id int, draft domain.CallbackDraft) (*domain.CallbackRecord, error) {
	var out domain.CallbackRecord
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(draft).
		SetResult(&out).
		Put("/callbacks/" + strconv.Itoa(id))
	if err := c.finish("update_callback", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCallback removes a record.
func (c *Client) DeleteCallback(ctx context.Context, token string, id int) error {
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete("/callbacks/" + strconv.Itoa(id))
	return c.finish("delete_callback", resp, err, started)
}

// SearchCallbacks runs a free-text search across customer name, vehicle,
// phone number and comments.
func (c *Client) SearchCallbacks(ctx context.Context, token, query string) ([]domain.CallbackRecord, error) {
	var out []domain.CallbackRecord
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("query", query).
		SetResult(&out).
		Get("/callbacks/search")
	if err := c.finish("search_callbacks", resp, err, started); err != nil {
		return nil, err
	}
	return out, nil
}

// Claim marks the record as owned by the given user. The backend records the
// claim activity; callers re-fetch rather than flipping state locally.
func (c *Client) Claim(ctx context.Context, token string, id int, userID string) error {
	return c.claimCall(ctx, token, id, userID, "claim")
}

// Unclaim releases a previously claimed record.
func (c *Client) Unclaim(ctx context.Context, token string, id int, userID string) error {
	return c.claimCall(ctx, token, id, userID, "unclaim")
}

func (c *Client) claimCall(ctx context.Context, token string, id int, userID, action string) error {
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"user_id": userID}).
		Post(fmt.Sprintf("/callbacks/%d/%s", id, action))
	return c.finish(action+"_callback", resp, err, started)
}

// ListActivities fetches the audit timeline for a callback, newest first.
func (c *Client) ListActivities(ctx context.Context, token string, callbackID, limit int) ([]domain.ActivityEntry, error) {
	var out []domain.ActivityEntry
	req := c.rc.R().SetContext(ctx).SetAuthToken(token).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	started := time.Now()
	resp, err := req.Get("/activities/" + strconv.Itoa(callbackID))
	if err := c.finish("list_activities", resp, err, started); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordView logs a view activity for the callback on behalf of the user.
func (c *Client) RecordView(ctx context.Context, token string, callbackID int, userID string) (*domain.ActivityEntry, error) {
	var out domain.ActivityEntry
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("user_id", userID).
		SetResult(&out).
		Post(fmt.Sprintf("/activities/%d/view", callbackID))
	if err := c.finish("record_view", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token. The auth endpoint expects
// OAuth2-style form encoding with the email in the username field.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out TokenResponse
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": email,
			"password": password,
		}).
		SetResult(&out).
		Post("/auth/login")
	if err := c.finish("login", resp, err, started); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &APIError{StatusCode: resp.StatusCode(), Detail: "login response missing access_token"}
	}
	return out.AccessToken, nil
}

// Signup registers a new operator account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	var out User
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/auth/signup")
	if err := c.finish("signup", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser fetches the identity the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var out User
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/users/me")
	if err := c.finish("current_user", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile updates the operator's own account fields.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	var out User
	started := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(update).
		SetResult(&out).
		Put("/users/me")
	if err := c.finish("update_profile", resp, err, started); err != nil {
		return nil, err
	}
	return &out, nil
}

// finish folds transport errors and HTTP status handling into the sentinel
// error taxonomy and records the call metrics.
func (c *Client) finish(operation string, resp *resty.Response, err error, started time.Time) error {
	elapsed := time.Since(started)
	switch {
	case err != nil:
		observability.RecordUpstreamRequest(operation, "transport_error", elapsed)
		return fmt.Errorf("%s: %w", operation, err)
	case resp.StatusCode() == http.StatusUnauthorized:
		observability.RecordUpstreamRequest(operation, "unauthorized", elapsed)
		return ErrUnauthorized
	case resp.StatusCode() == http.StatusNotFound:
		observability.RecordUpstreamRequest(operation, "not_found", elapsed)
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	case resp.IsError():
		observability.RecordUpstreamRequest(operation, "error", elapsed)
		return &APIError{StatusCode: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}
	observability.RecordUpstreamRequest(operation, "success", elapsed)
	return nil
}

// errorDetail extracts the "detail" message FastAPI-style backends put in
// error bodies, falling back to the raw body.
func errorDetail(body []byte) string {
	var wrapper struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Detail) > 0 {
		var asString string
		if err := json.Unmarshal(wrapper.Detail, &asString); err == nil {
			return asString
		}
		return string(wrapper.Detail)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "no error detail provided"
	}
	return trimmed
}
