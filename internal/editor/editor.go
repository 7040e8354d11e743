// Package editor holds open record-editing forms. A form is an explicit
// tagged state (open-for-new or open-for-edit) with local field values
// that recompute the lead score on every relevant change. Nothing touches
// the network until a form passes local validation and is submitted.
package editor

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/observability"
)

// State tags what an open form is editing.
type State string

const (
	// StateNew is a blank form for a record that does not exist yet.
	StateNew State = "new"
	// StateEdit is a form prefilled from an existing record.
	StateEdit State = "edit"
)

var (
	// ErrFormNotFound is returned for unknown or expired form ids.
	ErrFormNotFound = errors.New("editor form not found or expired")
	// ErrDerivedField rejects direct writes to the lead score.
	ErrDerivedField = errors.New("lead_score is derived from the other fields and cannot be set")
	// ErrUnknownField rejects writes to fields the editor does not manage.
	ErrUnknownField = errors.New("unknown editor field")
)

// Fields is the editable form state. VehicleYear stays raw text until
// submit, when it is coerced to an integer.
type Fields struct {
	CustomerName   string       `json:"customer_name"`
	CallbackNumber string       `json:"callback_number"`
	Product        string       `json:"product"`
	VehicleYear    string       `json:"vehicle_year"`
	CarMake        string       `json:"car_make"`
	CarModel       string       `json:"car_model"`
	ZipCode        string       `json:"zip_code"`
	Status         domain.Status `json:"status"`
	AgentName      string       `json:"agent_name"`
	FollowUpDate   *domain.Date `json:"follow_up_date"`
	Comments       string       `json:"comments"`
}

// ValidationErrors maps field names to inline error messages.
type ValidationErrors map[string]string

// Form is one open editor instance. Field access is serialized; each form
// belongs to the operator who opened it.
type Form struct {
	ID       string
	State    State
	RecordID int
	OpenedBy string

	mu        sync.Mutex
	fields    Fields
	leadScore float64
	year      int
}

// Store keeps open forms with a TTL so abandoned ones expire.
type Store struct {
	forms  *cache.Cache
	agents []string
	yearFn func() int
}

// NewStore builds a Store. agents is the roster offered for new records; the
// first entry is the default assignment.
func NewStore(ttl time.Duration, agents []string) *Store {
	forms := cache.New(ttl, ttl)
	forms.OnEvicted(func(string, interface{}) {
		observability.EditorFormClosed()
	})
	return &Store{
		forms:  forms,
		agents: agents,
		yearFn: func() int { return time.Now().Year() },
	}
}

// OpenNew opens a blank form with the default disposition and agent.
func (s *Store) OpenNew(operator string) *Form {
	form := &Form{
		ID:       uuid.NewString(),
		State:    StateNew,
		OpenedBy: operator,
		year:     s.yearFn(),
		fields:   Fields{Status: domain.StatusPending},
	}
	if len(s.agents) > 0 {
		form.fields.AgentName = s.agents[0]
	}
	form.leadScore = form.recompute()
	s.track(form)
	return form
}

// OpenEdit opens a form prefilled from an existing record. The stored lead
// score is discarded; the form re-derives it from the field values.
func (s *Store) OpenEdit(operator string, record domain.CallbackRecord) *Form {
	fields := Fields{
		CustomerName:   record.CustomerName,
		CallbackNumber: record.CallbackNumber,
		Product:        record.Product,
		CarMake:        record.CarMake,
		CarModel:       record.CarModel,
		ZipCode:        record.ZipCode,
		Status:         record.Status,
		AgentName:      record.AgentName,
		Comments:       record.Comments,
	}
	if record.VehicleYear > 0 {
		fields.VehicleYear = strconv.Itoa(record.VehicleYear)
	}
	if record.FollowUpDate != nil && !record.FollowUpDate.IsZero() {
		date := *record.FollowUpDate
		fields.FollowUpDate = &date
	}

	form := &Form{
		ID:       uuid.NewString(),
		State:    StateEdit,
		RecordID: record.ID,
		OpenedBy: operator,
		year:     s.yearFn(),
		fields:   fields,
	}
	form.leadScore = form.recompute()
	s.track(form)
	return form
}

// Get resolves an open form by id.
func (s *Store) Get(id string) (*Form, error) {
	entry, ok := s.forms.Get(id)
	if !ok {
		return nil, ErrFormNotFound
	}
	return entry.(*Form), nil
}

// Close discards a form, on submit success or cancel.
func (s *Store) Close(id string) error {
	if _, ok := s.forms.Get(id); !ok {
		return ErrFormNotFound
	}
	s.forms.Delete(id)
	return nil
}

func (s *Store) track(form *Form) {
	s.forms.Set(form.ID, form, cache.DefaultExpiration)
	observability.EditorFormOpened()
}

// SetField writes one field and returns the recomputed lead score. The
// score itself is rejected as a target: it is derived, never input.
func (f *Form) SetField(name, value string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch name {
	case "customer_name":
		f.fields.CustomerName = value
	case "callback_number":
		f.fields.CallbackNumber = value
	case "product":
		f.fields.Product = value
	case "vehicle_year":
		f.fields.VehicleYear = strings.TrimSpace(value)
	case "car_make":
		f.fields.CarMake = value
	case "car_model":
		f.fields.CarModel = value
	case "zip_code":
		f.fields.ZipCode = value
	case "agent_name":
		f.fields.AgentName = value
	case "comments":
		f.fields.Comments = value
	case "status":
		status := domain.Status(value)
		if !status.Valid() {
			return f.leadScore, errors.New("unknown status " + strconv.Quote(value))
		}
		f.fields.Status = status
	case "follow_up_date":
		if strings.TrimSpace(value) == "" {
			f.fields.FollowUpDate = nil
			break
		}
		date, err := domain.ParseDate(value)
		if err != nil {
			return f.leadScore, err
		}
		f.fields.FollowUpDate = &date
	case "lead_score":
		return f.leadScore, ErrDerivedField
	default:
		return f.leadScore, ErrUnknownField
	}

	f.leadScore = f.recompute()
	return f.leadScore, nil
}

// Fields returns a copy of the current field values.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// LeadScore returns the current derived score.
func (f *Form) LeadScore() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leadScore
}

// Submit validates the form locally and builds the upstream draft. A
// non-empty ValidationErrors means the submit failed before any network
// call: the form stays open with inline field errors. On success the phone
// number is normalized for display, the vehicle year coerced, the follow-up
// date serialized, and the operator stamped as last_modified_by.
func (f *Form) Submit(operator string) (*domain.CallbackDraft, ValidationErrors) {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := ValidationErrors{}
	if strings.TrimSpace(f.fields.CustomerName) == "" {
		errs["customer_name"] = "customer name is required"
	}
	if strings.TrimSpace(f.fields.CallbackNumber) == "" {
		errs["callback_number"] = "callback number is required"
	}

	vehicleYear := 0
	if f.fields.VehicleYear != "" {
		parsed, err := strconv.Atoi(f.fields.VehicleYear)
		if err != nil {
			errs["vehicle_year"] = "vehicle year must be a number"
		} else {
			vehicleYear = parsed
		}
	}
	if !f.fields.Status.Valid() {
		errs["status"] = "unknown status"
	}
	if len(errs) > 0 {
		return nil, errs
	}

	draft := &domain.CallbackDraft{
		CustomerName:   strings.TrimSpace(f.fields.CustomerName),
		CallbackNumber: domain.FormatPhone(f.fields.CallbackNumber),
		Product:        f.fields.Product,
		VehicleYear:    vehicleYear,
		CarMake:        f.fields.CarMake,
		CarModel:       f.fields.CarModel,
		ZipCode:        f.fields.ZipCode,
		Status:         f.fields.Status,
		AgentName:      f.fields.AgentName,
		FollowUpDate:   f.fields.FollowUpDate,
		LeadScore:      f.recompute(),
		Comments:       f.fields.Comments,
		LastModifiedBy: operator,
	}
	return draft, nil
}

func (f *Form) recompute() float64 {
	year, _ := strconv.Atoi(f.fields.VehicleYear)
	return domain.ComputeLeadScoreAt(domain.LeadScoreInputs{
		Product:         f.fields.Product,
		CarMake:         f.fields.CarMake,
		CarModel:        f.fields.CarModel,
		ZipCode:         f.fields.ZipCode,
		VehicleYear:     year,
		Status:          f.fields.Status,
		HasFollowUpDate: f.fields.FollowUpDate != nil && !f.fields.FollowUpDate.IsZero(),
		Comments:        f.fields.Comments,
	}, f.year)
}
