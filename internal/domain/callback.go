// Package domain defines the callback records and pure derivations the console works with.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the disposition of a callback after agent contact.
type Status string

const (
	StatusPending       Status = "Pending"
	StatusSale          Status = "Sale"
	StatusNoAnswer      Status = "No Answer"
	StatusFollowUpLater Status = "Follow-up Later"
	StatusNotInterested Status = "Not Interested"
	StatusWrongNumber   Status = "Wrong Number"
	StatusInvalid       Status = "Invalid"
)

// Statuses lists every valid disposition in display order.
var Statuses = []Status{
	StatusPending,
	StatusSale,
	StatusNoAnswer,
	StatusFollowUpLater,
	StatusNotInterested,
	StatusWrongNumber,
	StatusInvalid,
}

// Valid reports whether s is a known disposition.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// DateLayout is the wire format the CRM backend uses for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day serialized as "2006-01-02" on the wire.
type Date struct {
	time.Time
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Date{Time: t}, nil
}

// String renders the date in wire format.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as a quoted "2006-01-02" string, or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts null, "", or a "2006-01-02" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CallbackRecord is a customer callback as the CRM backend stores it.
// The backend assigns the ID; lead_score is derived client-side and carried
// along on save, never edited directly.
type CallbackRecord struct {
	ID             int       `json:"id"`
	CustomerName   string    `json:"customer_name"`
	CallbackNumber string    `json:"callback_number"`
	Product        string    `json:"product,omitempty"`
	VehicleYear    int       `json:"vehicle_year,omitempty"`
	CarMake        string    `json:"car_make,omitempty"`
	CarModel       string    `json:"car_model,omitempty"`
	ZipCode        string    `json:"zip_code,omitempty"`
	Status         Status    `json:"status"`
	AgentName      string    `json:"agent_name,omitempty"`
	FollowUpDate   *Date     `json:"follow_up_date,omitempty"`
	LeadScore      float64   `json:"lead_score,omitempty"`
	Comments       string    `json:"comments,omitempty"`
	ClaimedBy      string    `json:"claimed_by,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	LastModified   time.Time `json:"last_modified,omitempty"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
}

// CallbackDraft is the editable field set submitted on create and update.
// The editor fills it from validated form state; the backend assigns the id
// and timestamps.
type CallbackDraft struct {
	CustomerName   string  `json:"customer_name"`
	CallbackNumber string  `json:"callback_number"`
	Product        string  `json:"product,omitempty"`
	VehicleYear    int     `json:"vehicle_year,omitempty"`
	CarMake        string  `json:"car_make,omitempty"`
	CarModel       string  `json:"car_model,omitempty"`
	ZipCode        string  `json:"zip_code,omitempty"`
	Status         Status  `json:"status"`
	AgentName      string  `json:"agent_name,omitempty"`
	FollowUpDate   *Date   `json:"follow_up_date,omitempty"`
	LeadScore      float64 `json:"lead_score"`
	Comments       string  `json:"comments,omitempty"`
	LastModifiedBy string  `json:"last_modified_by"`
}

// Claimed reports whether any agent currently owns the record.
func (c CallbackRecord) Claimed() bool {
	return c.ClaimedBy != ""
}

// Vehicle renders the "year make model" display string, empty when no vehicle
// information is present.
func (c CallbackRecord) Vehicle() string {
	parts := make([]string, 0, 3)
	if c.VehicleYear > 0 {
		parts = append(parts, fmt.Sprintf("%d", c.VehicleYear))
	}
	if c.CarMake != "" {
		parts = append(parts, c.CarMake)
	}
	if c.CarModel != "" {
		parts = append(parts, c.CarModel)
	}
	return strings.Join(parts, " ")
}
