// Package listview models the callback list: filters, free-text search, and
// client-side column sorting. Filtering and searching are mutually exclusive
// modes; activating one resets the other.
package listview

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/upstream"
)

// Mode tags which of the two fetch modes the list is in.
type Mode string

const (
	ModeFilter Mode = "filter"
	ModeSearch Mode = "search"
)

// AllOption is the filter value meaning "do not filter on this field".
const AllOption = "All"

// MinSearchLength is the shortest query that activates search mode.
const MinSearchLength = 3

// ErrSearchTooShort is returned when a search term is under MinSearchLength.
var ErrSearchTooShort = fmt.Errorf("search requires at least %d characters", MinSearchLength)

// Direction is the tri-state sort order for a column.
type Direction string

const (
	DirectionAscending  Direction = "asc"
	DirectionDescending Direction = "desc"
	DirectionNone       Direction = "none"
)

// ParseDirection validates a direction string from the request.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionAscending, DirectionDescending, DirectionNone:
		return Direction(raw), nil
	default:
		return "", errors.New("sort direction must be asc, desc or none")
	}
}

// Sortable column identifiers, matching the record's wire field names.
const (
	ColumnCustomerName   = "customer_name"
	ColumnCallbackNumber = "callback_number"
	ColumnProduct        = "product"
	ColumnVehicleYear    = "vehicle_year"
	ColumnFollowUpDate   = "follow_up_date"
	ColumnStatus         = "status"
	ColumnAgentName      = "agent_name"
	ColumnLeadScore      = "lead_score"
	ColumnLastModified   = "last_modified"
)

// ValidColumn reports whether the column can be sorted on.
func ValidColumn(column string) bool {
	switch column {
	case ColumnCustomerName, ColumnCallbackNumber, ColumnProduct, ColumnVehicleYear,
		ColumnFollowUpDate, ColumnStatus, ColumnAgentName, ColumnLeadScore, ColumnLastModified:
		return true
	}
	return false
}

// Filters holds the list filter set. Status and AgentName use AllOption (or
// empty) to mean unfiltered; the date bounds are inclusive.
type Filters struct {
	FollowUpDateStart *domain.Date
	FollowUpDateEnd   *domain.Date
	Status            string
	AgentName         string
}

// Upstream converts the filter set to the backend's query parameters,
// dropping "All"/empty selections.
func (f Filters) Upstream() upstream.Filters {
	out := upstream.Filters{}
	if f.FollowUpDateStart != nil && !f.FollowUpDateStart.IsZero() {
		out.FollowUpDateStart = f.FollowUpDateStart.String()
	}
	if f.FollowUpDateEnd != nil && !f.FollowUpDateEnd.IsZero() {
		out.FollowUpDateEnd = f.FollowUpDateEnd.String()
	}
	if f.Status != "" && f.Status != AllOption {
		out.Status = f.Status
	}
	if f.AgentName != "" && f.AgentName != AllOption {
		out.AgentName = f.AgentName
	}
	return out
}

// Query is the full list view state: mode, filters or search term, and sort.
type Query struct {
	mode    Mode
	filters Filters
	search  string
	sortCol string
	sortDir Direction
}

// NewQuery starts in filter mode with no filters and the default sort,
// follow-up date ascending.
func NewQuery() *Query {
	return &Query{
		mode:    ModeFilter,
		sortCol: ColumnFollowUpDate,
		sortDir: DirectionAscending,
	}
}

// Mode reports the active fetch mode.
func (q *Query) Mode() Mode { return q.mode }

// SearchTerm reports the active search term, empty outside search mode.
func (q *Query) SearchTerm() string { return q.search }

// Filters reports the active filter set.
func (q *Query) Filters() Filters { return q.filters }

// ApplyFilters switches to filter mode, cancelling any active search.
func (q *Query) ApplyFilters(filters Filters) {
	q.mode = ModeFilter
	q.search = ""
	q.filters = filters
}

// SetSearch activates search mode with the given term, resetting filters.
// Terms under MinSearchLength are rejected and leave the query untouched.
func (q *Query) SetSearch(term string) error {
	term = strings.TrimSpace(term)
	if len(term) < MinSearchLength {
		return ErrSearchTooShort
	}
	q.mode = ModeSearch
	q.filters = Filters{}
	q.search = term
	return nil
}

// ClearSearch leaves search mode and returns to an unfiltered list.
func (q *Query) ClearSearch() {
	q.mode = ModeFilter
	q.search = ""
}

// SetSort pins the sort state directly, for stateless request handling.
func (q *Query) SetSort(column string, dir Direction) error {
	if !ValidColumn(column) {
		return fmt.Errorf("unknown sort column %q", column)
	}
	q.sortCol = column
	q.sortDir = dir
	return nil
}

// ToggleSort advances the column through asc, desc, none on repeated
// selection; selecting a different column starts it ascending.
func (q *Query) ToggleSort(column string) {
	if !ValidColumn(column) {
		return
	}
	if column != q.sortCol {
		q.sortCol = column
		q.sortDir = DirectionAscending
		return
	}
	switch q.sortDir {
	case DirectionAscending:
		q.sortDir = DirectionDescending
	case DirectionDescending:
		q.sortDir = DirectionNone
	default:
		q.sortDir = DirectionAscending
	}
}

// Sort reports the active sort column and direction.
func (q *Query) Sort() (string, Direction) { return q.sortCol, q.sortDir }

// Apply returns the records ordered per the active sort. The input is not
// mutated; DirectionNone preserves server order. Records without a follow-up
// date always sort last when ordering by that column, keeping their relative
// order among themselves.
func (q *Query) Apply(records []domain.CallbackRecord) []domain.CallbackRecord {
	out := make([]domain.CallbackRecord, len(records))
	copy(out, records)
	if q.sortDir == DirectionNone {
		return out
	}

	less := lessFunc(q.sortCol)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.sortCol == ColumnFollowUpDate {
			aMissing := a.FollowUpDate == nil || a.FollowUpDate.IsZero()
			bMissing := b.FollowUpDate == nil || b.FollowUpDate.IsZero()
			if aMissing != bMissing {
				return bMissing
			}
			if aMissing {
				return false
			}
		}
		if q.sortDir == DirectionDescending {
			a, b = b, a
		}
		return less(a, b)
	})
	return out
}

func lessFunc(column string) func(a, b domain.CallbackRecord) bool {
	switch column {
	case ColumnCallbackNumber:
		return func(a, b domain.CallbackRecord) bool { return a.CallbackNumber < b.CallbackNumber }
	case ColumnProduct:
		return func(a, b domain.CallbackRecord) bool { return foldLess(a.Product, b.Product) }
	case ColumnVehicleYear:
		return func(a, b domain.CallbackRecord) bool { return a.VehicleYear < b.VehicleYear }
	case ColumnFollowUpDate:
		return func(a, b domain.CallbackRecord) bool { return a.FollowUpDate.Before(b.FollowUpDate.Time) }
	case ColumnStatus:
		return func(a, b domain.CallbackRecord) bool { return a.Status < b.Status }
	case ColumnAgentName:
		return func(a, b domain.CallbackRecord) bool { return foldLess(a.AgentName, b.AgentName) }
	case ColumnLeadScore:
		return func(a, b domain.CallbackRecord) bool { return a.LeadScore < b.LeadScore }
	case ColumnLastModified:
		return func(a, b domain.CallbackRecord) bool { return a.LastModified.Before(b.LastModified) }
	default:
		return func(a, b domain.CallbackRecord) bool { return foldLess(a.CustomerName, b.CustomerName) }
	}
}

func foldLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// Summary is the dashboard strip shown above the list.
type Summary struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	DueToday     int `json:"due_today"`
	HighPriority int `json:"high_priority"`
}

// HighPriorityThreshold is the lead score at or above which a callback
// counts as a high-priority lead.
const HighPriorityThreshold = 8.0

// Summarize computes the dashboard counts over the current result set.
func Summarize(records []domain.CallbackRecord, today time.Time) Summary {
	summary := Summary{Total: len(records)}
	y, m, d := today.Date()
	for _, record := range records {
		if record.Status == domain.StatusPending {
			summary.Pending++
		}
		if record.FollowUpDate != nil && !record.FollowUpDate.IsZero() {
			fy, fm, fd := record.FollowUpDate.Date()
			if fy == y && fm == m && fd == d {
				summary.DueToday++
			}
		}
		if record.LeadScore >= HighPriorityThreshold {
			summary.HighPriority++
		}
	}
	return summary
}
