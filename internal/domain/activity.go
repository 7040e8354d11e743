package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ActivityType classifies an entry in a callback's audit timeline.
type ActivityType string

const (
	ActivityView         ActivityType = "view"
	ActivityEdit         ActivityType = "edit"
	ActivityStatusChange ActivityType = "status_change"
	ActivityComment      ActivityType = "comment"
	ActivityClaim        ActivityType = "claim"
	ActivityUnclaim      ActivityType = "unclaim"
)

// ActivityUser identifies who performed an activity.
type ActivityUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ActivityEntry is one append-only audit record for a callback. The backend
// owns and persists these; the console only reads them and triggers new ones
// through view/edit/claim/unclaim calls.
type ActivityEntry struct {
	ID            int           `json:"id"`
	CallbackID    int           `json:"callback_id"`
	ActivityType  ActivityType  `json:"activity_type"`
	Description   string        `json:"description,omitempty"`
	PreviousValue string        `json:"previous_value,omitempty"`
	NewValue      string        `json:"new_value,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	User          *ActivityUser `json:"user,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FieldChange is one "field went from old to new" pair extracted from an
// edit or status-change activity.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

var (
	editPrefixPattern   = regexp.MustCompile(`^Updated \d+ fields?: `)
	statusChangePattern = regexp.MustCompile(`^Changed status from "(.*)" to "(.*)"$`)
	trailingMorePattern = regexp.MustCompile(`\.\.\. and \d+ more$`)
)

// Changes extracts the field changes recorded on the entry. Structured
// previous/new value blobs win when the backend stored them; otherwise the
// free-text description is parsed best-effort. Entries with neither yield nil.
func (a ActivityEntry) Changes() []FieldChange {
	if changes := diffValueBlobs(a.PreviousValue, a.NewValue); len(changes) > 0 {
		return changes
	}
	return ParseChanges(a.Description)
}

// ParseChanges extracts "field: old → new" pairs from a server-generated
// activity description. The backend emits these as free text, so this is a
// known workaround rather than a contract: anything that does not match the
// expected shapes is simply skipped.
func ParseChanges(description string) []FieldChange {
	if m := statusChangePattern.FindStringSubmatch(description); m != nil {
		return []FieldChange{{Field: "status", Old: m[1], New: m[2]}}
	}

	loc := editPrefixPattern.FindStringIndex(description)
	if loc == nil {
		return nil
	}
	body := trailingMorePattern.ReplaceAllString(description[loc[1]:], "")

	var changes []FieldChange
	for _, segment := range strings.Split(body, ", ") {
		field, rest, ok := strings.Cut(segment, ": ")
		if !ok {
			continue
		}
		oldValue, newValue, ok := strings.Cut(rest, " → ")
		if !ok {
			continue
		}
		changes = append(changes, FieldChange{
			Field: strings.TrimSpace(field),
			Old:   strings.TrimSpace(oldValue),
			New:   strings.TrimSpace(newValue),
		})
	}
	return changes
}

// diffValueBlobs compares the JSON object snapshots the backend stores
// alongside edit activities and returns the fields whose values differ,
// ordered by field name.
func diffValueBlobs(previous, current string) []FieldChange {
	if previous == "" || current == "" {
		return nil
	}

	var before, after map[string]any
	if err := json.Unmarshal([]byte(previous), &before); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(current), &after); err != nil {
		return nil
	}

	var changes []FieldChange
	for field, newValue := range after {
		oldValue, seen := before[field]
		if seen && stringify(oldValue) == stringify(newValue) {
			continue
		}
		changes = append(changes, FieldChange{
			Field: field,
			Old:   stringify(oldValue),
			New:   stringify(newValue),
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// SortActivities orders a timeline newest-first for display. The backend
// already returns this order; sorting again keeps the invariant local.
func SortActivities(entries []ActivityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
