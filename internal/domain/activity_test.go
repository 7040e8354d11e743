package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseChangesEditDescription(t *testing.T) {
	changes := ParseChanges("Updated 2 fields: status: Pending → Sale, agent_name: John Smith → Emily Johnson")
	assert.Equal(t, []FieldChange{
		{Field: "status", Old: "Pending", New: "Sale"},
		{Field: "agent_name", Old: "John Smith", New: "Emily Johnson"},
	}, changes)
}

func TestParseChangesTruncatedDescription(t *testing.T) {
	changes := ParseChanges("Updated 5 fields: zip_code: 94110 → 94117, product: Engine → Transmission, comments: a → b... and 2 more")
	assert.Len(t, changes, 3)
	assert.Equal(t, "zip_code", changes[0].Field)
}

func TestParseChangesStatusChange(t *testing.T) {
	changes := ParseChanges(`Changed status from "Pending" to "No Answer"`)
	assert.Equal(t, []FieldChange{{Field: "status", Old: "Pending", New: "No Answer"}}, changes)
}

func TestParseChangesNonMatchingText(t *testing.T) {
	assert.Nil(t, ParseChanges("Viewed callback details"))
	assert.Nil(t, ParseChanges("Claimed this callback"))
	assert.Nil(t, ParseChanges(""))
}

func TestChangesPrefersStructuredValues(t *testing.T) {
	entry := ActivityEntry{
		ActivityType:  ActivityEdit,
		Description:   "Updated 1 fields: status: stale → text",
		PreviousValue: `{"status":"Pending","vehicle_year":2018}`,
		NewValue:      `{"status":"Sale","vehicle_year":2020}`,
	}
	assert.Equal(t, []FieldChange{
		{Field: "status", Old: "Pending", New: "Sale"},
		{Field: "vehicle_year", Old: "2018", New: "2020"},
	}, entry.Changes())
}

func TestChangesFallsBackToDescription(t *testing.T) {
	entry := ActivityEntry{
		ActivityType: ActivityEdit,
		Description:  "Updated 1 fields: comments: old note → new note",
	}
	assert.Equal(t, []FieldChange{{Field: "comments", Old: "old note", New: "new note"}}, entry.Changes())
}

func TestChangesMalformedBlobsAreIgnored(t *testing.T) {
	entry := ActivityEntry{
		PreviousValue: "not json",
		NewValue:      `{"status":"Sale"}`,
		Description:   "Viewed callback details",
	}
	assert.Nil(t, entry.Changes())
}

func TestSortActivitiesNewestFirst(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []ActivityEntry{
		{ID: 1, CreatedAt: base},
		{ID: 3, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 2, CreatedAt: base.Add(time.Hour)},
	}
	SortActivities(entries)
	assert.Equal(t, []int{3, 2, 1}, []int{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2025-06-15")
	assert.NoError(t, err)
	raw, err := d.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"2025-06-15"`, string(raw))

	var parsed Date
	assert.NoError(t, parsed.UnmarshalJSON([]byte("null")))
	assert.True(t, parsed.IsZero())
	assert.NoError(t, parsed.UnmarshalJSON([]byte(`"2025-06-15"`)))
	assert.Equal(t, "2025-06-15", parsed.String())
}
