package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
)

var testAgents = []string{"John Smith", "Emily Johnson"}

func newTestStore() *Store {
	store := NewStore(time.Minute, testAgents)
	store.yearFn = func() int { return 2025 }
	return store
}

func TestOpenNewDefaults(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	assert.Equal(t, StateNew, form.State)
	assert.Equal(t, 0, form.RecordID)
	fields := form.Fields()
	assert.Equal(t, domain.StatusPending, fields.Status)
	assert.Equal(t, "John Smith", fields.AgentName)
	assert.Equal(t, 5.0, form.LeadScore())
}

func TestOpenEditPrefillsAndRederivesScore(t *testing.T) {
	store := newTestStore()
	followUp, err := domain.ParseDate("2025-07-01")
	require.NoError(t, err)

	form := store.OpenEdit("dana", domain.CallbackRecord{
		ID:             31,
		CustomerName:   "Lee Park",
		CallbackNumber: "5551234567",
		Product:        "Transmission",
		VehicleYear:    2023,
		Status:         domain.StatusFollowUpLater,
		FollowUpDate:   &followUp,
		LeadScore:      1.2, // stale stored score must be ignored
	})

	assert.Equal(t, StateEdit, form.State)
	assert.Equal(t, 31, form.RecordID)
	assert.Equal(t, "2023", form.Fields().VehicleYear)
	// 5 + 0.5 (product) + 1.0 (age 2) + 1.0 (follow-up later) + 1.0 (date set)
	assert.Equal(t, 8.5, form.LeadScore())
}

func TestSetFieldRecomputesScore(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	score, err := form.SetField("status", string(domain.StatusSale))
	require.NoError(t, err)
	assert.Equal(t, 7.0, score)

	score, err = form.SetField("car_make", "Honda")
	require.NoError(t, err)
	assert.Equal(t, 7.5, score)

	score, err = form.SetField("car_make", "")
	require.NoError(t, err)
	assert.Equal(t, 7.0, score, "clearing a field lowers the score again")
}

func TestSetFieldRejectsLeadScore(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	_, err := form.SetField("lead_score", "9.9")
	assert.ErrorIs(t, err, ErrDerivedField)
	assert.Equal(t, 5.0, form.LeadScore())
}

func TestSetFieldRejectsUnknownFieldAndBadValues(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	_, err := form.SetField("favorite_color", "blue")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = form.SetField("status", "Maybe")
	assert.Error(t, err)

	_, err = form.SetField("follow_up_date", "not-a-date")
	assert.Error(t, err)
}

func TestSubmitValidatesRequiredFieldsLocally(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	draft, errs := form.Submit("dana")
	assert.Nil(t, draft)
	assert.Contains(t, errs, "customer_name")
	assert.Contains(t, errs, "callback_number")

	// The form survives a failed submit.
	_, err := store.Get(form.ID)
	assert.NoError(t, err)
}

func TestSubmitCoercesAndStamps(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	for field, value := range map[string]string{
		"customer_name":   "  Lee Park ",
		"callback_number": "555.123.4567",
		"vehicle_year":    "2021",
		"follow_up_date":  "2025-07-04",
		"status":          string(domain.StatusSale),
	} {
		_, err := form.SetField(field, value)
		require.NoError(t, err)
	}

	draft, errs := form.Submit("dana")
	require.Empty(t, errs)
	assert.Equal(t, "Lee Park", draft.CustomerName)
	assert.Equal(t, "(555) 123-4567", draft.CallbackNumber, "submitted number uses the display format")
	assert.Equal(t, 2021, draft.VehicleYear)
	assert.Equal(t, "2025-07-04", draft.FollowUpDate.String())
	assert.Equal(t, "dana", draft.LastModifiedBy)
	assert.Equal(t, form.LeadScore(), draft.LeadScore)
}

func TestSubmitRejectsNonNumericVehicleYear(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")
	_, err := form.SetField("customer_name", "Lee")
	require.NoError(t, err)
	_, err = form.SetField("callback_number", "555")
	require.NoError(t, err)
	_, err = form.SetField("vehicle_year", "brand new")
	require.NoError(t, err, "raw text is accepted while typing")

	draft, errs := form.Submit("dana")
	assert.Nil(t, draft)
	assert.Contains(t, errs, "vehicle_year")
}

func TestCancelDiscardsForm(t *testing.T) {
	store := newTestStore()
	form := store.OpenNew("dana")

	require.NoError(t, store.Close(form.ID))
	_, err := store.Get(form.ID)
	assert.ErrorIs(t, err, ErrFormNotFound)
	assert.ErrorIs(t, store.Close(form.ID), ErrFormNotFound)
}

func TestFormsExpire(t *testing.T) {
	store := NewStore(10*time.Millisecond, testAgents)
	store.yearFn = func() int { return 2025 }
	form := store.OpenNew("dana")

	time.Sleep(30 * time.Millisecond)
	_, err := store.Get(form.ID)
	assert.ErrorIs(t, err, ErrFormNotFound)
}
