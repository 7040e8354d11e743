package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/domain"
)

const testBase = "http://crm.test/api/v1"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := New(testBase, 5*time.Second)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestListCallbacksSendsFiltersAndToken(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBase+"/callbacks",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
			assert.Equal(t, "Pending", req.URL.Query().Get("status"))
			assert.Equal(t, "2025-06-01", req.URL.Query().Get("follow_up_date_start"))
			assert.Empty(t, req.URL.Query().Get("agent_name"), "empty filters must not be sent")
			return httpmock.NewJsonResponse(200, []map[string]any{
				{"id": 7, "customer_name": "Dana Cruz", "callback_number": "5551234567", "status": "Pending", "follow_up_date": "2025-06-02"},
			})
		})

	records, err := client.ListCallbacks(context.Background(), "tok-1", Filters{
		Status:            "Pending",
		FollowUpDateStart: "2025-06-01",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].ID)
	assert.Equal(t, "2025-06-02", records[0].FollowUpDate.String())
}

func TestGetCallbackForwardsViewer(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBase+"/callbacks/42",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "user-9", req.URL.Query().Get("user_id"))
			return httpmock.NewJsonResponse(200, map[string]any{"id": 42, "customer_name": "Lee", "callback_number": "123", "status": "Sale"})
		})

	record, err := client.GetCallback(context.Background(), "tok", 42, "user-9")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSale, record.Status)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBase+"/users/me",
		httpmock.NewJsonResponderOrPanic(401, map[string]string{"detail": "Could not validate credentials"}))

	_, err := client.CurrentUser(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBase+"/callbacks/99",
		httpmock.NewJsonResponderOrPanic(404, map[string]string{"detail": "Callback not found"}))

	_, err := client.GetCallback(context.Background(), "tok", 99, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get_callback", "the error names the operation that came up empty")
}

func TestServerErrorCarriesDetail(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBase+"/callbacks",
		httpmock.NewJsonResponderOrPanic(422, map[string]string{"detail": "callback_number is required"}))

	_, err := client.CreateCallback(context.Background(), "tok", domain.CallbackDraft{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Equal(t, "callback_number is required", apiErr.Detail)
}

func TestLoginSendsFormEncodedCredentials(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBase+"/auth/login",
		func(req *http.Request) (*http.Response, error) {
			assert.Contains(t, req.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "agent@crmx.test", req.PostForm.Get("username"))
			assert.Equal(t, "hunter2", req.PostForm.Get("password"))
			return httpmock.NewJsonResponse(200, map[string]string{"access_token": "tok-abc", "token_type": "bearer"})
		})

	token, err := client.Login(context.Background(), "agent@crmx.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestLoginWithoutTokenInResponseFails(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBase+"/auth/login",
		httpmock.NewJsonResponderOrPanic(200, map[string]string{"token_type": "bearer"}))

	_, err := client.Login(context.Background(), "a@b.c", "pw")
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestClaimPostsUserID(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBase+"/callbacks/5/claim",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, jsonDecode(req, &body))
			assert.Equal(t, "user-3", body["user_id"])
			return httpmock.NewJsonResponse(200, map[string]any{"id": 5, "claimed_by": "user-3"})
		})

	assert.NoError(t, client.Claim(context.Background(), "tok", 5, "user-3"))
}

func TestListActivitiesPassesLimit(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBase+"/activities/12",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "25", req.URL.Query().Get("limit"))
			return httpmock.NewJsonResponse(200, []map[string]any{
				{"id": 1, "callback_id": 12, "activity_type": "claim", "description": "Claimed this callback", "created_at": "2025-06-01T10:00:00Z"},
			})
		})

	entries, err := client.ListActivities(context.Background(), "tok", 12, 25)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityClaim, entries[0].ActivityType)
}

func TestTransportErrorIsWrapped(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodDelete, testBase+"/callbacks/1",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	err := client.DeleteCallback(context.Background(), "tok", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_callback")
}

func jsonDecode(req *http.Request, out any) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(out)
}
