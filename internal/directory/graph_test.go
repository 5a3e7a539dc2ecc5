package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openidx/ciam-console/internal/directory"
)

func newGraphServer(t *testing.T, handler http.HandlerFunc) *directory.GraphClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return directory.NewGraphClient(srv.URL+"/v1.0/", srv.Client(), zaptest.NewLogger(t))
}

func TestGraphClient_ListUsersQuery(t *testing.T) {
	client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.0/users", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("$top"))
		assert.Equal(t, "id,displayName,accountEnabled,identities", q.Get("$select"))
		assert.Equal(t, "displayName", q.Get("$orderby"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"value": [
				{"id": "a1", "displayName": "Ann", "accountEnabled": true,
				 "identities": [{"signInType": "emailAddress", "issuer": "contoso.onmicrosoft.com", "issuerAssignedId": "ann@example.com"}]},
				{"id": "b2", "displayName": "Bea", "accountEnabled": false, "jobTitle": null}
			],
			"@odata.nextLink": "https://graph.microsoft.com/v1.0/users?$skiptoken=abc"
		}`)
	})

	users, err := client.ListUsers(context.Background(), directory.ListQuery{
		Top:     5,
		Select:  []string{"id", "displayName", "accountEnabled", "identities"},
		OrderBy: []string{"displayName"},
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ann", users[0].DisplayName)
	require.Len(t, users[0].Identities, 1)
	assert.Equal(t, "ann@example.com", users[0].Identities[0].IssuerAssignedID)
	require.NotNil(t, users[1].AccountEnabled)
	assert.False(t, *users[1].AccountEnabled)
	assert.Nil(t, users[1].JobTitle)
}

func TestGraphClient_CreateUserBody(t *testing.T) {
	client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/users", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["accountEnabled"])
		assert.Equal(t, "ada", body["mailNickname"])
		assert.NotContains(t, body, "userPrincipalName")
		identities := body["identities"].([]interface{})
		require.Len(t, identities, 1)
		identity := identities[0].(map[string]interface{})
		assert.Equal(t, "emailAddress", identity["signInType"])
		assert.Equal(t, "contoso.onmicrosoft.com", identity["issuer"])
		assert.Equal(t, "ada@example.com", identity["issuerAssignedId"])
		profile := body["passwordProfile"].(map[string]interface{})
		assert.Equal(t, false, profile["forceChangePasswordNextSignIn"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "new-id", "displayName": "Ada", "userPrincipalName": "x@contoso.onmicrosoft.com"}`)
	})

	payload := directory.BuildUserPayload(testSettings(), directory.NewUserRequest{
		DisplayName:  "Ada",
		MailNickname: "ada",
		SignInEmail:  "ada@example.com",
		Password:     "P@ssw0rd!",
	})
	created, err := client.CreateUser(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "new-id", created.ID)
}

func TestGraphClient_CreateApplicationBody(t *testing.T) {
	client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/applications", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		web := body["web"].(map[string]interface{})
		assert.Equal(t, []interface{}{"http://localhost:3000/callback"}, web["redirectUris"])
		grant := web["implicitGrantSettings"].(map[string]interface{})
		assert.Equal(t, true, grant["enableIdTokenIssuance"])
		assert.Equal(t, false, grant["enableAccessTokenIssuance"])

		rra := body["requiredResourceAccess"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "00000003-0000-0000-c000-000000000000", rra["resourceAppId"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "obj-1", "appId": "app-1", "displayName": "Shop", "web": {"redirectUris": ["http://localhost:3000/callback"]}}`)
	})

	created, err := client.CreateApplication(context.Background(), directory.BuildApplicationPayload("Shop", nil))
	require.NoError(t, err)
	assert.Equal(t, "app-1", created.AppID)
	assert.Equal(t, "obj-1", created.ID)
}

func TestGraphClient_GetUserEscapesIdentifier(t *testing.T) {
	client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/first.last@contoso.onmicrosoft.com", r.URL.Path)
		assert.Equal(t, "id,displayName", r.URL.Query().Get("$select"))
		_, _ = io.WriteString(w, `{"id": "u1", "displayName": "First Last"}`)
	})

	user, err := client.GetUser(context.Background(), "first.last@contoso.onmicrosoft.com", []string{"id", "displayName"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestGraphClient_ErrorEnvelope(t *testing.T) {
	t.Run("Not found matches ErrNotFound", func(t *testing.T) {
		client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("request-id", "req-404")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": {"code": "Request_ResourceNotFound", "message": "Resource 'x' does not exist."}}`)
		})

		_, err := client.GetUser(context.Background(), "x", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, directory.ErrNotFound))

		var gerr *directory.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "Request_ResourceNotFound", gerr.Code)
		assert.Equal(t, "req-404", gerr.RequestID)
	})

	t.Run("Other failures keep the remote diagnostic", func(t *testing.T) {
		client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": {"code": "Request_BadRequest", "message": "The specified password does not comply with password complexity requirements.", "innerError": {"request-id": "inner-1"}}}`)
		})

		_, err := client.CreateUser(context.Background(), directory.GraphUser{DisplayName: "x"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, directory.ErrNotFound))

		var gerr *directory.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, http.StatusBadRequest, gerr.HTTPStatus())
		assert.Equal(t, "inner-1", gerr.RequestID)
		assert.Contains(t, gerr.RemoteMessage(), "password complexity")
	})

	t.Run("Non-JSON body becomes the message", func(t *testing.T) {
		client := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "upstream unavailable")
		})

		_, err := client.ListUsers(context.Background(), directory.ListQuery{Top: 1})
		var gerr *directory.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "upstream unavailable", gerr.Message)
		assert.Empty(t, gerr.Code)
	})
}
