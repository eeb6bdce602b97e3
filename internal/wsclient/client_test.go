package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupath/coursesync/pkg/api"
)

func TestNew(t *testing.T) {
	client := New("http://school.example/", "tok-123")

	assert.NotNil(t, client)
	assert.Equal(t, "http://school.example", client.serverURL)
	assert.Equal(t, "tok-123", client.token)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/ws/server.php", r.URL.Path)
		assert.Equal(t, "glossary_get_entries_by_letter", r.URL.Query().Get("wsfunction"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.GetEntriesRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, int64(5), req.GlossaryID)
		assert.Equal(t, "A", req.Letter)

		resp := api.GetEntriesResponse{
			Count: 1,
			Entries: []api.Entry{
				{ID: 11, GlossaryID: 5, Concept: "Atom"},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(server.URL, "tok-123")

	var resp api.GetEntriesResponse
	err := client.Call(context.Background(), "glossary_get_entries_by_letter",
		api.GetEntriesRequest{GlossaryID: 5, Letter: "A", Limit: 20}, &resp)

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Atom", resp.Entries[0].Concept)
}

func TestClient_Call_ExceptionEnvelope(t *testing.T) {
	// Function-level failures arrive as an exception envelope under HTTP 200
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exc := api.Exception{
			Exception: "invalid_parameter_exception",
			ErrorCode: "errorconceptalreadyexists",
			Message:   "The concept already exists in this glossary",
		}
		_ = json.NewEncoder(w).Encode(exc)
	}))
	defer server.Close()

	client := New(server.URL, "tok-123")

	err := client.Call(context.Background(), "glossary_add_entry", api.AddEntryRequest{}, nil)
	require.Error(t, err)

	var remoteErr *RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "errorconceptalreadyexists", remoteErr.Code)
	assert.Equal(t, "glossary_add_entry", remoteErr.Function)
	assert.Contains(t, remoteErr.Error(), "already exists")
	assert.False(t, IsNetworkError(err))
	assert.True(t, IsRemoteServiceError(err))
}

func TestClient_Call_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := New(server.URL, "tok-123")

	err := client.Call(context.Background(), "mod_page_view_page", api.ViewPageRequest{PageID: 3}, nil)
	require.Error(t, err)

	var remoteErr *RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "http403", remoteErr.Code)
}

func TestClient_Call_NetworkError(t *testing.T) {
	// Point at a closed server so the dial fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, "tok-123")

	err := client.Call(context.Background(), "mod_assign_get_assignments", api.GetAssignmentsRequest{}, nil)
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "mod_assign_get_assignments", netErr.Op)
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsRemoteServiceError(err))
}
