package gitops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitLabCreateBranchIdempotent(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/repository/branches", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"name":"flagforge/checkout-v2"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Branch already exists"}`))
	}))
	defer server.Close()

	provider := NewGitLabProvider(server.URL, "42", "secret-token")
	ctx := context.Background()

	require.NoError(t, provider.CreateBranch(ctx, "flagforge/checkout-v2", "main"))
	require.NoError(t, provider.CreateBranch(ctx, "flagforge/checkout-v2", "main"),
		"second creation of the same branch must succeed")
	assert.Equal(t, 2, calls)
}

func TestGitLabCommitFallsBackToCreate(t *testing.T) {
	var actions []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/group%2Fflags/repository/commits", r.URL.EscapedPath())

		var payload struct {
			Branch  string               `json:"branch"`
			Message string               `json:"commit_message"`
			Actions []gitlabCommitAction `json:"actions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Actions, 1)
		actions = append(actions, payload.Actions[0].Action)

		if payload.Actions[0].Action == "update" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"A file with this name doesn't exist"}`))
			return
		}

		content, err := base64.StdEncoding.DecodeString(payload.Actions[0].Content)
		require.NoError(t, err)
		assert.JSONEq(t, `{"disable":false}`, string(content))
		assert.Equal(t, "base64", payload.Actions[0].Encoding)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := NewGitLabProvider(server.URL, "group/flags", "tok")
	changes := ChangeSet{"flags/checkout-v2.json": []byte(`{"disable":false}`)}

	require.NoError(t, provider.CommitChangeSet(context.Background(), "flagforge/checkout-v2", "Update flag", changes))
	assert.Equal(t, []string{"update", "create"}, actions)
}

func TestGitLabOpenMergeRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/merge_requests", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "flagforge/checkout-v2", payload["source_branch"])
		assert.Equal(t, "main", payload["target_branch"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"web_url":"https://gitlab.example.com/group/flags/-/merge_requests/7"}`))
	}))
	defer server.Close()

	provider := NewGitLabProvider(server.URL, "42", "tok")
	url, err := provider.OpenMergeRequest(context.Background(), "flagforge/checkout-v2", "main", "Update flag", "desc")

	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com/group/flags/-/merge_requests/7", url)
}

func TestGitLabSurfacesUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"401 Unauthorized"}`))
	}))
	defer server.Close()

	provider := NewGitLabProvider(server.URL, "42", "bad-token")
	err := provider.CreateBranch(context.Background(), "b", "main")

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "gitlab", publishErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, publishErr.StatusCode)
}
