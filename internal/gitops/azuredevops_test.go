package gitops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adoFixture serves the ref-lookup plus push endpoints of an
// Azure-DevOps-style repository with a single main branch.
type adoFixture struct {
	branches   map[string]string // branch name -> object id
	refUpdates int
	pushes     []string // change types of first change per push
}

func newADOFixture() *adoFixture {
	return &adoFixture{branches: map[string]string{"main": "aaaa1111"}}
}

func (f *adoFixture) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer ado-token", r.Header.Get("Authorization"))

		switch {
		case strings.HasSuffix(r.URL.Path, "/refs") && r.Method == http.MethodGet:
			filter := strings.TrimPrefix(r.URL.Query().Get("filter"), "heads/")
			refs := adoRefList{}
			if id, ok := f.branches[filter]; ok {
				refs.Value = append(refs.Value, adoRef{Name: "refs/heads/" + filter, ObjectID: id})
			}
			json.NewEncoder(w).Encode(refs)

		case strings.HasSuffix(r.URL.Path, "/refs") && r.Method == http.MethodPost:
			f.refUpdates++
			var updates []map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updates))
			require.Len(t, updates, 1)
			name := strings.TrimPrefix(updates[0]["name"], "refs/heads/")
			if _, exists := f.branches[name]; exists {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"value": []map[string]interface{}{{"success": false, "updateStatus": "staleObjectId"}},
				})
				return
			}
			f.branches[name] = updates[0]["newObjectId"]
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": []map[string]interface{}{{"success": true, "updateStatus": "succeeded"}},
			})

		case strings.HasSuffix(r.URL.Path, "/pushes"):
			var payload struct {
				Commits []struct {
					Changes []adoChange `json:"changes"`
				} `json:"commits"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			require.Len(t, payload.Commits, 1)
			require.NotEmpty(t, payload.Commits[0].Changes)
			changeType := payload.Commits[0].Changes[0].ChangeType
			f.pushes = append(f.pushes, changeType)
			if changeType == "edit" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"message":"The item '/flags/checkout-v2.json' does not exist at the specified version"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))

		case strings.HasSuffix(r.URL.Path, "/pullrequests"):
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"pullRequestId":9,"repository":{"webUrl":"https://dev.example.com/org/proj/_git/flags"}}`))

		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func TestAzureDevOpsCreateBranchIdempotent(t *testing.T) {
	fixture := newADOFixture()
	server := httptest.NewServer(fixture.handler(t))
	defer server.Close()

	provider := NewAzureDevOpsProvider(server.URL, "org", "proj", "flags", "ado-token")
	ctx := context.Background()

	require.NoError(t, provider.CreateBranch(ctx, "flagforge/checkout-v2", "main"))
	require.NoError(t, provider.CreateBranch(ctx, "flagforge/checkout-v2", "main"),
		"a rejected update for an existing ref is success")
	assert.Equal(t, 2, fixture.refUpdates)
}

func TestAzureDevOpsCreateBranchMissingBase(t *testing.T) {
	fixture := newADOFixture()
	server := httptest.NewServer(fixture.handler(t))
	defer server.Close()

	provider := NewAzureDevOpsProvider(server.URL, "org", "proj", "flags", "ado-token")
	err := provider.CreateBranch(context.Background(), "b", "nonexistent")

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "azuredevops", publishErr.Provider)
	assert.Contains(t, publishErr.Message, "nonexistent")
}

func TestAzureDevOpsCommitFallsBackToAdd(t *testing.T) {
	fixture := newADOFixture()
	server := httptest.NewServer(fixture.handler(t))
	defer server.Close()

	provider := NewAzureDevOpsProvider(server.URL, "org", "proj", "flags", "ado-token")
	changes := ChangeSet{"flags/checkout-v2.json": []byte(`{"disable":false}`)}

	require.NoError(t, provider.CommitChangeSet(context.Background(), "main", "Update flag", changes))
	assert.Equal(t, []string{"edit", "add"}, fixture.pushes)
}

func TestAzureDevOpsOpenMergeRequest(t *testing.T) {
	fixture := newADOFixture()
	server := httptest.NewServer(fixture.handler(t))
	defer server.Close()

	provider := NewAzureDevOpsProvider(server.URL, "org", "proj", "flags", "ado-token")
	url, err := provider.OpenMergeRequest(context.Background(), "flagforge/checkout-v2", "main", "Update flag", "desc")

	require.NoError(t, err)
	assert.Equal(t, "https://dev.example.com/org/proj/_git/flags/pullrequest/9", url)
}
