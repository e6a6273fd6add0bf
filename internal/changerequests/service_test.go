package changerequests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"flagforge/internal/apperrors"
	"flagforge/internal/flagstore"
	"flagforge/internal/gitops"
	"flagforge/internal/models"
	"flagforge/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinRole(t *testing.T, name string) models.Role {
	t.Helper()
	for _, role := range models.BuiltinRoles() {
		if role.Name == name {
			return role
		}
	}
	t.Fatalf("no built-in role %s", name)
	return models.Role{}
}

// editorPrincipal carries viewer alongside editor, the way deployments
// assign roles: permissions union, so the pair reads everything and
// writes flags.
func editorPrincipal(t *testing.T, id string) rbac.Principal {
	return rbac.Principal{ID: id, Email: id + "@example.com", Name: id, Roles: []models.Role{
		builtinRole(t, models.RoleViewer),
		builtinRole(t, models.RoleEditor),
	}}
}

func viewerPrincipal(t *testing.T, id string) rbac.Principal {
	return rbac.Principal{ID: id, Email: id + "@example.com", Name: id, Roles: []models.Role{builtinRole(t, models.RoleViewer)}}
}

func adminPrincipal(t *testing.T, id string) rbac.Principal {
	return rbac.Principal{ID: id, Email: id + "@example.com", Name: id, Roles: []models.Role{builtinRole(t, models.RoleAdmin)}}
}

// stubProvider implements gitops.Provider with canned success.
type stubProvider struct {
	mu       sync.Mutex
	commits  []gitops.ChangeSet
	branches []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreateBranch(ctx context.Context, branch, from string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.branches = append(p.branches, branch)
	return nil
}

func (p *stubProvider) CommitChangeSet(ctx context.Context, branch, message string, changes gitops.ChangeSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commits = append(p.commits, changes)
	return nil
}

func (p *stubProvider) OpenMergeRequest(ctx context.Context, source, target, title, description string) (string, error) {
	return "https://git.example.com/mr/1", nil
}

func newTestService(t *testing.T, provider gitops.Provider, policy Policy) (*Service, flagstore.Store) {
	t.Helper()
	flags := flagstore.NewLocalStore(t.TempDir())
	var publisher *gitops.Publisher
	if provider != nil {
		publisher = gitops.NewPublisher(provider, 0)
	}
	return NewService(NewMemoryRepository(), flags, publisher, policy), flags
}

func propose(t *testing.T, svc *Service, principal rbac.Principal, key string, config string) *models.ChangeRequest {
	t.Helper()
	cr, err := svc.Propose(context.Background(), principal, ProposeInput{
		Title:          "Update " + key,
		FlagKey:        key,
		ProposedConfig: json.RawMessage(config),
	})
	require.NoError(t, err)
	return cr
}

func TestProposeSnapshotsCurrentConfig(t *testing.T) {
	svc, flags := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	ref := flagstore.ResourceRef{Key: "checkout-v2"}
	require.NoError(t, flags.WriteConfig(ctx, ref, []byte(`{"disable":true}`)))

	cr := propose(t, svc, editorPrincipal(t, "alice"), "checkout-v2", `{"disable":false}`)

	assert.Equal(t, models.StatusPending, cr.Status)
	assert.JSONEq(t, `{"disable":true}`, string(cr.CurrentConfig))
	assert.JSONEq(t, `{"disable":false}`, string(cr.ProposedConfig))
	assert.Equal(t, "alice", cr.AuthorID)
}

func TestProposeValidation(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	_, err := svc.Propose(ctx, editor, ProposeInput{FlagKey: "k", ProposedConfig: json.RawMessage(`{}`)})
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr, "missing title")

	_, err = svc.Propose(ctx, editor, ProposeInput{Title: "t", ProposedConfig: json.RawMessage(`{}`)})
	require.ErrorAs(t, err, &validationErr, "missing flag key")

	_, err = svc.Propose(ctx, editor, ProposeInput{Title: "t", FlagKey: "k", ProposedConfig: json.RawMessage(`{not json`)})
	require.ErrorAs(t, err, &validationErr, "malformed document")
}

func TestPermissionChecksFailClosed(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	viewer := viewerPrincipal(t, "bob")
	nobody := rbac.Principal{ID: "ghost"}

	_, err := svc.Propose(ctx, viewer, ProposeInput{Title: "t", FlagKey: "k", ProposedConfig: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "viewer cannot propose")

	cr := propose(t, svc, editorPrincipal(t, "alice"), "k", `{"on":true}`)

	_, err = svc.Review(ctx, viewer, cr.ID, models.DecisionApproved, "")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "viewer cannot review")

	_, err = svc.Apply(ctx, viewer, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "viewer cannot apply")

	_, err = svc.Get(ctx, nobody, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "no roles means no read")

	_, err = svc.List(ctx, nobody, ListFilter{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	// viewer may still read
	_, err = svc.Get(ctx, viewer, cr.ID)
	assert.NoError(t, err)
}

// TestProposeAuthorizesTargetResourceType pins the propose gate to the
// resource being changed: a credential scoped to flags may propose flag
// changes, while workflow-object permissions grant nothing on the flag
// itself.
func TestProposeAuthorizesTargetResourceType(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()

	flagKey := rbac.Principal{ID: "relay-key", IsAPIKey: true, Roles: []models.Role{rbac.ScopeRole([]string{"flag:write"})}}
	_, err := svc.Propose(ctx, flagKey, ProposeInput{Title: "t", FlagKey: "k", ProposedConfig: json.RawMessage(`{"on":true}`)})
	require.NoError(t, err, "write on the target resource type is sufficient")

	workflowOnly := rbac.Principal{ID: "wf", Roles: []models.Role{rbac.ScopeRole([]string{"change_request:write"})}}
	_, err = svc.Propose(ctx, workflowOnly, ProposeInput{Title: "t", FlagKey: "k2", ProposedConfig: json.RawMessage(`{"on":true}`)})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	segKey := rbac.Principal{ID: "seg-key", IsAPIKey: true, Roles: []models.Role{rbac.ScopeRole([]string{"segment:write"})}}
	_, err = svc.Propose(ctx, segKey, ProposeInput{Title: "t", FlagKey: "beta-users", ResourceType: models.ResourceSegment, ProposedConfig: json.RawMessage(`{"rules":[]}`)})
	require.NoError(t, err)

	// the segment scope does not extend to the default resource type
	_, err = svc.Propose(ctx, segKey, ProposeInput{Title: "t", FlagKey: "k3", ProposedConfig: json.RawMessage(`{"on":true}`)})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

// A proposal whose document matches the current config byte-for-meaning is
// accepted anyway; the engine only logs the missing delta.
func TestProposeAcceptsNoDeltaProposal(t *testing.T) {
	svc, flags := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	ref := flagstore.ResourceRef{Key: "checkout-v2"}
	require.NoError(t, flags.WriteConfig(ctx, ref, []byte(`{"disable":true,"rules":[1,2]}`)))

	// same document, different key order and whitespace
	cr := propose(t, svc, editorPrincipal(t, "alice"), "checkout-v2", `{"rules": [1, 2], "disable": true}`)

	assert.Equal(t, models.StatusPending, cr.Status)
	assert.JSONEq(t, string(cr.CurrentConfig), string(cr.ProposedConfig))

	// and it stays reviewable and applicable like any other proposal
	_, err := svc.Review(ctx, adminPrincipal(t, "root"), cr.ID, models.DecisionApproved, "no-op rollout")
	require.NoError(t, err)
}

func TestReviewFlipsStatus(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")
	reviewer := adminPrincipal(t, "carol")

	cr := propose(t, svc, editor, "k", `{"on":true}`)

	got, err := svc.Review(ctx, reviewer, cr.ID, models.DecisionRejected, "needs work")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, "needs work", got.Reviews[0].Comment)

	// a later review may flip a rejection
	got, err = svc.Review(ctx, reviewer, cr.ID, models.DecisionApproved, "fixed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Len(t, got.Reviews, 2)
}

func TestReviewRejectsBadDecisionAndTerminalStates(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")
	reviewer := adminPrincipal(t, "root")

	cr := propose(t, svc, editor, "k", `{"on":true}`)

	_, err := svc.Review(ctx, reviewer, cr.ID, models.ReviewDecision("maybe"), "")
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.Cancel(ctx, editor, cr.ID)
	require.NoError(t, err)

	_, err = svc.Review(ctx, reviewer, cr.ID, models.DecisionApproved, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict, "cancelled requests take no reviews")
}

func TestApplyPublishesAndMarksApplied(t *testing.T) {
	provider := &stubProvider{}
	svc, flags := newTestService(t, provider, Policy{TargetBranch: "main"})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	require.NoError(t, flags.WriteConfig(ctx, flagstore.ResourceRef{Key: "checkout-v2"}, []byte(`{"disable":true}`)))
	cr := propose(t, svc, editor, "checkout-v2", `{"disable":false}`)

	_, err := svc.Review(ctx, adminPrincipal(t, "carol"), cr.ID, models.DecisionApproved, "lgtm")
	require.NoError(t, err)

	got, err := svc.Apply(ctx, editor, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, got.Status)
	require.NotNil(t, got.AppliedAt)
	assert.Equal(t, "alice", got.AppliedBy)

	require.Len(t, provider.commits, 1)
	content, ok := provider.commits[0]["flags/checkout-v2.json"]
	require.True(t, ok, "change set keyed by repository path")
	assert.JSONEq(t, `{"disable":false}`, string(content))

	require.Len(t, provider.branches, 1)
	assert.Contains(t, provider.branches[0], "flagforge/checkout-v2-")

	// applied is terminal
	_, err = svc.Apply(ctx, editor, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = svc.Cancel(ctx, editor, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestApplyIllegalFromRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	cr := propose(t, svc, editor, "k", `{"on":true}`)
	_, err := svc.Review(ctx, adminPrincipal(t, "carol"), cr.ID, models.DecisionRejected, "")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, editor, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestApplyRequiresAdminPolicy(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{ApplyRequiresAdmin: true})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	cr := propose(t, svc, editor, "k", `{"on":true}`)

	_, err := svc.Apply(ctx, editor, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "editor lacks admin action")

	_, err = svc.Apply(ctx, adminPrincipal(t, "root"), cr.ID)
	assert.NoError(t, err)
}

func TestApplyWithoutPublisherWritesStore(t *testing.T) {
	svc, flags := newTestService(t, nil, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	cr := propose(t, svc, editor, "checkout-v2", `{"disable":false}`)
	_, err := svc.Apply(ctx, editor, cr.ID)
	require.NoError(t, err)

	data, err := flags.GetCurrentConfig(ctx, flagstore.ResourceRef{Key: "checkout-v2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"disable":false}`, string(data))
}

func TestConcurrentApplySerializes(t *testing.T) {
	provider := &stubProvider{}
	svc, _ := newTestService(t, provider, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	cr := propose(t, svc, editor, "k", `{"on":true}`)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Apply(ctx, editor, cr.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one apply wins the compare-and-set")
	assert.Equal(t, 1, conflicted)
}

func TestCancelOnlyByAuthorOrAdmin(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	author := editorPrincipal(t, "alice")
	other := editorPrincipal(t, "carol")

	cr := propose(t, svc, author, "k", `{"on":true}`)

	_, err := svc.Cancel(ctx, other, cr.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "another editor cannot cancel")

	got, err := svc.Cancel(ctx, author, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// admin may cancel someone else's request
	second := propose(t, svc, author, "k2", `{"on":true}`)
	got, err = svc.Cancel(ctx, adminPrincipal(t, "root"), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{}, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")

	first := propose(t, svc, editor, "a", `{"on":true}`)
	_ = propose(t, svc, editor, "b", `{"on":true}`)
	_, err := svc.Cancel(ctx, editor, first.ID)
	require.NoError(t, err)

	pending, err := svc.List(ctx, editor, ListFilter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].FlagKey)

	byKey, err := svc.List(ctx, editor, ListFilter{FlagKey: "a"})
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, models.StatusCancelled, byKey[0].Status)
}

// TestApplyRereadsCurrentConfig covers the stale-snapshot property: the
// document published at apply time is the proposed one, and the engine
// consults the store again rather than trusting the snapshot taken at
// proposal time.
func TestApplyRereadsCurrentConfig(t *testing.T) {
	provider := &stubProvider{}
	svc, flags := newTestService(t, provider, Policy{})
	ctx := context.Background()
	editor := editorPrincipal(t, "alice")
	ref := flagstore.ResourceRef{Key: "checkout-v2"}

	require.NoError(t, flags.WriteConfig(ctx, ref, []byte(`{"disable":true}`)))
	cr := propose(t, svc, editor, "checkout-v2", `{"disable":false}`)

	// the store moves on after the proposal snapshot
	require.NoError(t, flags.WriteConfig(ctx, ref, []byte(`{"disable":true,"note":"rotated"}`)))

	_, err := svc.Apply(ctx, editor, cr.ID)
	require.NoError(t, err)

	require.Len(t, provider.commits, 1)
	assert.JSONEq(t, `{"disable":false}`, string(provider.commits[0]["flags/checkout-v2.json"]))
}
