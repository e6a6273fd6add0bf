package gitops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records the call sequence and can fail any step.
type fakeProvider struct {
	calls      []string
	branchErr  error
	commitErr  error
	mergeErr   error
	mergeURL   string
	lastCommit ChangeSet
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateBranch(ctx context.Context, branch, from string) error {
	f.calls = append(f.calls, "branch")
	return f.branchErr
}

func (f *fakeProvider) CommitChangeSet(ctx context.Context, branch, message string, changes ChangeSet) error {
	f.calls = append(f.calls, "commit")
	f.lastCommit = changes
	return f.commitErr
}

func (f *fakeProvider) OpenMergeRequest(ctx context.Context, source, target, title, description string) (string, error) {
	f.calls = append(f.calls, "merge")
	return f.mergeURL, f.mergeErr
}

func TestPublishRunsTriadInOrder(t *testing.T) {
	provider := &fakeProvider{mergeURL: "https://git.example.com/mr/1"}
	publisher := NewPublisher(provider, 0)

	changes := ChangeSet{"flags/checkout-v2.json": []byte(`{"disable":false}`)}
	url, err := publisher.Publish(context.Background(), changes, "Update flag", "desc", "flagforge/checkout-v2", "main")

	require.NoError(t, err)
	assert.Equal(t, "https://git.example.com/mr/1", url)
	assert.Equal(t, []string{"branch", "commit", "merge"}, provider.calls)
	assert.Len(t, provider.lastCommit, 1)
}

func TestPublishAbortsOnBranchFailure(t *testing.T) {
	provider := &fakeProvider{branchErr: errors.New("boom")}
	publisher := NewPublisher(provider, 0)

	_, err := publisher.Publish(context.Background(), ChangeSet{"f": nil}, "t", "d", "src", "main")

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "fake", publishErr.Provider)
	assert.Equal(t, "create branch", publishErr.Op)
	assert.Equal(t, []string{"branch"}, provider.calls, "commit and merge must not run")
}

func TestPublishAbortsOnCommitFailure(t *testing.T) {
	provider := &fakeProvider{commitErr: &PublishError{Provider: "fake", Op: "request", StatusCode: 401, Message: "unauthorized"}}
	publisher := NewPublisher(provider, 0)

	_, err := publisher.Publish(context.Background(), ChangeSet{"f": nil}, "t", "d", "src", "main")

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, 401, publishErr.StatusCode, "provider errors pass through unwrapped")
	assert.Equal(t, []string{"branch", "commit"}, provider.calls)
}

func TestPublishRejectsEmptyChangeSet(t *testing.T) {
	provider := &fakeProvider{}
	publisher := NewPublisher(provider, 0)

	_, err := publisher.Publish(context.Background(), ChangeSet{}, "t", "d", "src", "main")

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Empty(t, provider.calls)
}
