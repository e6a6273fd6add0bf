// Package gitops publishes configuration changes to a source-control
// provider as a branch, a commit and a merge request. Providers differ in
// transport only; the Provider interface is the uniform contract the
// change-request engine depends on.
package gitops

import (
	"context"
	"fmt"
)

// ChangeSet maps repository file paths to their new content. All entries
// are committed together as a single commit where the provider supports
// it.
type ChangeSet map[string][]byte

// Provider is one source-control backend.
type Provider interface {
	Name() string

	// CreateBranch creates branch from the given base ref. A branch that
	// already exists is success, not an error: republishing an unmerged
	// proposal must not fail because an earlier attempt created it.
	CreateBranch(ctx context.Context, branch, from string) error

	// CommitChangeSet commits the change set onto branch as one commit.
	CommitChangeSet(ctx context.Context, branch, message string, changes ChangeSet) error

	// OpenMergeRequest opens a merge/pull request from source into target
	// and returns the provider's web URL for it.
	OpenMergeRequest(ctx context.Context, source, target, title, description string) (string, error)
}

// PublishError qualifies any provider failure with the provider name, the
// failing operation and the upstream status. Publishes are never retried
// automatically; callers may re-invoke safely because branch creation is
// idempotent.
type PublishError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Op, e.Message)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
