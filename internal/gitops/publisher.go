package gitops

import (
	"context"
	"errors"
	"time"

	console "flagforge/internal/utils/logger"
)

var log = console.New("GITOPS")

const defaultPublishTimeout = 30 * time.Second

// Publisher runs the branch → commit → merge request triad against one
// provider. The whole triad shares a single timeout; no database
// transaction may be held across a Publish call.
type Publisher struct {
	provider Provider
	timeout  time.Duration
}

// NewPublisher wraps a provider. A zero timeout falls back to the default.
func NewPublisher(provider Provider, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{provider: provider, timeout: timeout}
}

// ProviderName exposes the underlying provider's name for error reporting.
func (p *Publisher) ProviderName() string {
	return p.provider.Name()
}

// Publish creates sourceBranch from targetBranch, commits the change set,
// and opens a merge request back into targetBranch. Returns the request's
// web URL. Any failure aborts the remaining steps and surfaces a
// *PublishError; a timeout mid-triad is a failure, never a silent success.
func (p *Publisher) Publish(ctx context.Context, changes ChangeSet, title, description, sourceBranch, targetBranch string) (string, error) {
	if len(changes) == 0 {
		return "", p.wrap("publish", errors.New("empty change set"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.provider.CreateBranch(ctx, sourceBranch, targetBranch); err != nil {
		return "", p.wrap("create branch", err)
	}
	log.Info("branch %s ready on %s", sourceBranch, p.provider.Name())

	if err := p.provider.CommitChangeSet(ctx, sourceBranch, title, changes); err != nil {
		return "", p.wrap("commit", err)
	}

	url, err := p.provider.OpenMergeRequest(ctx, sourceBranch, targetBranch, title, description)
	if err != nil {
		return "", p.wrap("open merge request", err)
	}

	log.Success("published %d file(s) to %s: %s", len(changes), p.provider.Name(), url)
	return url, nil
}

func (p *Publisher) wrap(op string, err error) error {
	var publishErr *PublishError
	if errors.As(err, &publishErr) {
		return err
	}
	return &PublishError{
		Provider: p.provider.Name(),
		Op:       op,
		Message:  err.Error(),
		Err:      err,
	}
}
