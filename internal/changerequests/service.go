package changerequests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"flagforge/internal/apperrors"
	"flagforge/internal/flagstore"
	"flagforge/internal/gitops"
	"flagforge/internal/models"
	"flagforge/internal/rbac"
	"flagforge/internal/utils/logger"
)

// Policy tunes workflow behavior that varies per deployment.
type Policy struct {
	// ApplyRequiresAdmin additionally gates apply behind the admin action
	// on change requests. Write permission always remains required.
	ApplyRequiresAdmin bool

	// TargetBranch is the branch merge requests are opened against.
	TargetBranch string
}

// Service is the change-request workflow engine. Every operation
// authorizes the caller before touching state; permission failures are
// fail-closed.
type Service struct {
	repo      Repository
	flags     flagstore.Store
	publisher *gitops.Publisher
	policy    Policy
	logger    *logger.Logger
}

// NewService wires the workflow. publisher may be nil: local/dev
// deployments then apply changes by writing the flag store directly
// instead of opening a merge request.
func NewService(repo Repository, flags flagstore.Store, publisher *gitops.Publisher, policy Policy) *Service {
	if policy.TargetBranch == "" {
		policy.TargetBranch = "main"
	}
	return &Service{
		repo:      repo,
		flags:     flags,
		publisher: publisher,
		policy:    policy,
		logger:    logger.New("change_requests"),
	}
}

// ProposeInput is a new proposal. ProposedConfig is opaque to the engine.
type ProposeInput struct {
	Title          string
	Description    string
	Project        string
	FlagKey        string
	ResourceType   string
	ProposedConfig json.RawMessage
}

// Propose creates a change request in pending, snapshotting the resource's
// current configuration at proposal time.
func (s *Service) Propose(ctx context.Context, principal rbac.Principal, input ProposeInput) (*models.ChangeRequest, error) {
	if input.ResourceType == "" {
		input.ResourceType = models.ResourceFlag
	}
	// the gate is write on the resource being changed, not on the workflow
	// object: a credential scoped flag:write may propose flag changes
	if !principal.Can(input.ResourceType, models.ActionWrite) {
		return nil, apperrors.ErrPermissionDenied
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.Validation("title", "must not be empty")
	}
	if strings.TrimSpace(input.FlagKey) == "" {
		return nil, apperrors.Validation("flagKey", "must not be empty")
	}
	if len(input.ProposedConfig) == 0 || !json.Valid(input.ProposedConfig) {
		return nil, apperrors.Validation("proposedConfig", "must be a JSON document")
	}

	ref := flagstore.ResourceRef{Project: input.Project, Key: input.FlagKey}
	current, err := s.flags.GetCurrentConfig(ctx, ref)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if current != nil && jsonEqual(current, input.ProposedConfig) {
		s.logger.Warn("proposal for %s carries no delta against current config", ref.RepoPath())
	}

	cr := &models.ChangeRequest{
		Title:          input.Title,
		Description:    input.Description,
		Status:         models.StatusPending,
		AuthorID:       principal.ID,
		AuthorEmail:    principal.Email,
		AuthorName:     principal.Name,
		Project:        input.Project,
		FlagKey:        input.FlagKey,
		ResourceType:   input.ResourceType,
		CurrentConfig:  current,
		ProposedConfig: []byte(input.ProposedConfig),
	}
	if err := s.repo.Create(ctx, cr); err != nil {
		return nil, err
	}

	s.logger.Info("📝 change request %s proposed by %s for %s", cr.ID, principal.Email, ref.RepoPath())
	return cr, nil
}

// Review appends a review and flips the request's status to track the
// decision. Later reviews may flip an earlier approval or rejection; an
// applied or cancelled request takes no further reviews.
func (s *Service) Review(ctx context.Context, principal rbac.Principal, id string, decision models.ReviewDecision, comment string) (*models.ChangeRequest, error) {
	if !principal.Can(models.ResourceChangeRequest, models.ActionReview) {
		return nil, apperrors.ErrPermissionDenied
	}

	var to models.ChangeRequestStatus
	switch decision {
	case models.DecisionApproved:
		to = models.StatusApproved
	case models.DecisionRejected:
		to = models.StatusRejected
	default:
		return nil, apperrors.Validation("decision", "must be approved or rejected")
	}

	review := &models.ChangeRequestReview{
		ChangeRequestID: id,
		ReviewerID:      principal.ID,
		ReviewerEmail:   principal.Email,
		ReviewerName:    principal.Name,
		Decision:        decision,
		Comment:         comment,
	}
	if err := s.repo.AddReview(ctx, review, to, models.ReviewableStatuses()); err != nil {
		return nil, err
	}

	s.logger.Info("🔍 change request %s reviewed by %s: %s", id, principal.Email, decision)
	return s.repo.Get(ctx, id)
}

// Apply publishes the proposed configuration and marks the request
// applied. The publish happens before the status flip: branch creation is
// idempotent, so a retry after a failed flip is safe, while the reverse
// order could mark a request applied whose change never reached the
// repository.
func (s *Service) Apply(ctx context.Context, principal rbac.Principal, id string) (*models.ChangeRequest, error) {
	cr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Can(cr.ResourceType, models.ActionWrite) {
		return nil, apperrors.ErrPermissionDenied
	}
	if s.policy.ApplyRequiresAdmin && !principal.Can(models.ResourceChangeRequest, models.ActionAdmin) {
		return nil, apperrors.ErrPermissionDenied
	}
	if !models.CanTransition(cr.Status, models.StatusApplied) {
		return nil, apperrors.Conflict("cannot apply change request %s in status %s", id, cr.Status)
	}

	ref := flagstore.ResourceRef{Project: cr.Project, Key: cr.FlagKey}
	proposed, err := prettyJSON(cr.ProposedConfig)
	if err != nil {
		return nil, apperrors.Validation("proposedConfig", "stored document is not valid JSON")
	}

	// the authority on "current" is re-read now, not trusted from the
	// snapshot taken at proposal time
	current, err := s.flags.GetCurrentConfig(ctx, ref)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if current != nil && jsonEqual(current, cr.ProposedConfig) {
		s.logger.Warn("applying change request %s with no delta against current config", id)
	}

	if s.publisher != nil {
		title := fmt.Sprintf("Update %s %s (change request %s)", cr.ResourceType, cr.FlagKey, shortID(cr.ID))
		changes := gitops.ChangeSet{ref.RepoPath(): proposed}
		branch := branchName(cr)

		if _, err := s.publisher.Publish(ctx, changes, title, cr.Description, branch, s.policy.TargetBranch); err != nil {
			return nil, err
		}
	} else if err := s.flags.WriteConfig(ctx, ref, proposed); err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.repo.Transition(ctx, id, models.StatusApplied, models.ApplicableStatuses(), map[string]interface{}{
		"applied_at": &now,
		"applied_by": principal.ID,
	})
	if err != nil {
		// a concurrent transition won after our publish; the branch and
		// merge request exist but this request's state did not change
		return nil, err
	}

	s.logger.Success("✅ change request %s applied by %s", id, principal.Email)
	return s.repo.Get(ctx, id)
}

// Cancel abandons a request that has not been applied. Only the author or
// a change-request admin may cancel; nothing is written to the resource.
func (s *Service) Cancel(ctx context.Context, principal rbac.Principal, id string) (*models.ChangeRequest, error) {
	cr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Can(cr.ResourceType, models.ActionWrite) {
		return nil, apperrors.ErrPermissionDenied
	}
	if cr.AuthorID != principal.ID && !principal.Can(models.ResourceChangeRequest, models.ActionAdmin) {
		return nil, apperrors.ErrPermissionDenied
	}

	if err := s.repo.Transition(ctx, id, models.StatusCancelled, models.CancellableStatuses(), nil); err != nil {
		return nil, err
	}

	s.logger.Info("🚫 change request %s cancelled by %s", id, principal.Email)
	return s.repo.Get(ctx, id)
}

// Get returns one change request with its reviews.
func (s *Service) Get(ctx context.Context, principal rbac.Principal, id string) (*models.ChangeRequest, error) {
	if !principal.Can(models.ResourceChangeRequest, models.ActionRead) {
		return nil, apperrors.ErrPermissionDenied
	}
	return s.repo.Get(ctx, id)
}

// List returns change requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, principal rbac.Principal, filter ListFilter) ([]models.ChangeRequest, error) {
	if !principal.Can(models.ResourceChangeRequest, models.ActionRead) {
		return nil, apperrors.ErrPermissionDenied
	}
	return s.repo.List(ctx, filter)
}

// branchName derives the publish branch for a request. Including the short
// id keeps branches of successive proposals for the same flag distinct
// while staying stable across retries of one request.
func branchName(cr *models.ChangeRequest) string {
	return fmt.Sprintf("flagforge/%s-%s", cr.FlagKey, shortID(cr.ID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func prettyJSON(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func jsonEqual(a, b []byte) bool {
	var left, right interface{}
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
