package changerequests

import (
	"context"
	"sort"
	"sync"
	"time"

	"flagforge/internal/apperrors"
	"flagforge/internal/models"

	"github.com/google/uuid"
)

// memoryRepository backs tests that exercise the workflow without a
// database. The same compare-and-set semantics hold: transition checks and
// writes happen under one lock.
type memoryRepository struct {
	mu       sync.Mutex
	requests map[string]*models.ChangeRequest
	reviews  map[string][]models.ChangeRequestReview
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		requests: make(map[string]*models.ChangeRequest),
		reviews:  make(map[string][]models.ChangeRequestReview),
	}
}

func (r *memoryRepository) Create(ctx context.Context, cr *models.ChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	now := time.Now()
	cr.CreatedAt = now
	cr.UpdatedAt = now
	if cr.Status == "" {
		cr.Status = models.StatusPending
	}
	clone := *cr
	r.requests[cr.ID] = &clone
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*models.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NotFound("change request", id)
	}
	clone := *stored
	clone.Reviews = append([]models.ChangeRequestReview(nil), r.reviews[id]...)
	return &clone, nil
}

func (r *memoryRepository) List(ctx context.Context, filter ListFilter) ([]models.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ChangeRequest
	for _, stored := range r.requests {
		if filter.Status != "" && stored.Status != filter.Status {
			continue
		}
		if filter.Project != "" && stored.Project != filter.Project {
			continue
		}
		if filter.FlagKey != "" && stored.FlagKey != filter.FlagKey {
			continue
		}
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) Transition(ctx context.Context, id string, to models.ChangeRequestStatus, from []models.ChangeRequestStatus, extra map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, to, from, extra)
}

func (r *memoryRepository) AddReview(ctx context.Context, review *models.ChangeRequestReview, to models.ChangeRequestStatus, from []models.ChangeRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.transitionLocked(review.ChangeRequestID, to, from, nil); err != nil {
		return err
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	r.reviews[review.ChangeRequestID] = append(r.reviews[review.ChangeRequestID], *review)
	return nil
}

func (r *memoryRepository) transitionLocked(id string, to models.ChangeRequestStatus, from []models.ChangeRequestStatus, extra map[string]interface{}) error {
	stored, ok := r.requests[id]
	if !ok {
		return apperrors.NotFound("change request", id)
	}

	allowed := false
	for _, s := range from {
		if stored.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.Conflict("cannot move change request %s from %s to %s", id, stored.Status, to)
	}

	stored.Status = to
	stored.UpdatedAt = time.Now()
	if appliedAt, ok := extra["applied_at"].(*time.Time); ok {
		stored.AppliedAt = appliedAt
	}
	if appliedBy, ok := extra["applied_by"].(string); ok {
		stored.AppliedBy = appliedBy
	}
	return nil
}
