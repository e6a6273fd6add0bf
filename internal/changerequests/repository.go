// Package changerequests owns the change-request workflow: proposing a
// configuration change, routing it through review, and applying or
// cancelling it. All status transitions go through single-row
// compare-and-set updates so concurrent calls against the same request
// serialize instead of racing.
package changerequests

import (
	"context"
	"errors"

	"flagforge/internal/apperrors"
	"flagforge/internal/models"

	"gorm.io/gorm"
)

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status  models.ChangeRequestStatus
	Project string
	FlagKey string
}

// Repository persists change requests and their reviews.
type Repository interface {
	Create(ctx context.Context, cr *models.ChangeRequest) error

	// Get loads a change request with its reviews.
	Get(ctx context.Context, id string) (*models.ChangeRequest, error)

	List(ctx context.Context, filter ListFilter) ([]models.ChangeRequest, error)

	// Transition moves the request to a new status if and only if its
	// current status is one of from. Extra columns update in the same
	// statement. Returns apperrors.ErrNotFound when no such request exists
	// and apperrors.ErrConflict when the request exists but its status is
	// not in from.
	Transition(ctx context.Context, id string, to models.ChangeRequestStatus, from []models.ChangeRequestStatus, extra map[string]interface{}) error

	// AddReview appends a review and flips the request's status to match
	// the decision, atomically. Same error contract as Transition.
	AddReview(ctx context.Context, review *models.ChangeRequestReview, to models.ChangeRequestStatus, from []models.ChangeRequestStatus) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, cr *models.ChangeRequest) error {
	return r.db.WithContext(ctx).Create(cr).Error
}

func (r *gormRepository) Get(ctx context.Context, id string) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	err := r.db.WithContext(ctx).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&cr, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("change request", id)
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter) ([]models.ChangeRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.ChangeRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Project != "" {
		query = query.Where("project = ?", filter.Project)
	}
	if filter.FlagKey != "" {
		query = query.Where("flag_key = ?", filter.FlagKey)
	}

	var requests []models.ChangeRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *gormRepository) Transition(ctx context.Context, id string, to models.ChangeRequestStatus, from []models.ChangeRequestStatus, extra map[string]interface{}) error {
	return r.transition(r.db.WithContext(ctx), id, to, from, extra)
}

func (r *gormRepository) AddReview(ctx context.Context, review *models.ChangeRequestReview, to models.ChangeRequestStatus, from []models.ChangeRequestStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.transition(tx, review.ChangeRequestID, to, from, nil); err != nil {
			return err
		}
		return tx.Create(review).Error
	})
}

// transition is the compare-and-set at the heart of the state machine: one
// UPDATE guarded by the expected source statuses, so two concurrent calls
// cannot both win.
func (r *gormRepository) transition(tx *gorm.DB, id string, to models.ChangeRequestStatus, from []models.ChangeRequestStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for column, value := range extra {
		updates[column] = value
	}

	result := tx.Model(&models.ChangeRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// 0 rows: either the request does not exist, or its status moved
	var current models.ChangeRequest
	err := tx.Select("status").First(&current, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("change request", id)
	}
	if err != nil {
		return err
	}
	return apperrors.Conflict("cannot move change request %s from %s to %s", id, current.Status, to)
}
