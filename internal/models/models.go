package models

import (
	"flagforge/internal/events"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeRequest is a persisted proposal to replace a resource's
// configuration. Rows are never deleted; terminal statuses keep the audit
// trail intact.
type ChangeRequest struct {
	Base
	Title        string              `gorm:"not null" json:"title" validate:"required,min=2"`
	Description  string              `json:"description"`
	Status       ChangeRequestStatus `gorm:"not null;default:'pending';index" json:"status"`
	AuthorID     string              `gorm:"type:uuid;not null" json:"authorId"`
	AuthorEmail  string              `json:"authorEmail"`
	AuthorName   string              `json:"authorName"`
	Project      string              `gorm:"index" json:"project,omitempty"`
	FlagKey      string              `gorm:"index" json:"flagKey,omitempty"`
	ResourceType string              `gorm:"not null;default:'flag'" json:"resourceType"`
	// CurrentConfig is the snapshot taken at proposal time; ProposedConfig
	// is the target document. Both are opaque to the engine.
	CurrentConfig  datatypes.JSON        `gorm:"type:jsonb" json:"currentConfig"`
	ProposedConfig datatypes.JSON        `gorm:"type:jsonb" json:"proposedConfig" validate:"required"`
	AppliedAt      *time.Time            `json:"appliedAt,omitempty"`
	AppliedBy      string                `json:"appliedBy,omitempty"`
	Reviews        []ChangeRequestReview `gorm:"foreignKey:ChangeRequestID;constraint:OnDelete:CASCADE" json:"reviews,omitempty"`
}

func (cr *ChangeRequest) AfterCreate(tx *gorm.DB) error {
	events.Emit("changerequest.created", cr)
	return nil
}

// ChangeRequestReview is an immutable review entry. Reviews are append
// only; the owning change request's status tracks the latest decision.
type ChangeRequestReview struct {
	Base
	ChangeRequestID string         `gorm:"type:uuid;not null;index" json:"changeRequestId"`
	ReviewerID      string         `gorm:"type:uuid;not null" json:"reviewerId"`
	ReviewerEmail   string         `json:"reviewerEmail"`
	ReviewerName    string         `json:"reviewerName"`
	Decision        ReviewDecision `gorm:"not null" json:"decision" validate:"required,cr_decision"`
	Comment         string         `json:"comment,omitempty"`
}

func (r *ChangeRequestReview) AfterCreate(tx *gorm.DB) error {
	events.Emit("changerequest.reviewed", r)
	return nil
}
