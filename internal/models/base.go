package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

type ChangeRequestStatus string

const (
	StatusPending   ChangeRequestStatus = "pending"
	StatusApproved  ChangeRequestStatus = "approved"
	StatusRejected  ChangeRequestStatus = "rejected"
	StatusApplied   ChangeRequestStatus = "applied"
	StatusCancelled ChangeRequestStatus = "cancelled"
)

type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// validTransitions is the single source of truth for the change-request
// state machine. applied and cancelled are terminal. approved and rejected
// may flip each other because status always tracks the latest review
// decision.
var validTransitions = map[ChangeRequestStatus][]ChangeRequestStatus{
	StatusPending:   {StatusApproved, StatusRejected, StatusApplied, StatusCancelled},
	StatusApproved:  {StatusApproved, StatusRejected, StatusApplied, StatusCancelled},
	StatusRejected:  {StatusApproved, StatusRejected},
	StatusApplied:   {},
	StatusCancelled: {},
}

// CanTransition reports whether a change request may move from one status
// to another.
func CanTransition(from, to ChangeRequestStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReviewableStatuses are the source statuses from which a review may still
// be submitted.
func ReviewableStatuses() []ChangeRequestStatus {
	return []ChangeRequestStatus{StatusPending, StatusApproved, StatusRejected}
}

// ApplicableStatuses are the source statuses from which apply is legal.
func ApplicableStatuses() []ChangeRequestStatus {
	return []ChangeRequestStatus{StatusPending, StatusApproved}
}

// CancellableStatuses are the source statuses from which cancel is legal.
func CancellableStatuses() []ChangeRequestStatus {
	return []ChangeRequestStatus{StatusPending, StatusApproved}
}

// Resources known to the permission engine. A role permission with
// resource "*" matches all of them.
const (
	ResourceFlag          = "flag"
	ResourceProject       = "project"
	ResourceFlagSet       = "flagset"
	ResourceSegment       = "segment"
	ResourceSettings      = "settings"
	ResourceChangeRequest = "change_request"
	ResourceAPIKey        = "apikey"
	ResourceRole          = "role"
	ResourceUser          = "user"
)

// Actions known to the permission engine.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionReview = "review"
	ActionAdmin  = "admin"
	ActionAll    = "*"
)

// Built-in role names. Rows with these names are seeded once and can never
// be edited or deleted.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// IsBuiltinRoleName checks if a given name belongs to a built-in role
func IsBuiltinRoleName(name string) bool {
	switch name {
	case RoleViewer, RoleEditor, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}
