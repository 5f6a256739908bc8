package authgate

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Plan is the subscription tier
type Plan = string

const (
	// PlanStart is the entry tier
	PlanStart Plan = "start"
	// PlanPlus is the mid tier
	PlanPlus Plan = "plus"
	// PlanPro is the top tier
	PlanPro Plan = "pro"
)

// IsValidPlan checks if the plan is one of the predefined tiers
func IsValidPlan(p Plan) bool {
	switch p {
	case PlanStart, PlanPlus, PlanPro:
		return true
	default:
		return false
	}
}

// EntitlementStatus is the subscription row status
type EntitlementStatus = string

const (
	// EntitlementStatusActive is a live subscription
	EntitlementStatusActive EntitlementStatus = "active"
	// EntitlementStatusInactive is a lapsed subscription
	EntitlementStatusInactive EntitlementStatus = "inactive"
	// EntitlementStatusCancelled is a cancelled subscription
	EntitlementStatusCancelled EntitlementStatus = "cancelled"
)

// PlanEntitlement is the subscription row model
type PlanEntitlement struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`
	ID            uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID         `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Plan          Plan              `bun:"plan,notnull" json:"plan,omitempty"`
	Status        EntitlementStatus `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time        `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsActive reports whether this row grants access
func (e *PlanEntitlement) IsActive() bool {
	return e != nil && e.Status == EntitlementStatusActive
}
