package authgate

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entitlements is the subscription repository
type Entitlements interface {
	repository.Repository[*PlanEntitlement]

	// QueryActiveEntitlement returns the most recent active row for the
	// user, or nil when none exists.
	QueryActiveEntitlement(ctx context.Context, userID uuid.UUID) (*PlanEntitlement, error)

	// Grant upserts an active row for (user, plan). Used by the back office
	// when provisioning accounts.
	Grant(ctx context.Context, userID uuid.UUID, plan Plan) (*PlanEntitlement, error)
	GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, plan Plan) (*PlanEntitlement, error)

	// Cancel marks every active row for the user as cancelled.
	Cancel(ctx context.Context, userID uuid.UUID) error
	CancelTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type entitlements struct {
	repository.Repository[*PlanEntitlement]
	db *bun.DB
}

var (
	_ Entitlements     = (*entitlements)(nil)
	_ EntitlementStore = (*entitlements)(nil)
)

// NewEntitlementsRepository returns the bun-backed Entitlements repository.
func NewEntitlementsRepository(db *bun.DB) Entitlements {
	repo := repository.NewRepository[*PlanEntitlement](db, repository.ModelHandlers[*PlanEntitlement]{
		NewRecord: func() *PlanEntitlement { return &PlanEntitlement{} },
		GetID: func(e *PlanEntitlement) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *PlanEntitlement, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
	})

	return &entitlements{
		Repository: repo,
		db:         db,
	}
}

func (e *entitlements) QueryActiveEntitlement(ctx context.Context, userID uuid.UUID) (*PlanEntitlement, error) {
	return e.queryActiveEntitlementTx(ctx, e.db, userID)
}

func (e *entitlements) queryActiveEntitlementTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*PlanEntitlement, error) {
	record := &PlanEntitlement{}

	err := tx.NewSelect().
		Model(record).
		Where("sub.user_id = ?", userID).
		Where("sub.status = ?", EntitlementStatusActive).
		OrderExpr("sub.created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (e *entitlements) Grant(ctx context.Context, userID uuid.UUID, plan Plan) (*PlanEntitlement, error) {
	return e.GrantTx(ctx, e.db, userID, plan)
}

func (e *entitlements) GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, plan Plan) (*PlanEntitlement, error) {
	record := &PlanEntitlement{
		UserID: userID,
		Plan:   plan,
		Status: EntitlementStatusActive,
	}

	// deterministic id so repeated grants for the same (user, plan) pair
	// update rather than duplicate
	if id, err := hashid.NewUUID(userID.String() + ":" + string(plan)); err == nil {
		record.ID = id
	}

	now := time.Now()
	record.UpdatedAt = &now

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (e *entitlements) Cancel(ctx context.Context, userID uuid.UUID) error {
	return e.CancelTx(ctx, e.db, userID)
}

func (e *entitlements) CancelTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	now := time.Now()

	_, err := tx.NewUpdate().
		Model((*PlanEntitlement)(nil)).
		Set("status = ?", EntitlementStatusCancelled).
		Set("updated_at = ?", now).
		Where("user_id = ?", userID).
		Where("status = ?", EntitlementStatusActive).
		Exec(ctx)

	return err
}
