package authgate_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	authgate "github.com/primevalon/go-authgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateSubscriptions = `CREATE TABLE subscriptions (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

func setupEntitlementsRepo(t *testing.T) (authgate.Entitlements, *bun.DB, func()) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateSubscriptions)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return authgate.NewEntitlementsRepository(bunDB), bunDB, cleanup
}

func insertSubscription(t *testing.T, db *bun.DB, userID uuid.UUID, plan authgate.Plan, status authgate.EntitlementStatus, createdAt time.Time) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO subscriptions (id, user_id, plan, status, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), userID.String(), plan, status, createdAt,
	)
	require.NoError(t, err)
}

func TestQueryActiveEntitlement(t *testing.T) {
	repo, db, cleanup := setupEntitlementsRepo(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	insertSubscription(t, db, userID, authgate.PlanStart, authgate.EntitlementStatusActive, now.Add(-48*time.Hour))
	insertSubscription(t, db, userID, authgate.PlanPro, authgate.EntitlementStatusActive, now)
	insertSubscription(t, db, userID, authgate.PlanPlus, authgate.EntitlementStatusCancelled, now.Add(time.Hour))

	row, err := repo.QueryActiveEntitlement(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)

	// newest active row wins; cancelled rows never count regardless of age
	assert.Equal(t, authgate.PlanPro, row.Plan)
	assert.True(t, row.IsActive())
}

func TestQueryActiveEntitlementNoRows(t *testing.T) {
	repo, _, cleanup := setupEntitlementsRepo(t)
	defer cleanup()

	row, err := repo.QueryActiveEntitlement(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestQueryActiveEntitlementIgnoresOtherUsers(t *testing.T) {
	repo, db, cleanup := setupEntitlementsRepo(t)
	defer cleanup()

	userID := uuid.New()
	otherID := uuid.New()
	insertSubscription(t, db, otherID, authgate.PlanPro, authgate.EntitlementStatusActive, time.Now().UTC())

	row, err := repo.QueryActiveEntitlement(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGrantAndCancel(t *testing.T) {
	repo, _, cleanup := setupEntitlementsRepo(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()

	granted, err := repo.Grant(ctx, userID, authgate.PlanPlus)
	require.NoError(t, err)
	assert.Equal(t, authgate.PlanPlus, granted.Plan)
	assert.True(t, granted.IsActive())

	row, err := repo.QueryActiveEntitlement(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, authgate.PlanPlus, row.Plan)

	// granting the same (user, plan) again updates in place
	_, err = repo.Grant(ctx, userID, authgate.PlanPlus)
	require.NoError(t, err)

	require.NoError(t, repo.Cancel(ctx, userID))

	row, err = repo.QueryActiveEntitlement(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRepositoryManager(t *testing.T) {
	_, db, cleanup := setupEntitlementsRepo(t)
	defer cleanup()

	manager := authgate.NewRepositoryManager(db)
	assert.NoError(t, manager.Validate())
	assert.NotNil(t, manager.Entitlements())

	err := manager.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := manager.Entitlements().GrantTx(ctx, tx, uuid.New(), authgate.PlanStart)
		return err
	})
	assert.NoError(t, err)
}
