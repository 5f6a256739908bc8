package authgate

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Entitlements() Entitlements
}

type mngr struct {
	db           *bun.DB
	entitlements Entitlements
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		entitlements: NewEntitlementsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.entitlements == nil {
		return errors.New("repository entitlements should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Entitlements() Entitlements {
	return m.entitlements
}
