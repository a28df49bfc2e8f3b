// internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"librarium/internal/apperror"
	"librarium/internal/config"
)

// Querier is the subset of sqlx operations shared by *sqlx.DB and *sqlx.Tx.
// Store methods take a Querier explicitly so every operation runs against the
// handle its caller chose: the pool for reads, a transaction for writes.
type Querier interface {
	sqlx.ExtContext
}

// Runner hands out queriers and runs functions inside a transaction. Services
// depend on this interface rather than on *sqlx.DB so tests can substitute an
// in-memory implementation.
type Runner interface {
	// Querier returns a plain (non-transactional) handle for read paths.
	Querier() Querier

	// WithTx runs fn inside a single transaction. The transaction is rolled
	// back whenever fn returns an error, so no partial state survives a
	// raised business error.
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type sqlRunner struct {
	db *sqlx.DB
}

// NewRunner wraps db in the Runner used by all services.
func NewRunner(db *sqlx.DB) Runner {
	return &sqlRunner{db: db}
}

func (r *sqlRunner) Querier() Querier {
	return r.db
}

func (r *sqlRunner) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Open connects to Postgres, verifies the connection and applies pool limits.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return db, nil
}

// Postgres error codes that carry business meaning.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// TranslateError converts constraint violations reported by the driver into
// typed business errors. Uniqueness is double-checked by the services, but the
// partial unique indexes are the last line of defense under concurrent writes
// and their violations must surface as 400s, not 500s.
func TranslateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pgUniqueViolation:
		return apperror.Duplicatef("duplicate value violates unique constraint %q", pqErr.Constraint)
	case pgForeignKeyViolation:
		return apperror.Invalidf("referenced record does not exist (%s)", pqErr.Constraint)
	default:
		return err
	}
}
