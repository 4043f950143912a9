package pgsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx, so repository query code
// is identical whether or not it runs inside a unit of work.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// unitOfWork carries the live transaction a pgx-backed Atomic call opened.
// Repository methods type-assert the UnitOfWork they receive back to this
// to get at tx; outside of Atomic, uow is nil and DB falls back to the pool.
type unitOfWork struct {
	tx pgx.Tx
}

// BaseRepository provides the pool and the tx-or-pool resolution every
// pgsql repository embeds.
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// DB resolves the querier to use for this call: the transaction carried by
// uow if one was opened via Atomic, otherwise the pool directly.
func (r *BaseRepository) DB(uow repositories.UnitOfWork) DB {
	if u, ok := uow.(*unitOfWork); ok && u != nil {
		return u.tx
	}
	return r.Pool
}

// Atomic opens a pgx transaction, runs fn with a UnitOfWork wrapping it, and
// commits on success or rolls back on error or panic. Every repository
// embeds BaseRepository and exposes its own Atomic by delegating here, so
// any one of them can serve as the Atomic root for a multi-repository
// operation (the ledger engine uses the account repository's).
func (r *BaseRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &unitOfWork{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
