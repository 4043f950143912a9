package repositories

import "context"

// UnitOfWork is an opaque handle scoping a set of repository writes to one
// atomic operation. The pgx-backed implementation carries a pgx.Tx; the
// in-memory implementation carries nothing and relies on a package-level
// mutex instead. Callers never inspect it — they only pass it through to
// the repository methods that accept one.
type UnitOfWork interface{}

// Atomic begins a unit of work, executes fn, and commits on success or rolls
// back if fn returns an error (or panics). Every repository implementation
// that participates in journal posting, payment persistence, or disbursement
// execution must honour this: either every write inside fn is visible to
// later readers, or none are.
type Atomic interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
