package memory

import (
	"context"
	"sync"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

type statementKey struct {
	tenant      domain.TenantID
	account     domain.AccountID
	statementType domain.StatementType
	periodStart time.Time
	periodEnd   time.Time
}

// StatementRepository is an in-memory StatementRepository.
type StatementRepository struct {
	mu         sync.Mutex
	statements map[domain.StatementID]domain.Statement
	byKey      map[statementKey]domain.StatementID
}

// NewStatementRepository constructs an empty in-memory statement repository.
func NewStatementRepository() *StatementRepository {
	return &StatementRepository{
		statements: make(map[domain.StatementID]domain.Statement),
		byKey:      make(map[statementKey]domain.StatementID),
	}
}

func (r *StatementRepository) Create(ctx context.Context, statement domain.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := statementKey{statement.TenantID, statement.AccountID, statement.Type, statement.PeriodStart, statement.PeriodEnd}
	if _, exists := r.byKey[key]; exists {
		return apperrors.ErrConflict
	}
	r.statements[statement.ID] = statement
	r.byKey[key] = statement.ID
	return nil
}

func (r *StatementRepository) Update(ctx context.Context, statement domain.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statements[statement.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.statements[statement.ID] = statement
	return nil
}

func (r *StatementRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.StatementID) (domain.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statements[id]
	if !ok || s.TenantID != tenant {
		return domain.Statement{}, apperrors.ErrNotFound
	}
	return s, nil
}

func (r *StatementRepository) FindExisting(ctx context.Context, tenant domain.TenantID, account domain.AccountID, t domain.StatementType, periodStart, periodEnd time.Time) (domain.Statement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[statementKey{tenant, account, t, periodStart, periodEnd}]
	if !ok {
		return domain.Statement{}, false, nil
	}
	return r.statements[id], true, nil
}
