package memory

import (
	"context"
	"sync"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// DisbursementRepository is an in-memory DisbursementRepository.
type DisbursementRepository struct {
	mu           sync.Mutex
	disbursements map[domain.DisbursementID]domain.Disbursement
	byIdempotent  map[idempotencyKey]domain.DisbursementID
}

// NewDisbursementRepository constructs an empty in-memory disbursement
// repository.
func NewDisbursementRepository() *DisbursementRepository {
	return &DisbursementRepository{
		disbursements: make(map[domain.DisbursementID]domain.Disbursement),
		byIdempotent:  make(map[idempotencyKey]domain.DisbursementID),
	}
}

func (r *DisbursementRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

func (r *DisbursementRepository) Create(ctx context.Context, uow repositories.UnitOfWork, d domain.Disbursement) error {
	ik := idempotencyKey{d.TenantID, d.IdempotencyKey}
	if _, exists := r.byIdempotent[ik]; exists {
		return apperrors.ErrConflict
	}
	r.disbursements[d.ID] = d
	r.byIdempotent[ik] = d.ID
	return nil
}

func (r *DisbursementRepository) Update(ctx context.Context, uow repositories.UnitOfWork, d domain.Disbursement) error {
	if _, ok := r.disbursements[d.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.disbursements[d.ID] = d
	return nil
}

func (r *DisbursementRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.DisbursementID) (domain.Disbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disbursements[id]
	if !ok || d.TenantID != tenant {
		return domain.Disbursement{}, apperrors.ErrNotFound
	}
	return d, nil
}

func (r *DisbursementRepository) FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.Disbursement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIdempotent[idempotencyKey{tenant, key}]
	if !ok {
		return domain.Disbursement{}, false, nil
	}
	return r.disbursements[id], true, nil
}
