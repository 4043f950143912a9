package memory

import (
	"context"
	"sync"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

type idempotencyKey struct {
	tenant domain.TenantID
	key    string
}

type externalKey struct {
	provider   string
	externalID string
}

// PaymentIntentRepository is an in-memory PaymentIntentRepository.
type PaymentIntentRepository struct {
	mu           sync.Mutex
	intents      map[domain.PaymentIntentID]domain.PaymentIntent
	byIdempotent map[idempotencyKey]domain.PaymentIntentID
	byExternal   map[externalKey]domain.PaymentIntentID
}

// NewPaymentIntentRepository constructs an empty in-memory payment intent
// repository.
func NewPaymentIntentRepository() *PaymentIntentRepository {
	return &PaymentIntentRepository{
		intents:      make(map[domain.PaymentIntentID]domain.PaymentIntent),
		byIdempotent: make(map[idempotencyKey]domain.PaymentIntentID),
		byExternal:   make(map[externalKey]domain.PaymentIntentID),
	}
}

func (r *PaymentIntentRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

func (r *PaymentIntentRepository) Create(ctx context.Context, uow repositories.UnitOfWork, intent domain.PaymentIntent) error {
	ik := idempotencyKey{intent.TenantID, intent.IdempotencyKey}
	if _, exists := r.byIdempotent[ik]; exists {
		return apperrors.ErrConflict
	}
	r.intents[intent.ID] = intent
	r.byIdempotent[ik] = intent.ID
	if intent.ExternalID != "" {
		r.byExternal[externalKey{intent.ProviderName, intent.ExternalID}] = intent.ID
	}
	return nil
}

func (r *PaymentIntentRepository) Update(ctx context.Context, uow repositories.UnitOfWork, intent domain.PaymentIntent) error {
	if _, ok := r.intents[intent.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.intents[intent.ID] = intent
	if intent.ExternalID != "" {
		r.byExternal[externalKey{intent.ProviderName, intent.ExternalID}] = intent.ID
	}
	return nil
}

func (r *PaymentIntentRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.PaymentIntentID) (domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || intent.TenantID != tenant {
		return domain.PaymentIntent{}, apperrors.ErrNotFound
	}
	return intent, nil
}

func (r *PaymentIntentRepository) FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.PaymentIntent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIdempotent[idempotencyKey{tenant, key}]
	if !ok {
		return domain.PaymentIntent{}, false, nil
	}
	return r.intents[id], true, nil
}

func (r *PaymentIntentRepository) FindByProviderExternalID(ctx context.Context, provider, externalID string) (domain.PaymentIntent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExternal[externalKey{provider, externalID}]
	if !ok {
		return domain.PaymentIntent{}, false, nil
	}
	return r.intents[id], true, nil
}

func (r *PaymentIntentRepository) ListProcessingOlderThan(ctx context.Context, threshold time.Time) ([]domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PaymentIntent
	for _, intent := range r.intents {
		if intent.Status == domain.PaymentProcessing && intent.UpdatedAt.Before(threshold) {
			out = append(out, intent)
		}
	}
	return out, nil
}

func (r *PaymentIntentRepository) ListForReconciliation(ctx context.Context, tenant domain.TenantID, statuses []domain.PaymentStatus, from, to time.Time) ([]domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[domain.PaymentStatus]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []domain.PaymentIntent
	for _, intent := range r.intents {
		if intent.TenantID != tenant || !allowed[intent.Status] {
			continue
		}
		if intent.PaidAt.Before(from) || intent.PaidAt.After(to) {
			continue
		}
		out = append(out, intent)
	}
	return out, nil
}
