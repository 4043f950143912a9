package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// OutboxStore is an in-memory OutboxStore. Locking is modeled with the same
// (owner, expires_at) fields the pgsql implementation persists, so the
// outbox processor's polling logic is identical across both backends.
type OutboxStore struct {
	mu        sync.Mutex
	envelopes map[string]domain.OutboxEnvelope
}

// NewOutboxStore constructs an empty in-memory outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{envelopes: make(map[string]domain.OutboxEnvelope)}
}

func (s *OutboxStore) Enqueue(ctx context.Context, uow repositories.UnitOfWork, envelope domain.OutboxEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if envelope.Status == "" {
		envelope.Status = domain.OutboxPending
	}
	s.envelopes[envelope.ID] = envelope
	return nil
}

func (s *OutboxStore) LockBatch(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.OutboxEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var candidates []domain.OutboxEnvelope
	for _, e := range s.envelopes {
		if e.Status != domain.OutboxPending && e.Status != domain.OutboxFailed {
			continue
		}
		if !e.NextRetryAt.IsZero() && e.NextRetryAt.After(now) {
			continue
		}
		if e.LockOwner != "" && e.LockExpiresAt.After(now) && e.LockOwner != owner {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	locked := make([]domain.OutboxEnvelope, 0, len(candidates))
	for _, e := range candidates {
		e.LockOwner = owner
		e.LockExpiresAt = now.Add(ttl)
		s.envelopes[e.ID] = e
		locked = append(locked, e)
	}
	return locked, nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.envelopes[id]
	if !ok {
		return nil
	}
	e.Status = domain.OutboxPublished
	s.envelopes[id] = e
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.envelopes[id]
	if !ok {
		return nil
	}
	e.RetryCount++
	e.LastError = lastError
	if e.RetryCount >= domain.MaxOutboxRetries {
		e.Status = domain.OutboxDeadLetter
	} else {
		e.Status = domain.OutboxFailed
		e.NextRetryAt = time.Now().UTC().Add(domain.NextBackoff(e.RetryCount))
	}
	s.envelopes[id] = e
	return nil
}
