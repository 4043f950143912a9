package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// OutboxRepository is the pgx-backed repositories.OutboxStore. Claiming a
// batch is a single UPDATE ... RETURNING guarded by FOR UPDATE SKIP LOCKED, so
// multiple processor instances can poll the same table concurrently without
// double-publishing.
type OutboxRepository struct {
	BaseRepository
}

// NewOutboxRepository constructs a pgx-backed outbox store.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{BaseRepository{Pool: pool}}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, uow repositories.UnitOfWork, envelope domain.OutboxEnvelope) error {
	query := `
		INSERT INTO outbox_envelopes (
			envelope_id, tenant_id, aggregate_type, aggregate_id, event_type, payload,
			status, retry_count, next_retry_at, last_error, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);
	`
	_, err := r.DB(uow).Exec(ctx, query,
		envelope.ID, string(envelope.TenantID), envelope.AggregateType, envelope.AggregateID,
		string(envelope.EventType), envelope.Payload, string(envelope.Status), envelope.RetryCount,
		envelope.NextRetryAt, nullString(envelope.LastError), envelope.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox envelope: %w", err)
	}
	return nil
}

func (r *OutboxRepository) LockBatch(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.OutboxEnvelope, error) {
	now := time.Now().UTC()
	query := `
		UPDATE outbox_envelopes
		SET lock_owner = $1, lock_expires_at = $2
		WHERE envelope_id IN (
			SELECT envelope_id FROM outbox_envelopes
			WHERE status IN ($3, $4)
			  AND next_retry_at <= $2
			  AND (lock_owner IS NULL OR lock_expires_at < $2)
			ORDER BY created_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING envelope_id, tenant_id, aggregate_type, aggregate_id, event_type, payload,
			status, retry_count, next_retry_at, last_error, created_at;
	`
	rows, err := r.Pool.Query(ctx, query, owner, now.Add(ttl), string(domain.OutboxPending), string(domain.OutboxFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("lock outbox batch: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEnvelope
	for rows.Next() {
		var e domain.OutboxEnvelope
		var lastError sql.NullString
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
			&e.Status, &e.RetryCount, &e.NextRetryAt, &lastError, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox envelope: %w", err)
		}
		e.LastError = lastError.String
		e.LockOwner = owner
		e.LockExpiresAt = now.Add(ttl)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	query := `UPDATE outbox_envelopes SET status = $2, lock_owner = NULL, lock_expires_at = NULL WHERE envelope_id = $1;`
	_, err := r.Pool.Exec(ctx, query, id, string(domain.OutboxPublished))
	if err != nil {
		return fmt.Errorf("mark outbox envelope published: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	row := r.Pool.QueryRow(ctx, `SELECT retry_count FROM outbox_envelopes WHERE envelope_id = $1;`, id)
	var retryCount int
	if err := row.Scan(&retryCount); err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return fmt.Errorf("read outbox retry count: %w", err)
	}
	retryCount++

	status := domain.OutboxFailed
	if retryCount >= domain.MaxOutboxRetries {
		status = domain.OutboxDeadLetter
	}
	nextRetryAt := time.Now().UTC().Add(domain.NextBackoff(retryCount))

	query := `
		UPDATE outbox_envelopes
		SET status = $2, retry_count = $3, next_retry_at = $4, last_error = $5, lock_owner = NULL, lock_expires_at = NULL
		WHERE envelope_id = $1;
	`
	_, err := r.Pool.Exec(ctx, query, id, string(status), retryCount, nextRetryAt, nullString(lastError))
	if err != nil {
		return fmt.Errorf("mark outbox envelope failed: %w", err)
	}
	return nil
}

var _ repositories.OutboxStore = (*OutboxRepository)(nil)
