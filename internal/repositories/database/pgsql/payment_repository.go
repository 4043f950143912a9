package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// PaymentIntentRepository is the pgx-backed repositories.PaymentIntentRepository.
type PaymentIntentRepository struct {
	BaseRepository
}

// NewPaymentIntentRepository constructs a pgx-backed payment intent repository.
func NewPaymentIntentRepository(pool *pgxpool.Pool) *PaymentIntentRepository {
	return &PaymentIntentRepository{BaseRepository{Pool: pool}}
}

const paymentIntentColumns = `
	intent_id, tenant_id, customer_id, lease_id, payment_type, status,
	amount_minor, currency, platform_fee_minor, net_amount_minor,
	description, statement_descriptor, idempotency_key, external_id, provider_name,
	refunded_amount_minor, refund_count, failure_reason, receipt_url,
	created_at, updated_at, paid_at
`

func scanPaymentIntent(row pgx.Row) (domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	var leaseID, externalID, providerName, failureReason, receiptURL sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.TenantID, &p.CustomerID, &leaseID, &p.Type, &p.Status,
		&p.Amount.AmountMinor, &p.Amount.Currency, &p.PlatformFee.AmountMinor, &p.NetAmount.AmountMinor,
		&p.Description, &p.StatementDescriptor, &p.IdempotencyKey, &externalID, &providerName,
		&p.RefundedAmountMinor, &p.RefundCount, &failureReason, &receiptURL,
		&p.CreatedAt, &p.UpdatedAt, &paidAt,
	)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	p.PlatformFee.Currency = p.Amount.Currency
	p.NetAmount.Currency = p.Amount.Currency
	p.LeaseID = domain.LeaseID(leaseID.String)
	p.ExternalID = externalID.String
	p.ProviderName = providerName.String
	p.FailureReason = failureReason.String
	p.ReceiptURL = receiptURL.String
	if paidAt.Valid {
		p.PaidAt = paidAt.Time
	}
	return p, nil
}

func (r *PaymentIntentRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	return r.BaseRepository.Atomic(ctx, fn)
}

func (r *PaymentIntentRepository) Create(ctx context.Context, uow repositories.UnitOfWork, intent domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (` + paymentIntentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22);
	`
	_, err := r.DB(uow).Exec(ctx, query,
		string(intent.ID), string(intent.TenantID), string(intent.CustomerID), nullString(string(intent.LeaseID)),
		string(intent.Type), string(intent.Status),
		intent.Amount.AmountMinor, string(intent.Amount.Currency), intent.PlatformFee.AmountMinor, intent.NetAmount.AmountMinor,
		intent.Description, intent.StatementDescriptor, intent.IdempotencyKey, nullString(intent.ExternalID), nullString(intent.ProviderName),
		intent.RefundedAmountMinor, intent.RefundCount, nullString(intent.FailureReason), nullString(intent.ReceiptURL),
		intent.CreatedAt, intent.UpdatedAt, nullTime(intent.PaidAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: idempotency key %s already used", apperrors.ErrConflict, intent.IdempotencyKey)
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

func (r *PaymentIntentRepository) Update(ctx context.Context, uow repositories.UnitOfWork, intent domain.PaymentIntent) error {
	query := `
		UPDATE payment_intents SET
			status = $2, external_id = $3, provider_name = $4,
			refunded_amount_minor = $5, refund_count = $6, failure_reason = $7, receipt_url = $8,
			updated_at = $9, paid_at = $10
		WHERE intent_id = $1;
	`
	tag, err := r.DB(uow).Exec(ctx, query,
		string(intent.ID), string(intent.Status), nullString(intent.ExternalID), nullString(intent.ProviderName),
		intent.RefundedAmountMinor, intent.RefundCount, nullString(intent.FailureReason), nullString(intent.ReceiptURL),
		intent.UpdatedAt, nullTime(intent.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment intent %s", apperrors.ErrNotFound, intent.ID)
	}
	return nil
}

func (r *PaymentIntentRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.PaymentIntentID) (domain.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE intent_id = $1 AND tenant_id = $2;`
	p, err := scanPaymentIntent(r.Pool.QueryRow(ctx, query, string(id), string(tenant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, fmt.Errorf("%w: payment intent %s", apperrors.ErrNotFound, id)
		}
		return domain.PaymentIntent{}, fmt.Errorf("get payment intent: %w", err)
	}
	return p, nil
}

func (r *PaymentIntentRepository) FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.PaymentIntent, bool, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE tenant_id = $1 AND idempotency_key = $2;`
	p, err := scanPaymentIntent(r.Pool.QueryRow(ctx, query, string(tenant), key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, false, nil
		}
		return domain.PaymentIntent{}, false, fmt.Errorf("find payment intent by idempotency key: %w", err)
	}
	return p, true, nil
}

func (r *PaymentIntentRepository) FindByProviderExternalID(ctx context.Context, provider, externalID string) (domain.PaymentIntent, bool, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE provider_name = $1 AND external_id = $2;`
	p, err := scanPaymentIntent(r.Pool.QueryRow(ctx, query, provider, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, false, nil
		}
		return domain.PaymentIntent{}, false, fmt.Errorf("find payment intent by external id: %w", err)
	}
	return p, true, nil
}

func (r *PaymentIntentRepository) ListProcessingOlderThan(ctx context.Context, threshold time.Time) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC;`
	rows, err := r.Pool.Query(ctx, query, string(domain.PaymentProcessing), threshold)
	if err != nil {
		return nil, fmt.Errorf("list processing payment intents: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentIntent
	for rows.Next() {
		p, err := scanPaymentIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment intent: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentIntentRepository) ListForReconciliation(ctx context.Context, tenant domain.TenantID, statuses []domain.PaymentStatus, from, to time.Time) ([]domain.PaymentIntent, error) {
	rawStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		rawStatuses[i] = string(s)
	}
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents
		WHERE tenant_id = $1 AND status = ANY($2) AND paid_at >= $3 AND paid_at <= $4
		ORDER BY paid_at ASC;`
	rows, err := r.Pool.Query(ctx, query, string(tenant), rawStatuses, from, to)
	if err != nil {
		return nil, fmt.Errorf("list payment intents for reconciliation: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentIntent
	for rows.Next() {
		p, err := scanPaymentIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment intent: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ repositories.PaymentIntentRepository = (*PaymentIntentRepository)(nil)
