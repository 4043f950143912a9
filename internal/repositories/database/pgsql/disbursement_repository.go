package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// DisbursementRepository is the pgx-backed repositories.DisbursementRepository.
type DisbursementRepository struct {
	BaseRepository
}

// NewDisbursementRepository constructs a pgx-backed disbursement repository.
func NewDisbursementRepository(pool *pgxpool.Pool) *DisbursementRepository {
	return &DisbursementRepository{BaseRepository{Pool: pool}}
}

const disbursementColumns = `
	disbursement_id, tenant_id, owner_id, amount_minor, currency, status,
	destination, destination_type, provider_name, transfer_id, idempotency_key,
	ledger_entry_id, failure_reason, created_at, updated_at, initiated_at, estimated_arrival
`

func scanDisbursement(row pgx.Row) (domain.Disbursement, error) {
	var d domain.Disbursement
	var providerName, transferID, ledgerEntryID, failureReason sql.NullString
	var initiatedAt, estimatedArrival sql.NullTime
	err := row.Scan(
		&d.ID, &d.TenantID, &d.OwnerID, &d.Amount.AmountMinor, &d.Amount.Currency, &d.Status,
		&d.Destination, &d.DestinationType, &providerName, &transferID, &d.IdempotencyKey,
		&ledgerEntryID, &failureReason, &d.CreatedAt, &d.UpdatedAt, &initiatedAt, &estimatedArrival,
	)
	if err != nil {
		return domain.Disbursement{}, err
	}
	d.ProviderName = providerName.String
	d.TransferID = transferID.String
	d.LedgerEntryID = domain.LedgerEntryID(ledgerEntryID.String)
	d.FailureReason = failureReason.String
	if initiatedAt.Valid {
		d.InitiatedAt = initiatedAt.Time
	}
	if estimatedArrival.Valid {
		d.EstimatedArrival = estimatedArrival.Time
	}
	return d, nil
}

func (r *DisbursementRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	return r.BaseRepository.Atomic(ctx, fn)
}

func (r *DisbursementRepository) Create(ctx context.Context, uow repositories.UnitOfWork, d domain.Disbursement) error {
	query := `INSERT INTO disbursements (` + disbursementColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`
	_, err := r.DB(uow).Exec(ctx, query,
		string(d.ID), string(d.TenantID), string(d.OwnerID), d.Amount.AmountMinor, string(d.Amount.Currency), string(d.Status),
		d.Destination, string(d.DestinationType), nullString(d.ProviderName), nullString(d.TransferID), d.IdempotencyKey,
		nullString(string(d.LedgerEntryID)), nullString(d.FailureReason), d.CreatedAt, d.UpdatedAt, nullTime(d.InitiatedAt), nullTime(d.EstimatedArrival),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: idempotency key %s already used", apperrors.ErrConflict, d.IdempotencyKey)
		}
		return fmt.Errorf("insert disbursement: %w", err)
	}
	return nil
}

func (r *DisbursementRepository) Update(ctx context.Context, uow repositories.UnitOfWork, d domain.Disbursement) error {
	query := `
		UPDATE disbursements SET
			status = $2, provider_name = $3, transfer_id = $4, ledger_entry_id = $5,
			failure_reason = $6, updated_at = $7, initiated_at = $8, estimated_arrival = $9
		WHERE disbursement_id = $1;
	`
	tag, err := r.DB(uow).Exec(ctx, query,
		string(d.ID), string(d.Status), nullString(d.ProviderName), nullString(d.TransferID), nullString(string(d.LedgerEntryID)),
		nullString(d.FailureReason), d.UpdatedAt, nullTime(d.InitiatedAt), nullTime(d.EstimatedArrival),
	)
	if err != nil {
		return fmt.Errorf("update disbursement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: disbursement %s", apperrors.ErrNotFound, d.ID)
	}
	return nil
}

func (r *DisbursementRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.DisbursementID) (domain.Disbursement, error) {
	query := `SELECT ` + disbursementColumns + ` FROM disbursements WHERE disbursement_id = $1 AND tenant_id = $2;`
	d, err := scanDisbursement(r.Pool.QueryRow(ctx, query, string(id), string(tenant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Disbursement{}, fmt.Errorf("%w: disbursement %s", apperrors.ErrNotFound, id)
		}
		return domain.Disbursement{}, fmt.Errorf("get disbursement: %w", err)
	}
	return d, nil
}

func (r *DisbursementRepository) FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.Disbursement, bool, error) {
	query := `SELECT ` + disbursementColumns + ` FROM disbursements WHERE tenant_id = $1 AND idempotency_key = $2;`
	d, err := scanDisbursement(r.Pool.QueryRow(ctx, query, string(tenant), key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Disbursement{}, false, nil
		}
		return domain.Disbursement{}, false, fmt.Errorf("find disbursement by idempotency key: %w", err)
	}
	return d, true, nil
}

var _ repositories.DisbursementRepository = (*DisbursementRepository)(nil)
