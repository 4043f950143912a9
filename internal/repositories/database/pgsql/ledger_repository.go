package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
	"github.com/proptech-ledger/ledgerd/internal/utils/pagination"
)

// LedgerRepository is the pgx-backed repositories.LedgerRepository. Sequence
// allocation relies on a per-(tenant, account) row in account_sequences
// locked with SELECT ... FOR UPDATE, so concurrent postings against the same
// account serialize on that row rather than racing in application code.
type LedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository constructs a pgx-backed ledger repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{BaseRepository{Pool: pool}}
}

func (r *LedgerRepository) NextSequence(ctx context.Context, uow repositories.UnitOfWork, tenant domain.TenantID, account domain.AccountID) (int64, error) {
	db := r.DB(uow)
	var next int64
	err := db.QueryRow(ctx, `
		INSERT INTO account_sequences (tenant_id, account_id, next_sequence)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, account_id) DO UPDATE SET next_sequence = account_sequences.next_sequence + 1
		RETURNING next_sequence;
	`, string(tenant), string(account)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence number: %w", err)
	}
	return next, nil
}

func (r *LedgerRepository) CreateJournal(ctx context.Context, uow repositories.UnitOfWork, journal domain.Journal) error {
	query := `
		INSERT INTO journals (journal_id, tenant_id, effective_date, description, currency, status, created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
	`
	_, err := r.DB(uow).Exec(ctx, query,
		string(journal.ID), string(journal.TenantID), journal.EffectiveDate, journal.Description,
		string(journal.Currency), string(journal.Status),
		journal.CreatedAt, journal.CreatedBy, journal.LastUpdatedAt, journal.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

func (r *LedgerRepository) InsertEntries(ctx context.Context, uow repositories.UnitOfWork, entries []domain.LedgerEntry) error {
	db := r.DB(uow)
	for _, e := range entries {
		_, err := db.Exec(ctx, `
			INSERT INTO ledger_entries (
				entry_id, tenant_id, account_id, journal_id, entry_type, direction,
				amount_minor, currency, balance_after_minor, sequence_number,
				effective_date, posted_at, description, reference,
				payment_intent_id, lease_id, property_id, unit_id, correction_of, created_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20);
		`,
			string(e.ID), string(e.TenantID), string(e.AccountID), string(e.JournalID), string(e.Type), string(e.Direction),
			e.Amount.AmountMinor, string(e.Amount.Currency), e.BalanceAfter.AmountMinor, e.SequenceNumber,
			e.EffectiveDate, e.PostedAt, e.Description, e.Reference,
			nullString(string(e.PaymentIntentID)), nullString(string(e.LeaseID)), nullString(string(e.PropertyID)), nullString(string(e.UnitID)),
			nullString(string(e.CorrectionOf)), e.CreatedBy,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", e.ID, err)
		}
	}
	return nil
}

const ledgerEntryColumns = `
	entry_id, tenant_id, account_id, journal_id, entry_type, direction,
	amount_minor, currency, balance_after_minor, sequence_number,
	effective_date, posted_at, description, reference,
	payment_intent_id, lease_id, property_id, unit_id, correction_of, created_by
`

func scanLedgerEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var paymentIntentID, leaseID, propertyID, unitID, correctionOf sql.NullString
	err := row.Scan(
		&e.ID, &e.TenantID, &e.AccountID, &e.JournalID, &e.Type, &e.Direction,
		&e.Amount.AmountMinor, &e.Amount.Currency, &e.BalanceAfter.AmountMinor, &e.SequenceNumber,
		&e.EffectiveDate, &e.PostedAt, &e.Description, &e.Reference,
		&paymentIntentID, &leaseID, &propertyID, &unitID, &correctionOf, &e.CreatedBy,
	)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	e.BalanceAfter.Currency = e.Amount.Currency
	e.PaymentIntentID = domain.PaymentIntentID(paymentIntentID.String)
	e.LeaseID = domain.LeaseID(leaseID.String)
	e.PropertyID = domain.PropertyID(propertyID.String)
	e.UnitID = domain.UnitID(unitID.String)
	e.CorrectionOf = domain.LedgerEntryID(correctionOf.String)
	return e, nil
}

func (r *LedgerRepository) GetJournal(ctx context.Context, tenant domain.TenantID, id domain.JournalID) (domain.Journal, error) {
	var j domain.Journal
	err := r.Pool.QueryRow(ctx, `
		SELECT journal_id, tenant_id, effective_date, description, currency, status, created_at, created_by, last_updated_at, last_updated_by
		FROM journals WHERE journal_id = $1 AND tenant_id = $2;
	`, string(id), string(tenant)).Scan(
		&j.ID, &j.TenantID, &j.EffectiveDate, &j.Description, &j.Currency, &j.Status,
		&j.CreatedAt, &j.CreatedBy, &j.LastUpdatedAt, &j.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Journal{}, fmt.Errorf("%w: journal %s", apperrors.ErrNotFound, id)
		}
		return domain.Journal{}, fmt.Errorf("get journal: %w", err)
	}

	rows, err := r.Pool.Query(ctx, `SELECT entry_id FROM ledger_entries WHERE journal_id = $1 ORDER BY sequence_number;`, string(id))
	if err != nil {
		return domain.Journal{}, fmt.Errorf("list journal entry ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entryID string
		if err := rows.Scan(&entryID); err != nil {
			return domain.Journal{}, fmt.Errorf("scan journal entry id: %w", err)
		}
		j.EntryIDs = append(j.EntryIDs, domain.LedgerEntryID(entryID))
	}
	return j, rows.Err()
}

func (r *LedgerRepository) GetEntry(ctx context.Context, tenant domain.TenantID, id domain.LedgerEntryID) (domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerEntryColumns + ` FROM ledger_entries WHERE entry_id = $1 AND tenant_id = $2;`
	e, err := scanLedgerEntry(r.Pool.QueryRow(ctx, query, string(id), string(tenant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry %s", apperrors.ErrNotFound, id)
		}
		return domain.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, tenant domain.TenantID, account domain.AccountID, page repositories.Page) (domain.PagedEntries, error) {
	size := page.PageSize
	if size <= 0 {
		size = 50
	}
	var afterSeq int64
	if page.Token != "" {
		fields, err := pagination.DecodeMultiFieldToken(page.Token)
		if err != nil || len(fields) != 1 {
			return domain.PagedEntries{}, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)
		}
		if _, err := fmt.Sscanf(fields[0], "%d", &afterSeq); err != nil {
			return domain.PagedEntries{}, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)
		}
	}

	query := `SELECT ` + ledgerEntryColumns + ` FROM ledger_entries
		WHERE tenant_id = $1 AND account_id = $2 AND sequence_number > $3
		ORDER BY sequence_number ASC LIMIT $4;`
	rows, err := r.Pool.Query(ctx, query, string(tenant), string(account), afterSeq, size+1)
	if err != nil {
		return domain.PagedEntries{}, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return domain.PagedEntries{}, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.PagedEntries{}, err
	}

	hasMore := len(entries) > size
	if hasMore {
		entries = entries[:size]
	}
	next := ""
	if hasMore {
		next = pagination.EncodeMultiFieldToken(fmt.Sprintf("%d", entries[len(entries)-1].SequenceNumber))
	}
	return domain.PagedEntries{Entries: entries, NextToken: next, HasMore: hasMore}, nil
}

func (r *LedgerRepository) ListEntriesInRange(ctx context.Context, tenant domain.TenantID, account domain.AccountID, from, to time.Time) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerEntryColumns + ` FROM ledger_entries
		WHERE tenant_id = $1 AND account_id = $2 AND effective_date >= $3 AND effective_date <= $4
		ORDER BY sequence_number ASC;`
	rows, err := r.Pool.Query(ctx, query, string(tenant), string(account), from, to)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries in range: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) EntryAsOf(ctx context.Context, tenant domain.TenantID, account domain.AccountID, asOf time.Time) (domain.LedgerEntry, bool, error) {
	query := `SELECT ` + ledgerEntryColumns + ` FROM ledger_entries
		WHERE tenant_id = $1 AND account_id = $2 AND effective_date <= $3
		ORDER BY sequence_number DESC LIMIT 1;`
	e, err := scanLedgerEntry(r.Pool.QueryRow(ctx, query, string(tenant), string(account), asOf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerEntry{}, false, nil
		}
		return domain.LedgerEntry{}, false, fmt.Errorf("entry as of: %w", err)
	}
	return e, true, nil
}

func (r *LedgerRepository) ListSequenceNumbers(ctx context.Context, tenant domain.TenantID, account domain.AccountID) ([]int64, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT sequence_number FROM ledger_entries WHERE tenant_id = $1 AND account_id = $2 ORDER BY sequence_number ASC;
	`, string(tenant), string(account))
	if err != nil {
		return nil, fmt.Errorf("list sequence numbers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan sequence number: %w", err)
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) SumDirectionalAmounts(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (int64, error) {
	var sum int64
	err := r.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = $3 THEN amount_minor ELSE -amount_minor END), 0)
		FROM ledger_entries WHERE tenant_id = $1 AND account_id = $2;
	`, string(tenant), string(account), string(domain.Debit)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum directional amounts: %w", err)
	}
	return sum, nil
}

var _ repositories.LedgerRepository = (*LedgerRepository)(nil)
