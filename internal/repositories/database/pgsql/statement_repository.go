package pgsql

import (
	"context"
	"encoding/json"
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

// StatementRepository is the pgx-backed repositories.StatementRepository.
// Line items and category summaries are stored as JSONB: they are written
// once at generation time and read back whole, never queried by field, so a
// relational breakout buys nothing.
type StatementRepository struct {
	BaseRepository
}

// NewStatementRepository constructs a pgx-backed statement repository.
func NewStatementRepository(pool *pgxpool.Pool) *StatementRepository {
	return &StatementRepository{BaseRepository{Pool: pool}}
}

const statementColumns = `
	statement_id, tenant_id, statement_type, status, account_id, owner_id, customer_id, property_id,
	period_type, period_start, period_end, currency,
	opening_balance_minor, closing_balance_minor, total_debits_minor, total_credits_minor,
	line_items, category_summaries, generated_at, sent_at, viewed_at, delivery_destination
`

func scanStatement(row pgx.Row) (domain.Statement, error) {
	var s domain.Statement
	var lineItems, categorySummaries []byte
	var sentAt, viewedAt *time.Time
	var deliveryDestination *string
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Type, &s.Status, &s.AccountID, &s.OwnerID, &s.CustomerID, &s.PropertyID,
		&s.PeriodType, &s.PeriodStart, &s.PeriodEnd, &s.Currency,
		&s.OpeningBalanceMinor, &s.ClosingBalanceMinor, &s.TotalDebitsMinor, &s.TotalCreditsMinor,
		&lineItems, &categorySummaries, &s.GeneratedAt, &sentAt, &viewedAt, &deliveryDestination,
	)
	if err != nil {
		return domain.Statement{}, err
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &s.LineItems); err != nil {
			return domain.Statement{}, fmt.Errorf("decode line items: %w", err)
		}
	}
	if len(categorySummaries) > 0 {
		if err := json.Unmarshal(categorySummaries, &s.CategorySummaries); err != nil {
			return domain.Statement{}, fmt.Errorf("decode category summaries: %w", err)
		}
	}
	if sentAt != nil {
		s.SentAt = *sentAt
	}
	if viewedAt != nil {
		s.ViewedAt = *viewedAt
	}
	if deliveryDestination != nil {
		s.DeliveryDestination = *deliveryDestination
	}
	return s, nil
}

func (r *StatementRepository) Create(ctx context.Context, statement domain.Statement) error {
	lineItems, err := json.Marshal(statement.LineItems)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}
	categorySummaries, err := json.Marshal(statement.CategorySummaries)
	if err != nil {
		return fmt.Errorf("encode category summaries: %w", err)
	}

	query := `INSERT INTO statements (` + statementColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22);`
	_, err = r.Pool.Exec(ctx, query,
		string(statement.ID), string(statement.TenantID), string(statement.Type), string(statement.Status),
		string(statement.AccountID), nullString(string(statement.OwnerID)), nullString(string(statement.CustomerID)), nullString(string(statement.PropertyID)),
		string(statement.PeriodType), statement.PeriodStart, statement.PeriodEnd, string(statement.Currency),
		statement.OpeningBalanceMinor, statement.ClosingBalanceMinor, statement.TotalDebitsMinor, statement.TotalCreditsMinor,
		lineItems, categorySummaries, statement.GeneratedAt, nullTime(statement.SentAt), nullTime(statement.ViewedAt), nullString(statement.DeliveryDestination),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: duplicate statement for period", apperrors.ErrConflict)
		}
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

func (r *StatementRepository) Update(ctx context.Context, statement domain.Statement) error {
	query := `
		UPDATE statements SET status = $2, sent_at = $3, viewed_at = $4, delivery_destination = $5
		WHERE statement_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, string(statement.ID), string(statement.Status),
		nullTime(statement.SentAt), nullTime(statement.ViewedAt), nullString(statement.DeliveryDestination))
	if err != nil {
		return fmt.Errorf("update statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: statement %s", apperrors.ErrNotFound, statement.ID)
	}
	return nil
}

func (r *StatementRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.StatementID) (domain.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE statement_id = $1 AND tenant_id = $2;`
	s, err := scanStatement(r.Pool.QueryRow(ctx, query, string(id), string(tenant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Statement{}, fmt.Errorf("%w: statement %s", apperrors.ErrNotFound, id)
		}
		return domain.Statement{}, fmt.Errorf("get statement: %w", err)
	}
	return s, nil
}

func (r *StatementRepository) FindExisting(ctx context.Context, tenant domain.TenantID, account domain.AccountID, t domain.StatementType, periodStart, periodEnd time.Time) (domain.Statement, bool, error) {
	query := `SELECT ` + statementColumns + ` FROM statements
		WHERE tenant_id = $1 AND account_id = $2 AND statement_type = $3 AND period_start = $4 AND period_end = $5;`
	s, err := scanStatement(r.Pool.QueryRow(ctx, query, string(tenant), string(account), string(t), periodStart, periodEnd))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Statement{}, false, nil
		}
		return domain.Statement{}, false, fmt.Errorf("find existing statement: %w", err)
	}
	return s, true, nil
}

var _ repositories.StatementRepository = (*StatementRepository)(nil)
