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

// AccountRepository is the pgx-backed repositories.AccountRepository.
type AccountRepository struct {
	BaseRepository
}

// NewAccountRepository constructs a pgx-backed account repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{BaseRepository{Pool: pool}}
}

func (r *AccountRepository) Create(ctx context.Context, uow repositories.UnitOfWork, account domain.Account) error {
	query := `
		INSERT INTO accounts (
			account_id, tenant_id, name, account_type, currency, status,
			balance_minor, last_entry_id, entry_count,
			scope_customer_id, scope_owner_id, scope_property_id,
			version, created_at, created_by, last_updated_at, last_updated_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);
	`
	_, err := r.DB(uow).Exec(ctx, query,
		string(account.ID), string(account.TenantID), account.Name, string(account.Type),
		string(account.Currency), string(account.Status), account.BalanceMinor,
		nullString(string(account.LastEntryID)), account.EntryCount,
		nullString(string(account.Scope.CustomerID)), nullString(string(account.Scope.OwnerID)), nullString(string(account.Scope.PropertyID)),
		account.Version, account.CreatedAt, account.CreatedBy, account.LastUpdatedAt, account.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: account %s already exists", apperrors.ErrConflict, account.ID)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `
	account_id, tenant_id, name, account_type, currency, status,
	balance_minor, last_entry_id, entry_count,
	scope_customer_id, scope_owner_id, scope_property_id,
	version, created_at, created_by, last_updated_at, last_updated_by
`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var lastEntryID, scopeCustomer, scopeOwner, scopeProperty sql.NullString
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Name, &a.Type, &a.Currency, &a.Status,
		&a.BalanceMinor, &lastEntryID, &a.EntryCount,
		&scopeCustomer, &scopeOwner, &scopeProperty,
		&a.Version, &a.CreatedAt, &a.CreatedBy, &a.LastUpdatedAt, &a.LastUpdatedBy,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.LastEntryID = domain.LedgerEntryID(lastEntryID.String)
	a.Scope = domain.AccountScope{
		CustomerID: domain.CustomerID(scopeCustomer.String),
		OwnerID:    domain.OwnerID(scopeOwner.String),
		PropertyID: domain.PropertyID(scopeProperty.String),
	}
	return a, nil
}

func (r *AccountRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.AccountID) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 AND tenant_id = $2;`
	a, err := scanAccount(r.Pool.QueryRow(ctx, query, string(id), string(tenant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, id)
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, uow repositories.UnitOfWork, tenant domain.TenantID, ids []domain.AccountID) (map[domain.AccountID]domain.Account, error) {
	if len(ids) == 0 {
		return map[domain.AccountID]domain.Account{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1) AND tenant_id = $2 FOR UPDATE;`
	rows, err := r.DB(uow).Query(ctx, query, raw, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("get accounts for update: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AccountID]domain.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account for update: %w", err)
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts for update: %w", err)
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("%w: one or more accounts not found", apperrors.ErrNotFound)
	}
	return out, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, uow repositories.UnitOfWork, id domain.AccountID, newBalanceMinor int64, lastEntryID domain.LedgerEntryID, expectedVersion int64) (bool, error) {
	query := `
		UPDATE accounts
		SET balance_minor = $1, last_entry_id = $2, entry_count = entry_count + 1, version = version + 1
		WHERE account_id = $3 AND version = $4;
	`
	tag, err := r.DB(uow).Exec(ctx, query, newBalanceMinor, string(lastEntryID), string(id), expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update account balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AccountRepository) FindByScope(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, scope domain.AccountScope) (domain.Account, error) {
	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE tenant_id = $1 AND account_type = $2
		  AND scope_customer_id IS NOT DISTINCT FROM NULLIF($3, '')
		  AND scope_owner_id IS NOT DISTINCT FROM NULLIF($4, '')
		  AND scope_property_id IS NOT DISTINCT FROM NULLIF($5, '');
	`
	a, err := scanAccount(r.Pool.QueryRow(ctx, query, string(tenant), string(accountType),
		string(scope.CustomerID), string(scope.OwnerID), string(scope.PropertyID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("%w: no %s account for scope", apperrors.ErrNotFound, accountType)
		}
		return domain.Account{}, fmt.Errorf("find account by scope: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) ListByTypeAndMinBalance(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, minBalanceMinor int64) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE tenant_id = $1 AND account_type = $2 AND status = $3 AND balance_minor >= $4
		ORDER BY account_id;
	`
	rows, err := r.Pool.Query(ctx, query, string(tenant), string(accountType), string(domain.AccountActive), minBalanceMinor)
	if err != nil {
		return nil, fmt.Errorf("list accounts by type and min balance: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)
