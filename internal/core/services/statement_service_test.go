package services_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

func newTestStatementBuilder(t *testing.T) (*services.StatementBuilder, *services.LedgerEngine, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	statements := memory.NewStatementRepository()
	builder := services.NewStatementBuilder(statements, ledger, nil)
	return builder, ledger, accounts
}

func TestGenerate_ProducesBalancedStatement(t *testing.T) {
	builder, ledger, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	start, end := services.MonthlyPeriod(2026, time.July)
	mid := start.AddDate(0, 0, 5)

	_, err := ledger.PostJournal(context.Background(), domain.PostJournalRequest{
		TenantID: testTenant, EffectiveDate: mid, Currency: domain.USD, CreatedBy: "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(30000), Type: domain.EntryTypeRentPayment},
			{AccountID: operating.ID, Direction: domain.Credit, Amount: money(30000), Type: domain.EntryTypeRentPayment},
		},
	})
	require.NoError(t, err)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatementGenerated, statement.Status)
	assert.Len(t, statement.LineItems, 1)
	assert.Equal(t, int64(30000), statement.TotalCreditsMinor)
	assert.Equal(t, int64(-30000), statement.ClosingBalanceMinor)
}

func TestGenerate_RejectsDuplicatePeriod(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	req := domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	}
	_, err := builder.Generate(context.Background(), req)
	require.NoError(t, err)

	_, err = builder.Generate(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestDeliverThenMarkViewed_FollowsStatusLifecycle(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)

	sent, err := builder.Deliver(context.Background(), testTenant, statement.ID, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatementSent, sent.Status)
	assert.Equal(t, "owner@example.com", sent.DeliveryDestination)

	viewed, err := builder.MarkViewed(context.Background(), testTenant, statement.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatementViewed, viewed.Status)
	assert.NotZero(t, viewed.ViewedAt)
}

func TestMarkViewed_RejectsBeforeDelivery(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)

	_, err = builder.MarkViewed(context.Background(), testTenant, statement.ID)
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestExport_JSONRoundTripsID(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)

	exported, err := builder.Export(statement, domain.ExportJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", exported.ContentType)

	var decoded domain.Statement
	require.NoError(t, json.Unmarshal(exported.Content, &decoded))
	assert.Equal(t, statement.ID, decoded.ID)
}

func TestExport_CSVIncludesHeaderRow(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)

	exported, err := builder.Export(statement, domain.ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", exported.ContentType)

	reader := csv.NewReader(bytes.NewReader(exported.Content))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"statement_id", string(statement.ID)}, rows[0])
}

func TestExport_RejectsUnknownFormat(t *testing.T) {
	builder, _, accounts := newTestStatementBuilder(t)
	operating := seedAccount(t, accounts, domain.AccountOwnerOperating, 0)
	start, end := services.MonthlyPeriod(2026, time.July)

	statement, err := builder.Generate(context.Background(), domain.GenerateStatementRequest{
		TenantID: testTenant, Type: domain.StatementTypeOwner, AccountID: operating.ID,
		PeriodType: domain.PeriodMonthly, PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)

	_, err = builder.Export(statement, domain.ExportFormat("xml"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMonthlyPeriod_CoversWholeMonth(t *testing.T) {
	start, end := services.MonthlyPeriod(2026, time.February)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.Before(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, end.After(time.Date(2026, time.February, 28, 23, 0, 0, 0, time.UTC)))
}

func TestQuarterlyPeriod_AlignsToQuarterStart(t *testing.T) {
	start, _ := services.QuarterlyPeriod(2026, time.August)
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestAnnualPeriod_CoversWholeYear(t *testing.T) {
	start, end := services.AnnualPeriod(2026)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.Before(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
