package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// StatementBuilder materialises period-bounded account statements from the
// ledger engine's state: opening balance, folded line items with a running
// balance, category summaries, and closing balance.
type StatementBuilder struct {
	BaseService
	statements repositories.StatementRepository
	ledger     *LedgerEngine
	events     ports.EventPublisher
}

// NewStatementBuilder wires the statement builder to its collaborators.
func NewStatementBuilder(statements repositories.StatementRepository, ledger *LedgerEngine, events ports.EventPublisher) *StatementBuilder {
	return &StatementBuilder{statements: statements, ledger: ledger, events: events}
}

// Generate materialises a new statement for (tenant, account, type, period),
// failing duplicate_statement if one already exists for that exact key.
func (s *StatementBuilder) Generate(ctx context.Context, req domain.GenerateStatementRequest) (domain.Statement, error) {
	_, exists, err := s.statements.FindExisting(ctx, req.TenantID, req.AccountID, req.Type, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return domain.Statement{}, err
	}
	if exists {
		return domain.Statement{}, fmt.Errorf("%w: duplicate_statement", apperrors.ErrState)
	}

	view, err := s.ledger.Statement(ctx, req.TenantID, req.AccountID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return domain.Statement{}, err
	}

	lineItems := make([]domain.LineItem, 0, len(view.Entries))
	var totalDebits, totalCredits int64
	byType := map[domain.LedgerEntryType]*domain.CategorySummary{}

	for _, entry := range view.Entries {
		item := domain.LineItem{
			Date:         entry.EffectiveDate,
			Type:         entry.Type,
			Description:  entry.Description,
			Reference:    entry.Reference,
			BalanceMinor: entry.BalanceAfter.AmountMinor,
		}
		summary, ok := byType[entry.Type]
		if !ok {
			summary = &domain.CategorySummary{Type: entry.Type}
			byType[entry.Type] = summary
		}
		switch entry.Direction {
		case domain.Debit:
			item.DebitMinor = entry.Amount.AmountMinor
			totalDebits += entry.Amount.AmountMinor
			summary.TotalDebitsMinor += entry.Amount.AmountMinor
		case domain.Credit:
			item.CreditMinor = entry.Amount.AmountMinor
			totalCredits += entry.Amount.AmountMinor
			summary.TotalCreditsMinor += entry.Amount.AmountMinor
		}
		lineItems = append(lineItems, item)
	}

	summaries := make([]domain.CategorySummary, 0, len(byType))
	for _, summary := range byType {
		summary.NetMinor = summary.TotalDebitsMinor - summary.TotalCreditsMinor
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return absInt64(summaries[i].NetMinor) > absInt64(summaries[j].NetMinor)
	})

	now := time.Now().UTC()
	statement := domain.Statement{
		ID:                  domain.NewStatementID(),
		TenantID:            req.TenantID,
		Type:                req.Type,
		Status:              domain.StatementGenerated,
		AccountID:           req.AccountID,
		OwnerID:             req.OwnerID,
		CustomerID:          req.CustomerID,
		PropertyID:          req.PropertyID,
		PeriodType:          req.PeriodType,
		PeriodStart:         req.PeriodStart,
		PeriodEnd:           req.PeriodEnd,
		Currency:            view.OpeningBalance.Currency,
		OpeningBalanceMinor: view.OpeningBalance.AmountMinor,
		ClosingBalanceMinor: view.ClosingBalance.AmountMinor,
		TotalDebitsMinor:    totalDebits,
		TotalCreditsMinor:   totalCredits,
		LineItems:           lineItems,
		CategorySummaries:   summaries,
		GeneratedAt:         now,
	}

	if err := s.statements.Create(ctx, statement); err != nil {
		return domain.Statement{}, err
	}
	return statement, nil
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Get fetches a previously generated statement by id.
func (s *StatementBuilder) Get(ctx context.Context, tenant domain.TenantID, id domain.StatementID) (domain.Statement, error) {
	return s.statements.Get(ctx, tenant, id)
}

// Deliver transitions a generated statement to sent, recording the
// destination and emitting StatementSent.
func (s *StatementBuilder) Deliver(ctx context.Context, tenant domain.TenantID, id domain.StatementID, destination string) (domain.Statement, error) {
	statement, err := s.statements.Get(ctx, tenant, id)
	if err != nil {
		return domain.Statement{}, err
	}
	if statement.Status != domain.StatementGenerated {
		return domain.Statement{}, fmt.Errorf("%w: illegal_transition %s -> sent", apperrors.ErrState, statement.Status)
	}

	now := time.Now().UTC()
	statement.Status = domain.StatementSent
	statement.SentAt = now
	statement.DeliveryDestination = destination
	if err := s.statements.Update(ctx, statement); err != nil {
		return domain.Statement{}, err
	}

	if s.events != nil {
		evt := domain.StatementSentEvent{TenantID: tenant, StatementID: id, SentAt: now, Destination: destination}
		if err := s.events.Publish(ctx, tenant, "statement", string(id), domain.EventStatementSent, evt); err != nil {
			s.LogError(ctx, err, "statement: failed publishing StatementSent", "statement_id", id)
		}
	}
	return statement, nil
}

// MarkViewed transitions a sent statement to viewed.
func (s *StatementBuilder) MarkViewed(ctx context.Context, tenant domain.TenantID, id domain.StatementID) (domain.Statement, error) {
	statement, err := s.statements.Get(ctx, tenant, id)
	if err != nil {
		return domain.Statement{}, err
	}
	if statement.Status != domain.StatementSent {
		return domain.Statement{}, fmt.Errorf("%w: illegal_transition %s -> viewed", apperrors.ErrState, statement.Status)
	}
	statement.Status = domain.StatementViewed
	statement.ViewedAt = time.Now().UTC()
	if err := s.statements.Update(ctx, statement); err != nil {
		return domain.Statement{}, err
	}
	return statement, nil
}

// Export renders a statement in the requested format.
func (s *StatementBuilder) Export(statement domain.Statement, format domain.ExportFormat) (domain.ExportedStatement, error) {
	switch format {
	case domain.ExportJSON:
		return exportJSON(statement)
	case domain.ExportCSV:
		return exportCSV(statement)
	case domain.ExportPDFHTML:
		return exportHTML(statement)
	default:
		return domain.ExportedStatement{}, fmt.Errorf("%w: unrecognised export format %q", apperrors.ErrValidation, format)
	}
}

func exportJSON(statement domain.Statement) (domain.ExportedStatement, error) {
	content, err := json.MarshalIndent(statement, "", "  ")
	if err != nil {
		return domain.ExportedStatement{}, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
	return domain.ExportedStatement{
		Content:     content,
		ContentType: "application/json",
		Filename:    fmt.Sprintf("statement-%s.json", statement.ID),
	}, nil
}

func exportCSV(statement domain.Statement) (domain.ExportedStatement, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	money := func(minor int64) string {
		return domain.Money{AmountMinor: minor, Currency: statement.Currency}.MajorUnits()
	}

	_ = w.Write([]string{"statement_id", string(statement.ID)})
	_ = w.Write([]string{"account_id", string(statement.AccountID)})
	_ = w.Write([]string{"period_start", statement.PeriodStart.Format(time.RFC3339)})
	_ = w.Write([]string{"period_end", statement.PeriodEnd.Format(time.RFC3339)})
	_ = w.Write([]string{"opening_balance", money(statement.OpeningBalanceMinor)})
	_ = w.Write([]string{"closing_balance", money(statement.ClosingBalanceMinor)})
	_ = w.Write([]string{})

	_ = w.Write([]string{"date", "type", "description", "reference", "debit", "credit", "balance"})
	for _, item := range statement.LineItems {
		_ = w.Write([]string{
			item.Date.Format(time.RFC3339),
			string(item.Type),
			item.Description,
			item.Reference,
			money(item.DebitMinor),
			money(item.CreditMinor),
			money(item.BalanceMinor),
		})
	}
	_ = w.Write([]string{})

	_ = w.Write([]string{"category", "total_debits", "total_credits", "net"})
	for _, cat := range statement.CategorySummaries {
		_ = w.Write([]string{string(cat.Type), money(cat.TotalDebitsMinor), money(cat.TotalCreditsMinor), money(cat.NetMinor)})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return domain.ExportedStatement{}, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
	return domain.ExportedStatement{
		Content:     buf.Bytes(),
		ContentType: "text/csv",
		Filename:    fmt.Sprintf("statement-%s.csv", statement.ID),
	}, nil
}

func exportHTML(statement domain.Statement) (domain.ExportedStatement, error) {
	money := func(minor int64) string {
		return domain.Money{AmountMinor: minor, Currency: statement.Currency}.MajorUnits()
	}

	var rows strings.Builder
	for _, item := range statement.LineItems {
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			item.Date.Format("2006-01-02"), item.Type, item.Description, item.Reference,
			money(item.DebitMinor), money(item.CreditMinor), money(item.BalanceMinor),
		))
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Statement %s</title></head>
<body>
<h1>Statement %s</h1>
<p>Period: %s to %s</p>
<p>Opening balance: %s</p>
<p>Closing balance: %s</p>
<table border="1" cellspacing="0" cellpadding="4">
<thead><tr><th>Date</th><th>Type</th><th>Description</th><th>Reference</th><th>Debit</th><th>Credit</th><th>Balance</th></tr></thead>
<tbody>
%s</tbody>
</table>
</body></html>`,
		statement.ID, statement.ID,
		statement.PeriodStart.Format("2006-01-02"), statement.PeriodEnd.Format("2006-01-02"),
		money(statement.OpeningBalanceMinor), money(statement.ClosingBalanceMinor),
		rows.String(),
	)

	return domain.ExportedStatement{
		Content:     []byte(html),
		ContentType: "text/html",
		Filename:    fmt.Sprintf("statement-%s.html", statement.ID),
	}, nil
}

// MonthlyPeriod returns the [start, end] bounds for a calendar month in UTC,
// end being the last instant of the last day (23:59:59.999).
func MonthlyPeriod(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start, end
}

// QuarterlyPeriod returns the [start, end] bounds for the calendar quarter
// containing month (1-12) of year.
func QuarterlyPeriod(year int, month time.Month) (time.Time, time.Time) {
	quarterStartMonth := time.Month(((int(month)-1)/3)*3 + 1)
	start := time.Date(year, quarterStartMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).Add(-time.Millisecond)
	return start, end
}

// AnnualPeriod returns the [start, end] bounds for a calendar year in UTC.
func AnnualPeriod(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0).Add(-time.Millisecond)
	return start, end
}
