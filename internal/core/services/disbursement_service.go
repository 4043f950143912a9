package services

import (
	"context"
	"fmt"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// DisbursementService computes and executes owner payouts from ledger
// state. It never bypasses the ledger engine: every paid disbursement is
// backed by a balanced journal moving funds from the owner's scoped
// platform_holding account to their operating account.
type DisbursementService struct {
	BaseService
	accounts      repositories.AccountRepository
	disbursements repositories.DisbursementRepository
	ledger        *LedgerEngine
	providers     ports.ProviderRegistry
	events        ports.EventPublisher
}

// NewDisbursementService wires the disbursement service to its collaborators.
func NewDisbursementService(accounts repositories.AccountRepository, disbursements repositories.DisbursementRepository, ledger *LedgerEngine, providers ports.ProviderRegistry, events ports.EventPublisher) *DisbursementService {
	return &DisbursementService{accounts: accounts, disbursements: disbursements, ledger: ledger, providers: providers, events: events}
}

// Process executes the §4.4 disbursement flow: persist pending (or return
// the existing record on an idempotency-key collision), invoke the provider
// transfer, post the journal on acknowledgement, then update the record.
func (d *DisbursementService) Process(ctx context.Context, req domain.DisbursementRequest) (domain.DisbursementResult, error) {
	existing, found, err := d.disbursements.FindByIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey)
	if err != nil {
		return domain.DisbursementResult{}, err
	}
	if found {
		return domain.DisbursementResult{Disbursement: existing, AlreadyExisted: true}, nil
	}

	holdingAccount, operatingAccount, err := d.scopedAccounts(ctx, req.TenantID, req.OwnerID)
	if err != nil {
		return domain.DisbursementResult{}, err
	}

	amountMinor := holdingAccount.BalanceMinor
	if req.AmountMinor != nil {
		amountMinor = *req.AmountMinor
	}
	if amountMinor <= 0 {
		return domain.DisbursementResult{}, fmt.Errorf("%w: non_positive_amount", apperrors.ErrValidation)
	}
	if amountMinor > holdingAccount.BalanceMinor {
		return domain.DisbursementResult{}, fmt.Errorf("%w: insufficient_balance available=%d requested=%d", apperrors.ErrState, holdingAccount.BalanceMinor, amountMinor)
	}

	amount := domain.Money{AmountMinor: amountMinor, Currency: holdingAccount.Currency}
	now := time.Now().UTC()
	disb := domain.Disbursement{
		ID:              domain.NewDisbursementID(),
		TenantID:        req.TenantID,
		OwnerID:         req.OwnerID,
		Amount:          amount,
		Status:          domain.DisbursementPending,
		Destination:     req.Destination,
		DestinationType: req.DestinationType,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := d.disbursements.Atomic(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return d.disbursements.Create(ctx, uow, disb)
	}); err != nil {
		return domain.DisbursementResult{}, err
	}

	provider, err := d.providers.Resolve(amount.Currency)
	if err != nil {
		return d.fail(ctx, disb, fmt.Sprintf("no_provider_for_currency %s", amount.Currency))
	}

	transfer, err := provider.CreateTransfer(ctx, ports.TransferRequest{
		Amount:         amount,
		Destination:    req.Destination,
		IdempotencyKey: req.IdempotencyKey,
		Description:    fmt.Sprintf("owner disbursement %s", req.OwnerID),
	})
	if err != nil {
		return d.fail(ctx, disb, err.Error())
	}

	journalResult, err := d.ledger.PostJournal(ctx, domain.PostJournalRequest{
		TenantID:      req.TenantID,
		EffectiveDate: now,
		Description:   fmt.Sprintf("disbursement %s to owner %s", disb.ID, req.OwnerID),
		Currency:      amount.Currency,
		CreatedBy:     "disbursement_service",
		Lines: []domain.JournalLine{
			{AccountID: holdingAccount.ID, Direction: domain.Debit, Amount: amount, Type: domain.EntryTypeDisbursement, Description: "disbursement payout"},
			{AccountID: operatingAccount.ID, Direction: domain.Credit, Amount: amount, Type: domain.EntryTypeDisbursement, Description: "disbursement payout"},
		},
	})
	if err != nil {
		return domain.DisbursementResult{}, err
	}

	disb.Status = transferStatusToDisbursementStatus(transfer.Status)
	disb.ProviderName = provider.Name()
	disb.TransferID = transfer.TransferID
	disb.InitiatedAt = now
	disb.EstimatedArrival = transfer.EstimatedArrival
	disb.LedgerEntryID = journalResult.Entries[0].ID
	disb.UpdatedAt = time.Now().UTC()
	if err := d.save(ctx, disb); err != nil {
		return domain.DisbursementResult{}, err
	}

	d.emitSettled(ctx, disb)
	return domain.DisbursementResult{Disbursement: disb}, nil
}

func transferStatusToDisbursementStatus(status string) domain.DisbursementStatus {
	switch status {
	case "paid", "succeeded":
		return domain.DisbursementPaid
	case "in_transit":
		return domain.DisbursementInTransit
	default:
		return domain.DisbursementProcessing
	}
}

func (d *DisbursementService) fail(ctx context.Context, disb domain.Disbursement, reason string) (domain.DisbursementResult, error) {
	disb.Status = domain.DisbursementFailed
	disb.FailureReason = reason
	disb.UpdatedAt = time.Now().UTC()
	if err := d.save(ctx, disb); err != nil {
		return domain.DisbursementResult{}, err
	}
	d.emitSettled(ctx, disb)
	return domain.DisbursementResult{Disbursement: disb}, fmt.Errorf("%w: %s", apperrors.ErrProvider, reason)
}

func (d *DisbursementService) save(ctx context.Context, disb domain.Disbursement) error {
	return d.disbursements.Atomic(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return d.disbursements.Update(ctx, uow, disb)
	})
}

func (d *DisbursementService) emitSettled(ctx context.Context, disb domain.Disbursement) {
	if d.events == nil {
		return
	}
	eventType := domain.EventDisbursementPaid
	if disb.Status == domain.DisbursementFailed {
		eventType = domain.EventDisbursementFailed
	}
	evt := domain.DisbursementSettledEvent{TenantID: disb.TenantID, DisbursementID: disb.ID, OwnerID: disb.OwnerID, Status: disb.Status, Amount: disb.Amount}
	if err := d.events.Publish(ctx, disb.TenantID, "disbursement", string(disb.ID), eventType, evt); err != nil {
		d.LogError(ctx, err, "disbursement: failed publishing settlement event", "disbursement_id", disb.ID)
	}
}

func (d *DisbursementService) scopedAccounts(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID) (holding domain.Account, operating domain.Account, err error) {
	scope := domain.AccountScope{OwnerID: owner}
	holding, err = d.accounts.FindByScope(ctx, tenant, domain.AccountPlatformHolding, scope)
	if err != nil {
		return domain.Account{}, domain.Account{}, err
	}
	operating, err = d.accounts.FindByScope(ctx, tenant, domain.AccountOwnerOperating, scope)
	if err != nil {
		return domain.Account{}, domain.Account{}, err
	}
	return holding, operating, nil
}

// Preview reports what Process would do for (tenant, owner, amount) without
// executing anything.
func (d *DisbursementService) Preview(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID, amountMinor *int64) (domain.Preview, error) {
	holding, _, err := d.scopedAccounts(ctx, tenant, owner)
	if err != nil {
		return domain.Preview{}, err
	}
	requested := holding.BalanceMinor
	if amountMinor != nil {
		requested = *amountMinor
	}
	return domain.Preview{OwnerID: owner, AvailableMinor: holding.BalanceMinor, RequestedMinor: requested, Currency: holding.Currency}, nil
}

// EligibleOwners lists owners whose platform_holding balance meets
// minBalanceMinor, used by the scheduler to build a batch.
func (d *DisbursementService) EligibleOwners(ctx context.Context, tenant domain.TenantID, minBalanceMinor int64) ([]domain.OwnerBalance, error) {
	accounts, err := d.accounts.ListByTypeAndMinBalance(ctx, tenant, domain.AccountPlatformHolding, minBalanceMinor)
	if err != nil {
		return nil, err
	}
	balances := make([]domain.OwnerBalance, 0, len(accounts))
	for _, acc := range accounts {
		balances = append(balances, domain.OwnerBalance{OwnerID: acc.Scope.OwnerID, BalanceMinor: acc.BalanceMinor, Currency: acc.Currency})
	}
	return balances, nil
}

// Breakdown sums an owner's operating-account ledger entries for a period
// into the categorised decomposition described in §4.4. Holdback is applied
// last and the result is floored at zero.
func (d *DisbursementService) Breakdown(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID, periodStart, periodEnd time.Time, holdbackPercent int64) (domain.Breakdown, error) {
	_, operating, err := d.scopedAccounts(ctx, tenant, owner)
	if err != nil {
		return domain.Breakdown{}, err
	}

	view, err := d.ledger.Statement(ctx, tenant, operating.ID, periodStart, periodEnd)
	if err != nil {
		return domain.Breakdown{}, err
	}

	breakdown := domain.Breakdown{OwnerID: owner, PeriodStart: periodStart, PeriodEnd: periodEnd, Currency: operating.Currency}
	for _, entry := range view.Entries {
		magnitude := entry.Amount.AmountMinor
		switch entry.Type {
		case domain.EntryTypePlatformFee:
			breakdown.PlatformFee += magnitude
		case domain.EntryTypeProcessingFee:
			breakdown.ProcessingFee += magnitude
		case domain.EntryTypeMaintenance:
			breakdown.Maintenance += magnitude
		case domain.EntryTypeOtherDeduction:
			breakdown.OtherDeductions += magnitude
		default:
			signed := magnitude
			if entry.Direction == domain.Credit {
				signed = -signed
			}
			breakdown.Gross += signed
		}
	}

	holdback := domain.Money{AmountMinor: breakdown.Gross - breakdown.PlatformFee - breakdown.ProcessingFee - breakdown.Maintenance - breakdown.OtherDeductions, Currency: operating.Currency}.
		ApplyPercentHalfAwayFromZero(holdbackPercent)
	breakdown.Holdback = holdback.AmountMinor

	net := breakdown.Gross - breakdown.PlatformFee - breakdown.ProcessingFee - breakdown.Maintenance - breakdown.OtherDeductions - breakdown.Holdback
	if net < 0 {
		net = 0
	}
	breakdown.Net = net
	return breakdown, nil
}
