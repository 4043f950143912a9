package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
	"github.com/proptech-ledger/ledgerd/internal/scheduler"
)

const testTenant domain.TenantID = "tenant-1"

// stubTransferProvider is the minimal ports.ProviderAdapter the disbursement
// service exercises during Process; every other method panics.
type stubTransferProvider struct {
	name        string
	transferErr error
	failOwner   domain.OwnerID
}

func (s *stubTransferProvider) Name() string                              { return s.name }
func (s *stubTransferProvider) SupportedCurrencies() []domain.CurrencyCode { return []domain.CurrencyCode{domain.USD} }
func (s *stubTransferProvider) CreateCustomer(context.Context, domain.TenantID, domain.CustomerID) (string, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) CreatePaymentIntent(context.Context, ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) ConfirmPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) CancelPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) GetPaymentIntentStatus(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) RefundPayment(context.Context, string, domain.Money) error { panic("not exercised") }
func (s *stubTransferProvider) CreateTransfer(ctx context.Context, req ports.TransferRequest) (ports.ProviderTransfer, error) {
	if s.transferErr != nil && req.Destination == string(s.failOwner) {
		return ports.ProviderTransfer{}, s.transferErr
	}
	return ports.ProviderTransfer{TransferID: "tr-" + req.Destination, Status: "paid"}, nil
}
func (s *stubTransferProvider) GetTransferStatus(context.Context, string) (ports.ProviderTransfer, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) ListPaymentMethods(context.Context, string) ([]string, error) { panic("not exercised") }
func (s *stubTransferProvider) AttachPaymentMethod(context.Context, string, string) error     { panic("not exercised") }
func (s *stubTransferProvider) DetachPaymentMethod(context.Context, string) error             { panic("not exercised") }
func (s *stubTransferProvider) CreateConnectedAccount(context.Context, domain.TenantID, domain.OwnerID) (string, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) CreateAccountLink(context.Context, string, string, string) (string, error) {
	panic("not exercised")
}
func (s *stubTransferProvider) VerifyWebhookSignature([]byte, string) error          { panic("not exercised") }
func (s *stubTransferProvider) ParseWebhookEvent([]byte) (ports.WebhookEvent, error) { panic("not exercised") }

type singleProviderRegistry struct{ provider ports.ProviderAdapter }

func (r singleProviderRegistry) Resolve(domain.CurrencyCode) (ports.ProviderAdapter, error) { return r.provider, nil }
func (r singleProviderRegistry) ByName(string) (ports.ProviderAdapter, error)                { return r.provider, nil }

func seedOwnerAccounts(t *testing.T, accounts *memory.AccountRepository, owner domain.OwnerID, holdingBalance int64) {
	t.Helper()
	scope := domain.AccountScope{OwnerID: owner}
	holding := domain.Account{
		ID: domain.NewAccountID(), TenantID: testTenant, Name: "holding", Type: domain.AccountPlatformHolding,
		Currency: domain.USD, Status: domain.AccountActive, Scope: scope, BalanceMinor: holdingBalance,
		AuditFields: domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	operating := domain.Account{
		ID: domain.NewAccountID(), TenantID: testTenant, Name: "operating", Type: domain.AccountOwnerOperating,
		Currency: domain.USD, Status: domain.AccountActive, Scope: scope,
		AuditFields: domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	require.NoError(t, accounts.Create(context.Background(), nil, holding))
	require.NoError(t, accounts.Create(context.Background(), nil, operating))
}

func newTestDisbursementService(t *testing.T, provider ports.ProviderAdapter) (*services.DisbursementService, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	disbursements := memory.NewDisbursementRepository()
	svc := services.NewDisbursementService(accounts, disbursements, ledger, singleProviderRegistry{provider}, nil)
	return svc, accounts
}

func noopResolver(destinationType domain.DestinationType) scheduler.DestinationResolver {
	return func(ctx context.Context, tenant domain.TenantID, owner domain.OwnerBalance) (string, domain.DestinationType, error) {
		return string(owner.OwnerID), destinationType, nil
	}
}

func TestRunBatch_CapsAtBatchSize(t *testing.T) {
	provider := &stubTransferProvider{name: "card"}
	disbursements, accounts := newTestDisbursementService(t, provider)

	var owners []domain.OwnerID
	for i := 0; i < 5; i++ {
		owner := domain.OwnerID(domain.NewAccountID())
		seedOwnerAccounts(t, accounts, owner, 1000)
		owners = append(owners, owner)
	}

	sched := domain.DisbursementSchedule{Kind: domain.ScheduleDaily, BatchSize: 2, MinBalance: 0}
	s := scheduler.New(disbursements, noopResolver(domain.DestinationBankAccount), sched, []domain.TenantID{testTenant}, nil)

	s.RunBatch(context.Background())

	processed := 0
	for _, owner := range owners {
		acc, err := accounts.FindByScope(context.Background(), testTenant, domain.AccountPlatformHolding, domain.AccountScope{OwnerID: owner})
		require.NoError(t, err)
		if acc.BalanceMinor == 0 {
			processed++
		}
	}
	assert.Equal(t, 2, processed, "only batch_size owners should be paid out in one run")
}

func TestRunBatch_ContinuesPastSingleOwnerFailure(t *testing.T) {
	failingOwner := domain.OwnerID(domain.NewAccountID())
	provider := &stubTransferProvider{name: "card", transferErr: assert.AnError, failOwner: failingOwner}
	disbursements, accounts := newTestDisbursementService(t, provider)

	okOwner := domain.OwnerID(domain.NewAccountID())
	seedOwnerAccounts(t, accounts, failingOwner, 1000)
	seedOwnerAccounts(t, accounts, okOwner, 1000)

	sched := domain.DisbursementSchedule{Kind: domain.ScheduleDaily, BatchSize: 10, MinBalance: 0}
	s := scheduler.New(disbursements, noopResolver(domain.DestinationBankAccount), sched, []domain.TenantID{testTenant}, nil)

	require.NotPanics(t, func() {
		s.RunBatch(context.Background())
	})

	okAcc, err := accounts.FindByScope(context.Background(), testTenant, domain.AccountPlatformHolding, domain.AccountScope{OwnerID: okOwner})
	require.NoError(t, err)
	assert.Zero(t, okAcc.BalanceMinor, "the healthy owner must still be paid despite the other owner's failure")

	failedAcc, err := accounts.FindByScope(context.Background(), testTenant, domain.AccountPlatformHolding, domain.AccountScope{OwnerID: failingOwner})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), failedAcc.BalanceMinor, "the failed owner's balance must be untouched")
}

func TestRunBatch_SkipsOwnersWhenDestinationResolutionFails(t *testing.T) {
	provider := &stubTransferProvider{name: "card"}
	disbursements, accounts := newTestDisbursementService(t, provider)

	owner := domain.OwnerID(domain.NewAccountID())
	seedOwnerAccounts(t, accounts, owner, 1000)

	sched := domain.DisbursementSchedule{Kind: domain.ScheduleDaily, BatchSize: 10, MinBalance: 0}
	failingResolver := func(ctx context.Context, tenant domain.TenantID, owner domain.OwnerBalance) (string, domain.DestinationType, error) {
		return "", "", assert.AnError
	}
	s := scheduler.New(disbursements, failingResolver, sched, []domain.TenantID{testTenant}, nil)

	require.NotPanics(t, func() {
		s.RunBatch(context.Background())
	})

	acc, err := accounts.FindByScope(context.Background(), testTenant, domain.AccountPlatformHolding, domain.AccountScope{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acc.BalanceMinor, "owner must be untouched when destination resolution fails")
}
