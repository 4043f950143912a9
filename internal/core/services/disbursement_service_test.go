package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

const testOwner domain.OwnerID = "owner-1"

func newTestDisbursementService(t *testing.T, provider ports.ProviderAdapter) (*services.DisbursementService, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	disbursements := memory.NewDisbursementRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	svc := services.NewDisbursementService(accounts, disbursements, ledger, singleProviderRegistry{provider}, nil)
	return svc, accounts
}

func seedOwnerAccounts(t *testing.T, accounts *memory.AccountRepository, holdingBalance int64) (holding, operating domain.Account) {
	t.Helper()
	scope := domain.AccountScope{OwnerID: testOwner}
	holding = domain.Account{
		ID: domain.NewAccountID(), TenantID: testTenant, Name: "holding", Type: domain.AccountPlatformHolding,
		Currency: domain.USD, Status: domain.AccountActive, BalanceMinor: holdingBalance, Scope: scope,
		AuditFields: domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	operating = domain.Account{
		ID: domain.NewAccountID(), TenantID: testTenant, Name: "operating", Type: domain.AccountOwnerOperating,
		Currency: domain.USD, Status: domain.AccountActive, Scope: scope,
		AuditFields: domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	require.NoError(t, accounts.Create(context.Background(), nil, holding))
	require.NoError(t, accounts.Create(context.Background(), nil, operating))
	return holding, operating
}

func TestDisbursementProcess_MovesFullBalanceToOperating(t *testing.T) {
	provider := &stubProvider{
		name: "card",
		createTransferFn: func(req ports.TransferRequest) (ports.ProviderTransfer, error) {
			return ports.ProviderTransfer{TransferID: "tr-1", Status: "paid"}, nil
		},
	}
	svc, accounts := newTestDisbursementService(t, provider)
	holding, operating := seedOwnerAccounts(t, accounts, 20000)

	result, err := svc.Process(context.Background(), domain.DisbursementRequest{
		TenantID:       testTenant,
		OwnerID:        testOwner,
		Currency:       domain.USD,
		Destination:    "bank-acct-1",
		DestinationType: domain.DestinationBankAccount,
		IdempotencyKey: "disb-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisbursementPaid, result.Disbursement.Status)
	assert.Equal(t, int64(20000), result.Disbursement.Amount.AmountMinor)

	holdingBalance, err := accounts.Get(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.Zero(t, holdingBalance.BalanceMinor)

	operatingBalance, err := accounts.Get(context.Background(), testTenant, operating.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), operatingBalance.BalanceMinor)
}

func TestDisbursementProcess_RejectsAmountExceedingBalance(t *testing.T) {
	provider := &stubProvider{name: "card"}
	svc, accounts := newTestDisbursementService(t, provider)
	seedOwnerAccounts(t, accounts, 1000)

	tooMuch := int64(5000)
	_, err := svc.Process(context.Background(), domain.DisbursementRequest{
		TenantID:       testTenant,
		OwnerID:        testOwner,
		AmountMinor:    &tooMuch,
		Currency:       domain.USD,
		Destination:    "bank-acct-1",
		DestinationType: domain.DestinationBankAccount,
		IdempotencyKey: "disb-2",
	})
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestDisbursementProcess_IsIdempotentOnKey(t *testing.T) {
	provider := &stubProvider{
		name: "card",
		createTransferFn: func(req ports.TransferRequest) (ports.ProviderTransfer, error) {
			return ports.ProviderTransfer{TransferID: "tr-1", Status: "paid"}, nil
		},
	}
	svc, accounts := newTestDisbursementService(t, provider)
	seedOwnerAccounts(t, accounts, 20000)

	req := domain.DisbursementRequest{
		TenantID:       testTenant,
		OwnerID:        testOwner,
		Currency:       domain.USD,
		Destination:    "bank-acct-1",
		DestinationType: domain.DestinationBankAccount,
		IdempotencyKey: "disb-3",
	}

	first, err := svc.Process(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.Disbursement.ID, second.Disbursement.ID)
}

func TestDisbursementProcess_ProviderFailureMarksFailed(t *testing.T) {
	provider := &stubProvider{
		name: "card",
		createTransferFn: func(req ports.TransferRequest) (ports.ProviderTransfer, error) {
			return ports.ProviderTransfer{}, assert.AnError
		},
	}
	svc, accounts := newTestDisbursementService(t, provider)
	holding, _ := seedOwnerAccounts(t, accounts, 20000)

	_, err := svc.Process(context.Background(), domain.DisbursementRequest{
		TenantID:       testTenant,
		OwnerID:        testOwner,
		Currency:       domain.USD,
		Destination:    "bank-acct-1",
		DestinationType: domain.DestinationBankAccount,
		IdempotencyKey: "disb-4",
	})
	assert.ErrorIs(t, err, apperrors.ErrProvider)

	holdingBalance, getErr := accounts.Get(context.Background(), testTenant, holding.ID)
	require.NoError(t, getErr)
	assert.Equal(t, int64(20000), holdingBalance.BalanceMinor, "balance must be untouched when the provider transfer never succeeds")
}

func TestEligibleOwners_FiltersByMinBalance(t *testing.T) {
	provider := &stubProvider{name: "card"}
	svc, accounts := newTestDisbursementService(t, provider)
	seedOwnerAccounts(t, accounts, 5000)

	below, err := svc.EligibleOwners(context.Background(), testTenant, 10000)
	require.NoError(t, err)
	assert.Empty(t, below)

	above, err := svc.EligibleOwners(context.Background(), testTenant, 1000)
	require.NoError(t, err)
	require.Len(t, above, 1)
	assert.Equal(t, testOwner, above[0].OwnerID)
}
