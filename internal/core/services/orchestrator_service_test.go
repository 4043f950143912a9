package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

// stubProvider is a minimal ports.ProviderAdapter that only implements the
// methods the orchestrator actually exercises; every other method panics if
// called, so an unexpected code path fails loudly rather than silently.
type stubProvider struct {
	name           string
	createIntentFn func(ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error)
	refundErr      error
	createTransferFn func(ports.TransferRequest) (ports.ProviderTransfer, error)
}

func (s *stubProvider) Name() string                              { return s.name }
func (s *stubProvider) SupportedCurrencies() []domain.CurrencyCode { return []domain.CurrencyCode{domain.USD} }
func (s *stubProvider) CreateCustomer(context.Context, domain.TenantID, domain.CustomerID) (string, error) {
	panic("not exercised")
}
func (s *stubProvider) CreatePaymentIntent(ctx context.Context, req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
	return s.createIntentFn(req)
}
func (s *stubProvider) ConfirmPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubProvider) CancelPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubProvider) GetPaymentIntentStatus(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubProvider) RefundPayment(ctx context.Context, externalID string, amount domain.Money) error {
	return s.refundErr
}
func (s *stubProvider) CreateTransfer(ctx context.Context, req ports.TransferRequest) (ports.ProviderTransfer, error) {
	if s.createTransferFn != nil {
		return s.createTransferFn(req)
	}
	panic("not exercised")
}
func (s *stubProvider) GetTransferStatus(context.Context, string) (ports.ProviderTransfer, error) {
	panic("not exercised")
}
func (s *stubProvider) ListPaymentMethods(context.Context, string) ([]string, error) { panic("not exercised") }
func (s *stubProvider) AttachPaymentMethod(context.Context, string, string) error     { panic("not exercised") }
func (s *stubProvider) DetachPaymentMethod(context.Context, string) error             { panic("not exercised") }
func (s *stubProvider) CreateConnectedAccount(context.Context, domain.TenantID, domain.OwnerID) (string, error) {
	panic("not exercised")
}
func (s *stubProvider) CreateAccountLink(context.Context, string, string, string) (string, error) {
	panic("not exercised")
}
func (s *stubProvider) VerifyWebhookSignature([]byte, string) error          { panic("not exercised") }
func (s *stubProvider) ParseWebhookEvent([]byte) (ports.WebhookEvent, error) { panic("not exercised") }

// singleProviderRegistry always resolves to the one wrapped provider.
type singleProviderRegistry struct{ provider ports.ProviderAdapter }

func (r singleProviderRegistry) Resolve(domain.CurrencyCode) (ports.ProviderAdapter, error) { return r.provider, nil }
func (r singleProviderRegistry) ByName(string) (ports.ProviderAdapter, error)                { return r.provider, nil }

func testTenantView() domain.TenantView {
	return domain.TenantView{ID: testTenant, Name: "Acme Properties", DefaultCurrency: domain.USD, FeePercent: 250, IsActive: true}
}

func TestCreatePayment_IsIdempotentOnKey(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{name: "card"}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	req := services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(10000),
		IdempotencyKey: "idem-1",
	}

	first, err := orchestrator.CreatePayment(context.Background(), req, testTenantView())
	require.NoError(t, err)
	assert.False(t, first.AlreadyExisted)
	assert.Equal(t, int64(250), first.Intent.PlatformFee.AmountMinor) // 2.5% of 10000

	second, err := orchestrator.CreatePayment(context.Background(), req, testTenantView())
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.Intent.ID, second.Intent.ID)
}

func TestProcessPayment_SucceedsTransitionsIntent(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{
		name: "card",
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{ExternalID: "ext-1", Status: "succeeded"}, nil
		},
	}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	created, err := orchestrator.CreatePayment(context.Background(), services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(5000),
		IdempotencyKey: "idem-2",
	}, testTenantView())
	require.NoError(t, err)

	result, err := orchestrator.ProcessPayment(context.Background(), created.Intent.ID, testTenant, "card")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, result.Intent.Status)
	assert.NotZero(t, result.Intent.PaidAt)
}

func TestHandleWebhook_ReplayedSucceededIsNoOp(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{
		name: "card",
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{ExternalID: "ext-replay-1", Status: "succeeded"}, nil
		},
	}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	created, err := orchestrator.CreatePayment(context.Background(), services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(5000),
		IdempotencyKey: "idem-replay-1",
	}, testTenantView())
	require.NoError(t, err)

	_, err = orchestrator.ProcessPayment(context.Background(), created.Intent.ID, testTenant, "card")
	require.NoError(t, err)

	err = orchestrator.HandleWebhook(context.Background(), "card", "ext-replay-1", ports.WebhookSucceeded, "https://receipts/1", "")
	require.NoError(t, err, "a replayed succeeded webhook for an already-succeeded intent must be a silent no-op")

	intent, err := orchestrator.GetIntent(context.Background(), testTenant, created.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, intent.Status)
}

func TestProcessPayment_ProviderFailureMarksFailed(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{
		name: "card",
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{}, assert.AnError
		},
	}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	created, err := orchestrator.CreatePayment(context.Background(), services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(5000),
		IdempotencyKey: "idem-3",
	}, testTenantView())
	require.NoError(t, err)

	_, err = orchestrator.ProcessPayment(context.Background(), created.Intent.ID, testTenant, "card")
	assert.ErrorIs(t, err, apperrors.ErrProvider)

	stored, getErr := orchestrator.GetIntent(context.Background(), testTenant, created.Intent.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.PaymentFailed, stored.Status)
}

func TestRefund_RejectsOverRefund(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{
		name: "card",
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{ExternalID: "ext-1", Status: "succeeded"}, nil
		},
	}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	created, err := orchestrator.CreatePayment(context.Background(), services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(5000),
		IdempotencyKey: "idem-4",
	}, testTenantView())
	require.NoError(t, err)
	_, err = orchestrator.ProcessPayment(context.Background(), created.Intent.ID, testTenant, "card")
	require.NoError(t, err)

	tooMuch := money(999999)
	_, err = orchestrator.Refund(context.Background(), provider, testTenant, created.Intent.ID, &tooMuch, "too much")
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestRefund_FullRefundTransitionsToRefunded(t *testing.T) {
	payments := memory.NewPaymentIntentRepository()
	provider := &stubProvider{
		name: "card",
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{ExternalID: "ext-1", Status: "succeeded"}, nil
		},
	}
	orchestrator := services.NewPaymentOrchestrator(payments, singleProviderRegistry{provider}, nil)

	created, err := orchestrator.CreatePayment(context.Background(), services.CreatePaymentRequest{
		TenantID:       testTenant,
		CustomerID:     "cust-1",
		Type:           domain.PaymentTypeCard,
		Amount:         money(5000),
		IdempotencyKey: "idem-5",
	}, testTenantView())
	require.NoError(t, err)
	_, err = orchestrator.ProcessPayment(context.Background(), created.Intent.ID, testTenant, "card")
	require.NoError(t, err)

	result, err := orchestrator.Refund(context.Background(), provider, testTenant, created.Intent.ID, nil, "customer request")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, result.Intent.Status)
	assert.Equal(t, int64(1), result.Intent.RefundCount)
}
