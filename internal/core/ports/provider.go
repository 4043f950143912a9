// Package ports defines the interfaces the core services consume: provider
// adapters, the event publisher, and (in the repositories subpackage)
// persistence contracts. Nothing in this package depends on a concrete
// provider SDK or storage engine.
package ports

import (
	"context"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// CreatePaymentIntentRequest is the adapter-level request to start collecting
// a payment with a specific provider.
type CreatePaymentIntentRequest struct {
	Amount              domain.Money
	CustomerExternalID  string
	Method              string
	Description         string
	StatementDescriptor string
	Metadata            map[string]string
	IdempotencyKey      string
	PlatformFee         *domain.Money
	Destination         string // connected-account id for marketplace-style splits
}

// ProviderPaymentIntent is the provider's view of a payment in flight.
type ProviderPaymentIntent struct {
	ExternalID    string
	Status        string
	RequiresAction bool
	ReceiptURL    string
	FailureReason string
}

// TransferRequest is the adapter-level request to pay out to an external
// destination (owner disbursement).
type TransferRequest struct {
	Amount         domain.Money
	Destination    string
	IdempotencyKey string
	Description    string
}

// ProviderTransfer is the provider's view of a transfer in flight.
type ProviderTransfer struct {
	TransferID       string
	Status           string
	EstimatedArrival time.Time
	FailureReason    string
}

// WebhookEvent is a provider webhook event, normalised into the three
// outcomes the core understands.
type WebhookEvent struct {
	ProviderExternalID string
	Outcome            WebhookOutcome
	ReceiptURL         string
	FailureReason      string
}

// WebhookOutcome is the closed set of normalised webhook results.
type WebhookOutcome string

const (
	WebhookSucceeded WebhookOutcome = "succeeded"
	WebhookFailed    WebhookOutcome = "failed"
	WebhookCancelled WebhookOutcome = "cancelled"
)

// ProviderAdapter is the interface every payment/payout provider (card,
// mobile money, …) implements. A provider lacking a capability returns
// apperrors.ErrUnsupported rather than a zero value.
type ProviderAdapter interface {
	Name() string
	SupportedCurrencies() []domain.CurrencyCode

	CreateCustomer(ctx context.Context, tenant domain.TenantID, customer domain.CustomerID) (externalID string, err error)
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (ProviderPaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, externalID string) (ProviderPaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, externalID string) (ProviderPaymentIntent, error)
	GetPaymentIntentStatus(ctx context.Context, externalID string) (ProviderPaymentIntent, error)
	RefundPayment(ctx context.Context, externalID string, amount domain.Money) error

	CreateTransfer(ctx context.Context, req TransferRequest) (ProviderTransfer, error)
	GetTransferStatus(ctx context.Context, transferID string) (ProviderTransfer, error)

	ListPaymentMethods(ctx context.Context, customerExternalID string) ([]string, error)
	AttachPaymentMethod(ctx context.Context, customerExternalID, methodID string) error
	DetachPaymentMethod(ctx context.Context, methodID string) error

	CreateConnectedAccount(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID) (externalID string, err error)
	CreateAccountLink(ctx context.Context, connectedAccountExternalID, refreshURL, returnURL string) (url string, err error)

	VerifyWebhookSignature(payload []byte, signatureHeader string) error
	ParseWebhookEvent(payload []byte) (WebhookEvent, error)
}

// ProviderRegistry resolves a provider for a currency, falling back to a
// configured default. Read-mostly and effectively immutable after startup.
type ProviderRegistry interface {
	Resolve(currency domain.CurrencyCode) (ProviderAdapter, error)
	ByName(name string) (ProviderAdapter, error)
}
