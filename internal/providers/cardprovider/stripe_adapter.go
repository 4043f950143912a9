// Package cardprovider adapts card-network payments (Stripe) to
// ports.ProviderAdapter.
package cardprovider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/account"
	"github.com/stripe/stripe-go/v76/accountlink"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/paymentmethod"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/transfer"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
)

// StripeAdapter implements ports.ProviderAdapter against Stripe's card rails
// and Connect (for owner payouts via connected accounts).
type StripeAdapter struct {
	webhookSecret string
	currencies    []domain.CurrencyCode
}

// NewStripeAdapter constructs a StripeAdapter. apiKey and webhookSecret come
// from configuration, never hardcoded.
func NewStripeAdapter(apiKey, webhookSecret string, currencies []domain.CurrencyCode) *StripeAdapter {
	stripe.Key = apiKey
	return &StripeAdapter{webhookSecret: webhookSecret, currencies: currencies}
}

func (s *StripeAdapter) Name() string { return "stripe" }

func (s *StripeAdapter) SupportedCurrencies() []domain.CurrencyCode { return s.currencies }

func (s *StripeAdapter) CreateCustomer(ctx context.Context, tenant domain.TenantID, customerID domain.CustomerID) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"tenant_id":   string(tenant),
			"customer_id": string(customerID),
		},
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: stripe create customer: %v", apperrors.ErrProvider, err)
	}
	return c.ID, nil
}

func (s *StripeAdapter) CreatePaymentIntent(ctx context.Context, req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.AmountMinor),
		Currency: stripe.String(string(req.Amount.Currency)),
	}
	if req.CustomerExternalID != "" {
		params.Customer = stripe.String(req.CustomerExternalID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.StatementDescriptor != "" {
		params.StatementDescriptor = stripe.String(req.StatementDescriptor)
	}
	if req.PlatformFee != nil {
		params.ApplicationFeeAmount = stripe.Int64(req.PlatformFee.AmountMinor)
	}
	if req.Destination != "" {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{Destination: stripe.String(req.Destination)}
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}
	params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: stripe create payment intent: %v", apperrors.ErrProvider, err)
	}
	return toProviderPaymentIntent(pi), nil
}

func (s *StripeAdapter) ConfirmPaymentIntent(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	pi, err := paymentintent.Confirm(externalID, &stripe.PaymentIntentConfirmParams{})
	if err != nil {
		return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: stripe confirm payment intent: %v", apperrors.ErrProvider, err)
	}
	return toProviderPaymentIntent(pi), nil
}

func (s *StripeAdapter) CancelPaymentIntent(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	pi, err := paymentintent.Cancel(externalID, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: stripe cancel payment intent: %v", apperrors.ErrProvider, err)
	}
	return toProviderPaymentIntent(pi), nil
}

func (s *StripeAdapter) GetPaymentIntentStatus(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	pi, err := paymentintent.Get(externalID, nil)
	if err != nil {
		return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: stripe get payment intent: %v", apperrors.ErrProvider, err)
	}
	return toProviderPaymentIntent(pi), nil
}

func (s *StripeAdapter) RefundPayment(ctx context.Context, externalID string, amount domain.Money) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(externalID)}
	if !amount.IsZero() {
		params.Amount = stripe.Int64(amount.AmountMinor)
	}
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("%w: stripe refund: %v", apperrors.ErrProvider, err)
	}
	return nil
}

func (s *StripeAdapter) CreateTransfer(ctx context.Context, req ports.TransferRequest) (ports.ProviderTransfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount.AmountMinor),
		Currency:    stripe.String(string(req.Amount.Currency)),
		Destination: stripe.String(req.Destination),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	t, err := transfer.New(params)
	if err != nil {
		return ports.ProviderTransfer{}, fmt.Errorf("%w: stripe create transfer: %v", apperrors.ErrProvider, err)
	}
	return ports.ProviderTransfer{TransferID: t.ID, Status: "paid"}, nil
}

func (s *StripeAdapter) GetTransferStatus(ctx context.Context, transferID string) (ports.ProviderTransfer, error) {
	t, err := transfer.Get(transferID, nil)
	if err != nil {
		return ports.ProviderTransfer{}, fmt.Errorf("%w: stripe get transfer: %v", apperrors.ErrProvider, err)
	}
	status := "paid"
	if t.Reversed {
		status = "failed"
	}
	return ports.ProviderTransfer{TransferID: t.ID, Status: status}, nil
}

func (s *StripeAdapter) ListPaymentMethods(ctx context.Context, customerExternalID string) ([]string, error) {
	params := &stripe.PaymentMethodListParams{Customer: stripe.String(customerExternalID)}
	var ids []string
	iter := paymentmethod.List(params)
	for iter.Next() {
		ids = append(ids, iter.PaymentMethod().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: stripe list payment methods: %v", apperrors.ErrProvider, err)
	}
	return ids, nil
}

func (s *StripeAdapter) AttachPaymentMethod(ctx context.Context, customerExternalID, methodID string) error {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerExternalID)}
	if _, err := paymentmethod.Attach(methodID, params); err != nil {
		return fmt.Errorf("%w: stripe attach payment method: %v", apperrors.ErrProvider, err)
	}
	return nil
}

func (s *StripeAdapter) DetachPaymentMethod(ctx context.Context, methodID string) error {
	if _, err := paymentmethod.Detach(methodID, nil); err != nil {
		return fmt.Errorf("%w: stripe detach payment method: %v", apperrors.ErrProvider, err)
	}
	return nil
}

func (s *StripeAdapter) CreateConnectedAccount(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID) (string, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Metadata: map[string]string{
			"tenant_id": string(tenant),
			"owner_id":  string(owner),
		},
	}
	a, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: stripe create connected account: %v", apperrors.ErrProvider, err)
	}
	return a.ID, nil
}

func (s *StripeAdapter) CreateAccountLink(ctx context.Context, connectedAccountExternalID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(connectedAccountExternalID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: stripe create account link: %v", apperrors.ErrProvider, err)
	}
	return link.URL, nil
}

func (s *StripeAdapter) VerifyWebhookSignature(payload []byte, signatureHeader string) error {
	_, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: stripe webhook signature: %v", apperrors.ErrProvider, err)
	}
	return nil
}

func (s *StripeAdapter) ParseWebhookEvent(payload []byte) (ports.WebhookEvent, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return ports.WebhookEvent{}, fmt.Errorf("%w: stripe webhook payload: %v", apperrors.ErrProvider, err)
	}

	switch evt.Type {
	case "payment_intent.succeeded":
		pi, err := unmarshalPaymentIntent(evt.Data.Raw)
		if err != nil {
			return ports.WebhookEvent{}, err
		}
		return ports.WebhookEvent{ProviderExternalID: pi.ID, Outcome: ports.WebhookSucceeded, ReceiptURL: receiptURL(pi)}, nil
	case "payment_intent.payment_failed":
		pi, err := unmarshalPaymentIntent(evt.Data.Raw)
		if err != nil {
			return ports.WebhookEvent{}, err
		}
		reason := ""
		if pi.LastPaymentError != nil {
			reason = pi.LastPaymentError.Msg
		}
		return ports.WebhookEvent{ProviderExternalID: pi.ID, Outcome: ports.WebhookFailed, FailureReason: reason}, nil
	case "payment_intent.canceled":
		pi, err := unmarshalPaymentIntent(evt.Data.Raw)
		if err != nil {
			return ports.WebhookEvent{}, err
		}
		return ports.WebhookEvent{ProviderExternalID: pi.ID, Outcome: ports.WebhookCancelled}, nil
	default:
		return ports.WebhookEvent{}, fmt.Errorf("%w: unhandled stripe event type %q", apperrors.ErrUnsupported, evt.Type)
	}
}

func unmarshalPaymentIntent(raw json.RawMessage) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: stripe payment_intent payload: %v", apperrors.ErrProvider, err)
	}
	return &pi, nil
}

func receiptURL(pi *stripe.PaymentIntent) string {
	if len(pi.Charges.Data) == 0 {
		return ""
	}
	return pi.Charges.Data[0].ReceiptURL
}

func toProviderPaymentIntent(pi *stripe.PaymentIntent) ports.ProviderPaymentIntent {
	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}
	return ports.ProviderPaymentIntent{
		ExternalID:     pi.ID,
		Status:         string(pi.Status),
		RequiresAction: pi.Status == stripe.PaymentIntentStatusRequiresAction,
		ReceiptURL:     receiptURL(pi),
		FailureReason:  reason,
	}
}

var _ ports.ProviderAdapter = (*StripeAdapter)(nil)
