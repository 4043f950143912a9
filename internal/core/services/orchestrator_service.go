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

// PaymentOrchestrator owns the payment-intent lifecycle across pluggable
// providers: idempotent creation, provider routing, webhook ingestion, and
// refund bookkeeping. It never posts ledger entries itself — §4.2 leaves
// that to an event subscriber reacting to PaymentSucceeded/PaymentRefunded.
type PaymentOrchestrator struct {
	BaseService
	payments  repositories.PaymentIntentRepository
	providers ports.ProviderRegistry
	events    ports.EventPublisher
}

// NewPaymentOrchestrator wires the orchestrator to its repository, provider
// registry, and event publisher.
func NewPaymentOrchestrator(payments repositories.PaymentIntentRepository, providers ports.ProviderRegistry, events ports.EventPublisher) *PaymentOrchestrator {
	return &PaymentOrchestrator{payments: payments, providers: providers, events: events}
}

// CreatePaymentRequest is the input to create_payment.
type CreatePaymentRequest struct {
	TenantID            domain.TenantID
	CustomerID          domain.CustomerID
	LeaseID             domain.LeaseID
	Type                domain.PaymentType
	Amount              domain.Money
	Description         string
	StatementDescriptor string
	IdempotencyKey      string
	Method              string // non-empty triggers an immediate process_payment
}

// PaymentResult is the outcome of create_payment or process_payment.
type PaymentResult struct {
	Intent       domain.PaymentIntent
	AlreadyExisted bool
}

// CreatePayment looks up (tenant, idempotency_key) first; if found, returns
// the existing intent unchanged. Otherwise it computes the platform fee,
// persists a new pending intent, and — if a payment method was supplied —
// immediately attempts to process it.
func (o *PaymentOrchestrator) CreatePayment(ctx context.Context, req CreatePaymentRequest, tenant domain.TenantView) (PaymentResult, error) {
	if len(req.StatementDescriptor) > domain.StatementDescriptorMaxLen {
		return PaymentResult{}, fmt.Errorf("%w: statement_descriptor exceeds %d chars", apperrors.ErrValidation, domain.StatementDescriptorMaxLen)
	}

	existing, found, err := o.payments.FindByIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey)
	if err != nil {
		return PaymentResult{}, err
	}
	if found {
		return PaymentResult{Intent: existing, AlreadyExisted: true}, nil
	}

	fee := req.Amount.ApplyPercentHalfAwayFromZero(tenant.FeePercent)
	net, err := req.Amount.Sub(fee)
	if err != nil {
		return PaymentResult{}, err
	}

	now := time.Now().UTC()
	intent := domain.PaymentIntent{
		ID:                  domain.NewPaymentIntentID(),
		TenantID:            req.TenantID,
		CustomerID:          req.CustomerID,
		LeaseID:             req.LeaseID,
		Type:                req.Type,
		Status:              domain.PaymentPending,
		Amount:              req.Amount,
		PlatformFee:         fee,
		NetAmount:           net,
		Description:         req.Description,
		StatementDescriptor: req.StatementDescriptor,
		IdempotencyKey:      req.IdempotencyKey,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = o.payments.Atomic(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return o.payments.Create(ctx, uow, intent)
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if req.Method == "" {
		return PaymentResult{Intent: intent}, nil
	}
	return o.ProcessPayment(ctx, intent.ID, req.TenantID, req.Method)
}

// ProcessPayment transitions a pending intent to processing and invokes the
// resolved provider.
func (o *PaymentOrchestrator) ProcessPayment(ctx context.Context, id domain.PaymentIntentID, tenant domain.TenantID, method string) (PaymentResult, error) {
	intent, err := o.payments.Get(ctx, tenant, id)
	if err != nil {
		return PaymentResult{}, err
	}
	if !domain.IsValidPaymentTransition(intent.Status, domain.PaymentProcessing) {
		return PaymentResult{}, fmt.Errorf("%w: illegal_transition %s -> processing", apperrors.ErrState, intent.Status)
	}

	provider, err := o.providers.Resolve(intent.Amount.Currency)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("%w: no_provider_for_currency %s", apperrors.ErrValidation, intent.Amount.Currency)
	}

	intent.Status = domain.PaymentProcessing
	intent.ProviderName = provider.Name()
	intent.UpdatedAt = time.Now().UTC()

	providerIntent, err := provider.CreatePaymentIntent(ctx, ports.CreatePaymentIntentRequest{
		Amount:              intent.Amount,
		Method:              method,
		Description:         intent.Description,
		StatementDescriptor: intent.StatementDescriptor,
		IdempotencyKey:      intent.IdempotencyKey,
		PlatformFee:         &intent.PlatformFee,
	})
	if err != nil {
		intent.Status = domain.PaymentFailed
		intent.FailureReason = err.Error()
		_ = o.save(ctx, intent)
		return PaymentResult{Intent: intent}, fmt.Errorf("%w: %v", apperrors.ErrProvider, err)
	}

	intent.ExternalID = providerIntent.ExternalID
	if providerIntent.RequiresAction {
		intent.Status = domain.PaymentRequiresAction
	} else if providerIntent.Status == "succeeded" {
		return o.transitionToSucceeded(ctx, intent, providerIntent.ReceiptURL)
	} else if providerIntent.Status == "failed" {
		intent.Status = domain.PaymentFailed
		intent.FailureReason = providerIntent.FailureReason
	}

	if err := o.save(ctx, intent); err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Intent: intent}, nil
}

// GetIntent returns a payment intent by id, or apperrors.ErrNotFound.
func (o *PaymentOrchestrator) GetIntent(ctx context.Context, tenant domain.TenantID, id domain.PaymentIntentID) (domain.PaymentIntent, error) {
	return o.payments.Get(ctx, tenant, id)
}

// HandleWebhook looks up the intent by (provider, external_id); if absent it
// logs and acks without error, since providers retry undelivered webhooks.
// If present, it dispatches the normalised outcome through the state
// machine. Replaying the same terminal-state transition is a no-op.
func (o *PaymentOrchestrator) HandleWebhook(ctx context.Context, provider string, externalID string, outcome ports.WebhookOutcome, receiptURL, failureReason string) error {
	intent, found, err := o.payments.FindByProviderExternalID(ctx, provider, externalID)
	if err != nil {
		return err
	}
	if !found {
		o.LogInfo(ctx, "webhook: no matching intent, acking without action", "provider", provider, "external_id", externalID)
		return nil
	}

	if domain.IsTerminalPaymentStatus(intent.Status) {
		o.LogDebug(ctx, "webhook: intent already terminal, no-op", "intent_id", intent.ID, "status", intent.Status)
		return nil
	}

	switch outcome {
	case ports.WebhookSucceeded:
		if intent.Status == domain.PaymentSucceeded {
			o.LogDebug(ctx, "webhook: duplicate succeeded delivery, no-op", "intent_id", intent.ID)
			return nil
		}
		_, err := o.transitionToSucceeded(ctx, intent, receiptURL)
		return err
	case ports.WebhookFailed:
		if !domain.IsValidPaymentTransition(intent.Status, domain.PaymentFailed) {
			return fmt.Errorf("%w: illegal_transition %s -> failed", apperrors.ErrState, intent.Status)
		}
		intent.Status = domain.PaymentFailed
		intent.FailureReason = failureReason
		intent.UpdatedAt = time.Now().UTC()
		return o.save(ctx, intent)
	case ports.WebhookCancelled:
		if !domain.IsValidPaymentTransition(intent.Status, domain.PaymentCancelled) {
			return fmt.Errorf("%w: illegal_transition %s -> cancelled", apperrors.ErrState, intent.Status)
		}
		intent.Status = domain.PaymentCancelled
		intent.UpdatedAt = time.Now().UTC()
		return o.save(ctx, intent)
	default:
		return fmt.Errorf("%w: unrecognised webhook outcome %q", apperrors.ErrValidation, outcome)
	}
}

func (o *PaymentOrchestrator) transitionToSucceeded(ctx context.Context, intent domain.PaymentIntent, receiptURL string) (PaymentResult, error) {
	if !domain.IsValidPaymentTransition(intent.Status, domain.PaymentSucceeded) {
		return PaymentResult{}, fmt.Errorf("%w: illegal_transition %s -> succeeded", apperrors.ErrState, intent.Status)
	}
	now := time.Now().UTC()
	intent.Status = domain.PaymentSucceeded
	intent.ReceiptURL = receiptURL
	intent.PaidAt = now
	intent.UpdatedAt = now

	if err := o.save(ctx, intent); err != nil {
		return PaymentResult{}, err
	}

	if o.events != nil {
		evt := domain.PaymentSucceededEvent{
			TenantID:        intent.TenantID,
			PaymentIntentID: intent.ID,
			CustomerID:      intent.CustomerID,
			Amount:          intent.Amount,
			PlatformFee:     intent.PlatformFee,
			NetAmount:       intent.NetAmount,
			PaidAt:          now,
			ReceiptURL:      receiptURL,
		}
		if err := o.events.Publish(ctx, intent.TenantID, "payment_intent", string(intent.ID), domain.EventPaymentSucceeded, evt); err != nil {
			o.LogError(ctx, err, "orchestrator: failed publishing PaymentSucceeded", "intent_id", intent.ID)
		}
	}
	return PaymentResult{Intent: intent}, nil
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	Intent domain.PaymentIntent
}

// Refund refunds amount (or the full refundable amount if nil) from a
// succeeded/partially_refunded intent. A request exceeding the refundable
// amount fails over_refund.
func (o *PaymentOrchestrator) Refund(ctx context.Context, provider ports.ProviderAdapter, tenant domain.TenantID, id domain.PaymentIntentID, amount *domain.Money, reason string) (RefundResult, error) {
	intent, err := o.payments.Get(ctx, tenant, id)
	if err != nil {
		return RefundResult{}, err
	}

	refundable := intent.RefundableAmount()
	requested := refundable
	if amount != nil {
		requested = *amount
	}
	if requested.AmountMinor <= 0 || requested.AmountMinor > refundable.AmountMinor {
		return RefundResult{}, fmt.Errorf("%w: over_refund requested=%d refundable=%d", apperrors.ErrState, requested.AmountMinor, refundable.AmountMinor)
	}

	targetStatus := domain.PaymentPartiallyRefunded
	fullyRefunded := requested.AmountMinor == refundable.AmountMinor
	if fullyRefunded {
		targetStatus = domain.PaymentRefunded
	}
	if !domain.IsValidPaymentTransition(intent.Status, targetStatus) {
		return RefundResult{}, fmt.Errorf("%w: illegal_transition %s -> %s", apperrors.ErrState, intent.Status, targetStatus)
	}

	if err := provider.RefundPayment(ctx, intent.ExternalID, requested); err != nil {
		return RefundResult{}, fmt.Errorf("%w: %v", apperrors.ErrProvider, err)
	}

	intent.RefundCount++
	refundSequence := intent.RefundCount
	intent.RefundedAmountMinor += requested.AmountMinor
	intent.Status = targetStatus
	intent.UpdatedAt = time.Now().UTC()
	if err := o.save(ctx, intent); err != nil {
		return RefundResult{}, err
	}

	if o.events != nil {
		evt := domain.PaymentRefundedEvent{
			TenantID:        intent.TenantID,
			PaymentIntentID: intent.ID,
			RefundedAmount:  requested,
			RefundSequence:  refundSequence,
			FullyRefunded:   fullyRefunded,
			RefundedAt:      intent.UpdatedAt,
		}
		if err := o.events.Publish(ctx, intent.TenantID, "payment_intent", string(intent.ID), domain.EventPaymentRefunded, evt); err != nil {
			o.LogError(ctx, err, "orchestrator: failed publishing PaymentRefunded", "intent_id", intent.ID)
		}
	}
	return RefundResult{Intent: intent}, nil
}

func (o *PaymentOrchestrator) save(ctx context.Context, intent domain.PaymentIntent) error {
	return o.payments.Atomic(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return o.payments.Update(ctx, uow, intent)
	})
}
