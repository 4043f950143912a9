// Package mobilemoney adapts an STK-push-style mobile money API (the rails
// most property owners in the platform's core market are paid through) to
// ports.ProviderAdapter. There is no third-party Go SDK for this class of
// API in the dependency pack, so the transport is a thin net/http client;
// authentication reuses the OAuth2 client-credentials flow the teacher
// already depends on for its own login handler.
package mobilemoney

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
)

// Config holds the credentials and endpoints for the STK-push API.
type Config struct {
	BaseURL          string
	TokenURL         string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	Currencies       []domain.CurrencyCode
}

// Adapter implements ports.ProviderAdapter against an STK-push mobile money
// API. It does not support card-network concepts (saved payment methods,
// connected accounts) and returns apperrors.ErrUnsupported for those calls.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// NewAdapter constructs an Adapter, wiring the OAuth2 client-credentials
// token source into the HTTP client so every outbound call carries a fresh
// bearer token.
func NewAdapter(cfg Config) *Adapter {
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ConsumerKey,
		ClientSecret: cfg.ConsumerSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &Adapter{
		cfg:    cfg,
		client: oauthCfg.Client(context.Background()),
	}
}

func (a *Adapter) Name() string { return "mobilemoney" }

func (a *Adapter) SupportedCurrencies() []domain.CurrencyCode { return a.cfg.Currencies }

func (a *Adapter) CreateCustomer(ctx context.Context, tenant domain.TenantID, customer domain.CustomerID) (string, error) {
	// STK push addresses a phone number at request time; there is no
	// durable customer record to create up front.
	return string(customer), nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Timestamp         string `json:"Timestamp"`
	Password          string `json:"Password"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

func (a *Adapter) CreatePaymentIntent(ctx context.Context, req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
	timestamp := time.Now().Format("20060102150405")
	body := stkPushRequest{
		BusinessShortCode: a.cfg.ShortCode,
		Timestamp:         timestamp,
		Password:          a.password(timestamp),
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.AmountMinor / 100,
		PartyA:            req.CustomerExternalID,
		PartyB:            a.cfg.ShortCode,
		PhoneNumber:       req.CustomerExternalID,
		CallBackURL:       a.cfg.CallbackURL,
		AccountReference:  req.StatementDescriptor,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	if err := a.post(ctx, "/mpesa/stkpush/v1/processrequest", body, &resp); err != nil {
		return ports.ProviderPaymentIntent{}, err
	}
	if resp.ResponseCode != "0" {
		return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: stk push rejected: %s", apperrors.ErrProvider, resp.ResponseDescription)
	}
	return ports.ProviderPaymentIntent{
		ExternalID:     resp.CheckoutRequestID,
		Status:         "pending",
		RequiresAction: true,
	}, nil
}

func (a *Adapter) ConfirmPaymentIntent(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	// Confirmation happens on the customer's handset (PIN entry); the
	// platform only observes the outcome via GetPaymentIntentStatus or the
	// async callback.
	return a.GetPaymentIntentStatus(ctx, externalID)
}

func (a *Adapter) CancelPaymentIntent(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	return ports.ProviderPaymentIntent{}, fmt.Errorf("%w: mobile money stk push cannot be cancelled once sent", apperrors.ErrUnsupported)
}

type stkQueryResponse struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func (a *Adapter) GetPaymentIntentStatus(ctx context.Context, externalID string) (ports.ProviderPaymentIntent, error) {
	timestamp := time.Now().Format("20060102150405")
	body := map[string]string{
		"BusinessShortCode": a.cfg.ShortCode,
		"Password":          a.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": externalID,
	}
	var resp stkQueryResponse
	if err := a.post(ctx, "/mpesa/stkpushquery/v1/query", body, &resp); err != nil {
		return ports.ProviderPaymentIntent{}, err
	}

	switch resp.ResultCode {
	case "":
		return ports.ProviderPaymentIntent{ExternalID: externalID, Status: "pending", RequiresAction: true}, nil
	case "0":
		return ports.ProviderPaymentIntent{ExternalID: externalID, Status: "succeeded"}, nil
	default:
		return ports.ProviderPaymentIntent{ExternalID: externalID, Status: "failed", FailureReason: resp.ResultDesc}, nil
	}
}

func (a *Adapter) RefundPayment(ctx context.Context, externalID string, amount domain.Money) error {
	body := map[string]any{
		"Initiator":            a.cfg.ShortCode,
		"TransactionID":        externalID,
		"Amount":               amount.AmountMinor / 100,
		"Remarks":              "refund",
		"ResultURL":            a.cfg.CallbackURL,
		"QueueTimeOutURL":      a.cfg.CallbackURL,
	}
	return a.post(ctx, "/mpesa/reversal/v1/request", body, nil)
}

func (a *Adapter) CreateTransfer(ctx context.Context, req ports.TransferRequest) (ports.ProviderTransfer, error) {
	body := map[string]any{
		"InitiatorName":   a.cfg.ShortCode,
		"Amount":          req.Amount.AmountMinor / 100,
		"PartyA":          a.cfg.ShortCode,
		"PartyB":          req.Destination,
		"Remarks":         req.Description,
		"ResultURL":       a.cfg.CallbackURL,
		"QueueTimeOutURL": a.cfg.CallbackURL,
		"CommandID":       "BusinessPayment",
	}
	var resp stkPushResponse
	if err := a.post(ctx, "/mpesa/b2c/v1/paymentrequest", body, &resp); err != nil {
		return ports.ProviderTransfer{}, err
	}
	return ports.ProviderTransfer{TransferID: resp.MerchantRequestID, Status: "pending"}, nil
}

func (a *Adapter) GetTransferStatus(ctx context.Context, transferID string) (ports.ProviderTransfer, error) {
	return ports.ProviderTransfer{}, fmt.Errorf("%w: mobile money transfer status is delivered async via callback, not polled", apperrors.ErrUnsupported)
}

func (a *Adapter) ListPaymentMethods(ctx context.Context, customerExternalID string) ([]string, error) {
	return nil, fmt.Errorf("%w: mobile money has no stored payment methods", apperrors.ErrUnsupported)
}

func (a *Adapter) AttachPaymentMethod(ctx context.Context, customerExternalID, methodID string) error {
	return fmt.Errorf("%w: mobile money has no stored payment methods", apperrors.ErrUnsupported)
}

func (a *Adapter) DetachPaymentMethod(ctx context.Context, methodID string) error {
	return fmt.Errorf("%w: mobile money has no stored payment methods", apperrors.ErrUnsupported)
}

func (a *Adapter) CreateConnectedAccount(ctx context.Context, tenant domain.TenantID, owner domain.OwnerID) (string, error) {
	return "", fmt.Errorf("%w: mobile money has no connected-account concept, payouts address a phone number directly", apperrors.ErrUnsupported)
}

func (a *Adapter) CreateAccountLink(ctx context.Context, connectedAccountExternalID, refreshURL, returnURL string) (string, error) {
	return "", fmt.Errorf("%w: mobile money has no connected-account onboarding flow", apperrors.ErrUnsupported)
}

func (a *Adapter) VerifyWebhookSignature(payload []byte, signatureHeader string) error {
	// The STK-push callback API authenticates by source IP allowlist and
	// carries no per-request signature header.
	return nil
}

type stkCallback struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (a *Adapter) ParseWebhookEvent(payload []byte) (ports.WebhookEvent, error) {
	var cb stkCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return ports.WebhookEvent{}, fmt.Errorf("%w: mobile money callback payload: %v", apperrors.ErrProvider, err)
	}
	outcome := ports.WebhookSucceeded
	reason := ""
	if cb.Body.StkCallback.ResultCode != 0 {
		outcome = ports.WebhookFailed
		reason = cb.Body.StkCallback.ResultDesc
	}
	return ports.WebhookEvent{
		ProviderExternalID: cb.Body.StkCallback.CheckoutRequestID,
		Outcome:            outcome,
		FailureReason:      reason,
	}, nil
}

func (a *Adapter) password(timestamp string) string {
	raw := a.cfg.ShortCode + a.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (a *Adapter) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode mobile money request: %v", apperrors.ErrProvider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build mobile money request: %v", apperrors.ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: mobile money request failed: %v", apperrors.ErrProvider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read mobile money response: %v", apperrors.ErrProvider, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: mobile money returned %d: %s", apperrors.ErrProvider, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode mobile money response: %v", apperrors.ErrProvider, err)
	}
	return nil
}

var _ ports.ProviderAdapter = (*Adapter)(nil)
