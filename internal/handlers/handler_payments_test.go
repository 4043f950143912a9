package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/handlers"
	"github.com/proptech-ledger/ledgerd/internal/platform/config"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

const testJWTSecret = "test-secret-key-long-enough-for-hs256"

// stubCardProvider is a minimal ports.ProviderAdapter exercising only what
// the payment handler routes touch in these tests.
type stubCardProvider struct {
	createIntentFn func(ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error)
}

func (s *stubCardProvider) Name() string                              { return "card" }
func (s *stubCardProvider) SupportedCurrencies() []domain.CurrencyCode { return []domain.CurrencyCode{domain.USD} }
func (s *stubCardProvider) CreateCustomer(context.Context, domain.TenantID, domain.CustomerID) (string, error) {
	return "cust-ext", nil
}
func (s *stubCardProvider) CreatePaymentIntent(ctx context.Context, req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
	return s.createIntentFn(req)
}
func (s *stubCardProvider) ConfirmPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubCardProvider) CancelPaymentIntent(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubCardProvider) GetPaymentIntentStatus(context.Context, string) (ports.ProviderPaymentIntent, error) {
	panic("not exercised")
}
func (s *stubCardProvider) RefundPayment(context.Context, string, domain.Money) error { panic("not exercised") }
func (s *stubCardProvider) CreateTransfer(context.Context, ports.TransferRequest) (ports.ProviderTransfer, error) {
	panic("not exercised")
}
func (s *stubCardProvider) GetTransferStatus(context.Context, string) (ports.ProviderTransfer, error) {
	panic("not exercised")
}
func (s *stubCardProvider) ListPaymentMethods(context.Context, string) ([]string, error) { panic("not exercised") }
func (s *stubCardProvider) AttachPaymentMethod(context.Context, string, string) error     { panic("not exercised") }
func (s *stubCardProvider) DetachPaymentMethod(context.Context, string) error             { panic("not exercised") }
func (s *stubCardProvider) CreateConnectedAccount(context.Context, domain.TenantID, domain.OwnerID) (string, error) {
	panic("not exercised")
}
func (s *stubCardProvider) CreateAccountLink(context.Context, string, string, string) (string, error) {
	panic("not exercised")
}
func (s *stubCardProvider) VerifyWebhookSignature([]byte, string) error {
	return errors.New("invalid webhook signature")
}
func (s *stubCardProvider) ParseWebhookEvent([]byte) (ports.WebhookEvent, error) { panic("not exercised") }

type singleProviderRegistry struct{ provider ports.ProviderAdapter }

func (r singleProviderRegistry) Resolve(domain.CurrencyCode) (ports.ProviderAdapter, error) { return r.provider, nil }
func (r singleProviderRegistry) ByName(string) (ports.ProviderAdapter, error)                { return r.provider, nil }

func newTestRouter(t *testing.T, provider ports.ProviderAdapter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payments := memory.NewPaymentIntentRepository()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	registry := singleProviderRegistry{provider}
	orchestrator := services.NewPaymentOrchestrator(payments, registry, nil)
	reconciliation := services.NewReconciliationEngine(ledger, payments, registry, nil, domain.DefaultMatchingThresholds())
	disbursements := services.NewDisbursementService(accounts, memory.NewDisbursementRepository(), ledger, registry, nil)
	statements := services.NewStatementBuilder(memory.NewStatementRepository(), ledger, nil)

	r := gin.New()
	handlers.RegisterRoutes(r, &config.Config{JWTSecret: testJWTSecret}, handlers.Services{
		Ledger:         ledger,
		Orchestrator:   orchestrator,
		Reconciliation: reconciliation,
		Disbursements:  disbursements,
		Statements:     statements,
		Providers:      registry,
	})
	return r
}

func signTestTenantToken(t *testing.T, tenantID domain.TenantID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":              string(tenantID),
		"tenant_name":      "Acme Properties",
		"default_currency": "USD",
		"fee_percent":      250,
		"holdback_percent": 0,
		"is_active":        true,
		"exp":              time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestCreatePayment_RequiresAuthentication(t *testing.T) {
	provider := &stubCardProvider{}
	router := newTestRouter(t, provider)

	body, _ := json.Marshal(map[string]any{
		"customer_id": "cust-1", "type": "card", "amount_minor": 5000,
		"currency": "USD", "idempotency_key": "idem-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePayment_ReturnsCreatedWithPlatformFee(t *testing.T) {
	provider := &stubCardProvider{}
	router := newTestRouter(t, provider)
	token := signTestTenantToken(t, "tenant-http-1")

	body, _ := json.Marshal(map[string]any{
		"customer_id": "cust-1", "type": "card", "amount_minor": 10000,
		"currency": "USD", "idempotency_key": "idem-http-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var intent domain.PaymentIntent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &intent))
	assert.Equal(t, int64(250), intent.PlatformFee.AmountMinor)
}

func TestProcessPayment_TransitionsToSucceeded(t *testing.T) {
	provider := &stubCardProvider{
		createIntentFn: func(req ports.CreatePaymentIntentRequest) (ports.ProviderPaymentIntent, error) {
			return ports.ProviderPaymentIntent{ExternalID: "ext-http-1", Status: "succeeded"}, nil
		},
	}
	router := newTestRouter(t, provider)
	token := signTestTenantToken(t, "tenant-http-2")

	createBody, _ := json.Marshal(map[string]any{
		"customer_id": "cust-1", "type": "card", "amount_minor": 2000,
		"currency": "USD", "idempotency_key": "idem-http-2",
	})
	createReq, _ := http.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader(createBody))
	createReq.Header.Set("Content-Type", "application/json")
	createReq.Header.Set("Authorization", "Bearer "+token)
	createW := httptest.NewRecorder()
	router.ServeHTTP(createW, createReq)
	require.Equal(t, http.StatusCreated, createW.Code)

	var created domain.PaymentIntent
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &created))

	processBody, _ := json.Marshal(map[string]any{"method": "card"})
	processReq, _ := http.NewRequest(http.MethodPost, "/api/v1/payments/"+string(created.ID)+"/process", bytes.NewReader(processBody))
	processReq.Header.Set("Content-Type", "application/json")
	processReq.Header.Set("Authorization", "Bearer "+token)
	processW := httptest.NewRecorder()
	router.ServeHTTP(processW, processReq)

	require.Equal(t, http.StatusOK, processW.Code)
	var processed domain.PaymentIntent
	require.NoError(t, json.Unmarshal(processW.Body.Bytes(), &processed))
	assert.Equal(t, domain.PaymentSucceeded, processed.Status)
}

func TestWebhook_RejectsInvalidSignatureWithoutHittingRateLimit(t *testing.T) {
	provider := &stubCardProvider{}
	router := newTestRouter(t, provider)

	req, _ := http.NewRequest(http.MethodPost, "/webhooks/card", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code, "a single request must stay under the 60-per-minute webhook limit and fail on signature instead")
}
