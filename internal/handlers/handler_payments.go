package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
)

// PaymentHandler exposes the Payment Orchestrator over HTTP.
type PaymentHandler struct {
	orchestrator *services.PaymentOrchestrator
	providers    ports.ProviderRegistry
}

// NewPaymentHandler wires a payment handler to its orchestrator and provider registry.
func NewPaymentHandler(orchestrator *services.PaymentOrchestrator, providers ports.ProviderRegistry) *PaymentHandler {
	return &PaymentHandler{orchestrator: orchestrator, providers: providers}
}

type createPaymentBody struct {
	CustomerID          string `json:"customer_id" binding:"required"`
	LeaseID             string `json:"lease_id"`
	Type                string `json:"type" binding:"required"`
	AmountMinor         int64  `json:"amount_minor" binding:"required"`
	Currency            string `json:"currency" binding:"required"`
	Description         string `json:"description"`
	StatementDescriptor string `json:"statement_descriptor"`
	IdempotencyKey      string `json:"idempotency_key" binding:"required"`
	Method              string `json:"method"`
}

func (h *PaymentHandler) createPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body createPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount := domain.Money{AmountMinor: body.AmountMinor, Currency: domain.CurrencyCode(body.Currency)}
	req := services.CreatePaymentRequest{
		TenantID:            tenant.ID,
		CustomerID:          domain.CustomerID(body.CustomerID),
		LeaseID:             domain.LeaseID(body.LeaseID),
		Type:                domain.PaymentType(body.Type),
		Amount:              amount,
		Description:         body.Description,
		StatementDescriptor: body.StatementDescriptor,
		IdempotencyKey:      body.IdempotencyKey,
		Method:              body.Method,
	}

	result, err := h.orchestrator.CreatePayment(c.Request.Context(), req, tenant)
	if err != nil {
		writeServiceError(c, logger, "create payment", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	c.JSON(status, result.Intent)
}

func (h *PaymentHandler) processPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.orchestrator.ProcessPayment(c.Request.Context(), domain.PaymentIntentID(c.Param("intentID")), tenant.ID, body.Method)
	if err != nil {
		writeServiceError(c, logger, "process payment", err)
		return
	}
	c.JSON(http.StatusOK, result.Intent)
}

func (h *PaymentHandler) getPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	intent, err := h.orchestrator.GetIntent(c.Request.Context(), tenant.ID, domain.PaymentIntentID(c.Param("intentID")))
	if err != nil {
		writeServiceError(c, logger, "get payment", err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *PaymentHandler) refundPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		Provider    string `json:"provider" binding:"required"`
		AmountMinor *int64 `json:"amount_minor"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	provider, err := h.providers.ByName(body.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}

	var amount *domain.Money
	if body.AmountMinor != nil {
		amount = &domain.Money{AmountMinor: *body.AmountMinor}
	}

	result, err := h.orchestrator.Refund(c.Request.Context(), provider, tenant.ID, domain.PaymentIntentID(c.Param("intentID")), amount, body.Reason)
	if err != nil {
		writeServiceError(c, logger, "refund payment", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// webhook ingests a provider callback. Providers are unauthenticated at the
// gin-route level (signature verification below replaces bearer auth), so
// this route is registered outside the tenant-authenticated group.
func (h *PaymentHandler) webhook(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	providerName := c.Param("provider")

	provider, err := h.providers.ByName(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if err := provider.VerifyWebhookSignature(payload, signature); err != nil {
		logger.Warn("webhook signature rejected", slog.String("provider", providerName), slog.String("error", err.Error()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	evt, err := provider.ParseWebhookEvent(payload)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupported) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable webhook"})
		return
	}

	if err := h.orchestrator.HandleWebhook(c.Request.Context(), providerName, evt.ProviderExternalID, evt.Outcome, evt.ReceiptURL, evt.FailureReason); err != nil {
		writeServiceError(c, logger, "handle webhook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func registerPaymentRoutes(authenticated *gin.RouterGroup, public *gin.RouterGroup, h *PaymentHandler) {
	payments := authenticated.Group("/payments")
	{
		payments.POST("", h.createPayment)
		payments.GET("/:intentID", h.getPayment)
		payments.POST("/:intentID/process", h.processPayment)
		payments.POST("/:intentID/refund", h.refundPayment)
	}

	// Webhook senders aren't rate-limited by tenant auth, so guard them with a
	// per-IP limit against a provider retrying (or an attacker hammering) the
	// signature-verification path.
	webhookRate, _ := limiter.NewRateFromFormatted("60-M")
	webhookLimiter := limiter.New(memory.NewStore(), webhookRate)
	public.POST("/webhooks/:provider", middleware.RateLimit(webhookLimiter), h.webhook)
}
