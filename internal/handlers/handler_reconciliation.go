package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
)

// ReconciliationHandler exposes the Reconciliation Engine over HTTP.
type ReconciliationHandler struct {
	reconciliation *services.ReconciliationEngine
	orchestrator   *services.PaymentOrchestrator
}

// NewReconciliationHandler wires a reconciliation handler to the engine and orchestrator.
func NewReconciliationHandler(reconciliation *services.ReconciliationEngine, orchestrator *services.PaymentOrchestrator) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation, orchestrator: orchestrator}
}

func (h *ReconciliationHandler) ledgerSelfCheck(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var accounts []domain.AccountID
	for _, raw := range strings.Split(c.Query("account_ids"), ",") {
		if raw != "" {
			accounts = append(accounts, domain.AccountID(raw))
		}
	}

	exceptions, err := h.reconciliation.LedgerSelfCheck(c.Request.Context(), tenant.ID, accounts)
	if err != nil {
		writeServiceError(c, logger, "ledger self check", err)
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

func (h *ReconciliationHandler) syncProviderStatus(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	maxAge := 24 * time.Hour
	if raw := c.Query("max_age"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			maxAge = d
		}
	}

	exceptions, err := h.reconciliation.SyncProviderStatus(c.Request.Context(), h.orchestrator, maxAge)
	if err != nil {
		writeServiceError(c, logger, "sync provider status", err)
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

func (h *ReconciliationHandler) matchBankTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var body struct {
		AccountID            string                   `json:"account_id" binding:"required"`
		OpeningBalanceMinor  int64                    `json:"opening_balance_minor"`
		ExpectedClosingMinor int64                    `json:"expected_closing_minor"`
		Currency             string                   `json:"currency" binding:"required"`
		Payments             []domain.PaymentIntent   `json:"payments"`
		BankTransactions     []domain.BankTransaction `json:"bank_transactions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	currency := domain.CurrencyCode(body.Currency)
	opening := domain.Money{AmountMinor: body.OpeningBalanceMinor, Currency: currency}
	expectedClosing := domain.Money{AmountMinor: body.ExpectedClosingMinor, Currency: currency}

	result := h.reconciliation.MatchBankTransactions(c.Request.Context(), domain.AccountID(body.AccountID), opening, expectedClosing, body.Payments, body.BankTransactions)
	logger.Info("bank reconciliation computed", "account_id", body.AccountID, "discrepancy_minor", result.DiscrepancyMinor)
	c.JSON(http.StatusOK, result)
}

func registerReconciliationRoutes(authenticated *gin.RouterGroup, h *ReconciliationHandler) {
	reconciliation := authenticated.Group("/reconciliation")
	{
		reconciliation.GET("/ledger-self-check", h.ledgerSelfCheck)
		reconciliation.POST("/sync-provider-status", h.syncProviderStatus)
		reconciliation.POST("/match-bank-transactions", h.matchBankTransactions)
	}
}
