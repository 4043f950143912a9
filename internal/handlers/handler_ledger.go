package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
)

// LedgerHandler exposes the double-entry ledger's read and correction
// surface over HTTP. Journal posting itself is driven internally by the
// orchestrator/disbursement services, not by a public endpoint.
type LedgerHandler struct {
	ledger *services.LedgerEngine
}

// NewLedgerHandler wires a ledger handler to the ledger engine.
func NewLedgerHandler(ledger *services.LedgerEngine) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

func (h *LedgerHandler) getBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), tenant.ID, domain.AccountID(c.Param("accountID")))
	if err != nil {
		writeServiceError(c, logger, "get balance", err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *LedgerHandler) listEntries(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize <= 0 {
		pageSize = 50
	}
	page := repositories.Page{Token: c.Query("page_token"), PageSize: pageSize}

	entries, err := h.ledger.Entries(c.Request.Context(), tenant.ID, domain.AccountID(c.Param("accountID")), page)
	if err != nil {
		writeServiceError(c, logger, "list entries", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *LedgerHandler) verifyBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	report, err := h.ledger.VerifyAccountBalance(c.Request.Context(), tenant.ID, domain.AccountID(c.Param("accountID")))
	if err != nil {
		writeServiceError(c, logger, "verify balance", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *LedgerHandler) verifySequence(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	report, err := h.ledger.VerifySequence(c.Request.Context(), tenant.ID, domain.AccountID(c.Param("accountID")))
	if err != nil {
		writeServiceError(c, logger, "verify sequence", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *LedgerHandler) periodStatement(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp"})
		return
	}

	view, err := h.ledger.Statement(c.Request.Context(), tenant.ID, domain.AccountID(c.Param("accountID")), from, to)
	if err != nil {
		writeServiceError(c, logger, "period statement", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) postCorrection(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		AmountMinor int64  `json:"amount_minor" binding:"required"`
		Currency    string `json:"currency" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
		CreatedBy   string `json:"created_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount := domain.Money{AmountMinor: body.AmountMinor, Currency: domain.CurrencyCode(body.Currency)}
	result, err := h.ledger.PostCorrection(c.Request.Context(), tenant.ID, domain.LedgerEntryID(c.Param("entryID")), amount, body.Reason, body.CreatedBy)
	if err != nil {
		writeServiceError(c, logger, "post correction", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *LedgerHandler) voidEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		Reason    string `json:"reason" binding:"required"`
		CreatedBy string `json:"created_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.ledger.VoidEntry(c.Request.Context(), tenant.ID, domain.LedgerEntryID(c.Param("entryID")), body.Reason, body.CreatedBy)
	if err != nil {
		writeServiceError(c, logger, "void entry", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func registerLedgerRoutes(authenticated *gin.RouterGroup, h *LedgerHandler) {
	accounts := authenticated.Group("/accounts/:accountID")
	{
		accounts.GET("/balance", h.getBalance)
		accounts.GET("/entries", h.listEntries)
		accounts.GET("/verify/balance", h.verifyBalance)
		accounts.GET("/verify/sequence", h.verifySequence)
		accounts.GET("/statement", h.periodStatement)
	}
	entries := authenticated.Group("/ledger-entries/:entryID")
	{
		entries.POST("/correction", h.postCorrection)
		entries.POST("/void", h.voidEntry)
	}
}
