package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
)

// DisbursementHandler exposes the Disbursement Engine over HTTP.
type DisbursementHandler struct {
	disbursements *services.DisbursementService
}

// NewDisbursementHandler wires a disbursement handler to the disbursement service.
func NewDisbursementHandler(disbursements *services.DisbursementService) *DisbursementHandler {
	return &DisbursementHandler{disbursements: disbursements}
}

func (h *DisbursementHandler) preview(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var amountMinor *int64
	if raw := c.Query("amount_minor"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount_minor"})
			return
		}
		amountMinor = &v
	}

	preview, err := h.disbursements.Preview(c.Request.Context(), tenant.ID, domain.OwnerID(c.Param("ownerID")), amountMinor)
	if err != nil {
		writeServiceError(c, logger, "preview disbursement", err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *DisbursementHandler) eligibleOwners(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	minBalance, _ := strconv.ParseInt(c.Query("min_balance_minor"), 10, 64)

	owners, err := h.disbursements.EligibleOwners(c.Request.Context(), tenant.ID, minBalance)
	if err != nil {
		writeServiceError(c, logger, "list eligible owners", err)
		return
	}
	c.JSON(http.StatusOK, owners)
}

func (h *DisbursementHandler) breakdown(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("period_start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_start"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("period_end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_end"})
		return
	}
	holdback, _ := strconv.ParseInt(c.Query("holdback_percent"), 10, 64)

	result, err := h.disbursements.Breakdown(c.Request.Context(), tenant.ID, domain.OwnerID(c.Param("ownerID")), from, to, holdback)
	if err != nil {
		writeServiceError(c, logger, "disbursement breakdown", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DisbursementHandler) process(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		OwnerID         string `json:"owner_id" binding:"required"`
		AmountMinor     *int64 `json:"amount_minor"`
		Currency        string `json:"currency" binding:"required"`
		Destination     string `json:"destination" binding:"required"`
		DestinationType string `json:"destination_type" binding:"required"`
		IdempotencyKey  string `json:"idempotency_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req := domain.DisbursementRequest{
		TenantID:        tenant.ID,
		OwnerID:         domain.OwnerID(body.OwnerID),
		AmountMinor:     body.AmountMinor,
		Currency:        domain.CurrencyCode(body.Currency),
		Destination:     body.Destination,
		DestinationType: domain.DestinationType(body.DestinationType),
		IdempotencyKey:  body.IdempotencyKey,
	}

	result, err := h.disbursements.Process(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, "process disbursement", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	c.JSON(status, result.Disbursement)
}

func registerDisbursementRoutes(authenticated *gin.RouterGroup, h *DisbursementHandler) {
	disbursements := authenticated.Group("/disbursements")
	{
		disbursements.POST("", h.process)
		disbursements.GET("/eligible-owners", h.eligibleOwners)
	}
	owners := authenticated.Group("/owners/:ownerID")
	{
		owners.GET("/disbursement-preview", h.preview)
		owners.GET("/disbursement-breakdown", h.breakdown)
	}
}
