package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
)

// StatementHandler exposes the Statement Engine over HTTP.
type StatementHandler struct {
	statements *services.StatementBuilder
}

// NewStatementHandler wires a statement handler to the statement builder.
func NewStatementHandler(statements *services.StatementBuilder) *StatementHandler {
	return &StatementHandler{statements: statements}
}

func (h *StatementHandler) generate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		Type        string `json:"type" binding:"required"`
		AccountID   string `json:"account_id" binding:"required"`
		OwnerID     string `json:"owner_id"`
		CustomerID  string `json:"customer_id"`
		PropertyID  string `json:"property_id"`
		PeriodType  string `json:"period_type" binding:"required"`
		PeriodStart string `json:"period_start" binding:"required"`
		PeriodEnd   string `json:"period_end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	periodStart, err := time.Parse(time.RFC3339, body.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_start"})
		return
	}
	periodEnd, err := time.Parse(time.RFC3339, body.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_end"})
		return
	}

	req := domain.GenerateStatementRequest{
		TenantID:    tenant.ID,
		Type:        domain.StatementType(body.Type),
		AccountID:   domain.AccountID(body.AccountID),
		OwnerID:     domain.OwnerID(body.OwnerID),
		CustomerID:  domain.CustomerID(body.CustomerID),
		PropertyID:  domain.PropertyID(body.PropertyID),
		PeriodType:  domain.PeriodType(body.PeriodType),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	statement, err := h.statements.Generate(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, "generate statement", err)
		return
	}
	c.JSON(http.StatusCreated, statement)
}

func (h *StatementHandler) deliver(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	var body struct {
		Destination string `json:"destination" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	statement, err := h.statements.Deliver(c.Request.Context(), tenant.ID, domain.StatementID(c.Param("statementID")), body.Destination)
	if err != nil {
		writeServiceError(c, logger, "deliver statement", err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func (h *StatementHandler) markViewed(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	statement, err := h.statements.MarkViewed(c.Request.Context(), tenant.ID, domain.StatementID(c.Param("statementID")))
	if err != nil {
		writeServiceError(c, logger, "mark statement viewed", err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func (h *StatementHandler) export(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	tenant, ok := middleware.GetTenantFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	format := domain.ExportFormat(c.DefaultQuery("format", string(domain.ExportPDFHTML)))

	statement, err := h.statements.Get(c.Request.Context(), tenant.ID, domain.StatementID(c.Param("statementID")))
	if err != nil {
		writeServiceError(c, logger, "export statement", err)
		return
	}

	exported, err := h.statements.Export(statement, format)
	if err != nil {
		writeServiceError(c, logger, "export statement", err)
		return
	}
	c.Data(http.StatusOK, exported.ContentType, exported.Content)
}

func registerStatementRoutes(authenticated *gin.RouterGroup, h *StatementHandler) {
	statements := authenticated.Group("/statements")
	{
		statements.POST("", h.generate)
		statements.POST("/:statementID/deliver", h.deliver)
		statements.POST("/:statementID/viewed", h.markViewed)
		statements.GET("/:statementID/export", h.export)
	}
}
