package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
	"github.com/proptech-ledger/ledgerd/internal/platform/config"
)

// Services bundles the constructed core services a composition root hands
// to RegisterRoutes, mirroring the teacher's pattern of passing fully-wired
// service instances into route registration rather than re-resolving
// dependencies per handler.
type Services struct {
	Ledger         *services.LedgerEngine
	Orchestrator   *services.PaymentOrchestrator
	Reconciliation *services.ReconciliationEngine
	Disbursements  *services.DisbursementService
	Statements     *services.StatementBuilder
	Providers      ports.ProviderRegistry
}

// RegisterRoutes sets up all application routes, injecting already-wired services.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svc Services) {
	public := r.Group("/")

	v1 := r.Group("/api/v1", middleware.TenantAuthMiddleware(cfg.JWTSecret))

	paymentHandler := NewPaymentHandler(svc.Orchestrator, svc.Providers)
	ledgerHandler := NewLedgerHandler(svc.Ledger)
	disbursementHandler := NewDisbursementHandler(svc.Disbursements)
	statementHandler := NewStatementHandler(svc.Statements)
	reconciliationHandler := NewReconciliationHandler(svc.Reconciliation, svc.Orchestrator)

	registerPaymentRoutes(v1, public, paymentHandler)
	registerLedgerRoutes(v1, ledgerHandler)
	registerDisbursementRoutes(v1, disbursementHandler)
	registerStatementRoutes(v1, statementHandler)
	registerReconciliationRoutes(v1, reconciliationHandler)
}
