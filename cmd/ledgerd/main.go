package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/handlers"
	"github.com/proptech-ledger/ledgerd/internal/middleware"
	"github.com/proptech-ledger/ledgerd/internal/outbox"
	"github.com/proptech-ledger/ledgerd/internal/platform/config"
	"github.com/proptech-ledger/ledgerd/internal/platform/database"
	"github.com/proptech-ledger/ledgerd/internal/providers/cardprovider"
	"github.com/proptech-ledger/ledgerd/internal/providers/mobilemoney"
	"github.com/proptech-ledger/ledgerd/internal/providers/registry"
	"github.com/proptech-ledger/ledgerd/internal/repositories/database/pgsql"
	"github.com/proptech-ledger/ledgerd/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runDatabaseMigrations(logger, cfg)

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("database connection pool established")

	amqpConn, amqpChannel := setupRabbitMQ(logger, cfg)
	if amqpConn != nil {
		defer amqpConn.Close()
	}
	if amqpChannel != nil {
		defer amqpChannel.Close()
	}

	logger.Info("initializing repositories and services...")

	accountRepo := pgsql.NewAccountRepository(dbPool)
	ledgerRepo := pgsql.NewLedgerRepository(dbPool)
	paymentRepo := pgsql.NewPaymentIntentRepository(dbPool)
	disbursementRepo := pgsql.NewDisbursementRepository(dbPool)
	statementRepo := pgsql.NewStatementRepository(dbPool)
	outboxRepo := pgsql.NewOutboxRepository(dbPool)

	eventPublisher := outbox.NewPublisher(outboxRepo)

	providerRegistry := setupProviders(cfg)

	ledgerEngine := services.NewLedgerEngine(accountRepo, ledgerRepo, eventPublisher)
	orchestrator := services.NewPaymentOrchestrator(paymentRepo, providerRegistry, eventPublisher)
	reconciliationEngine := services.NewReconciliationEngine(ledgerEngine, paymentRepo, providerRegistry, eventPublisher, cfg.MatchingThresholds)
	disbursementService := services.NewDisbursementService(accountRepo, disbursementRepo, ledgerEngine, providerRegistry, eventPublisher)
	statementBuilder := services.NewStatementBuilder(statementRepo, ledgerEngine, eventPublisher)

	// RefundSubscriber posts the compensating journal for PaymentRefunded
	// events. Driving it from the outbox consumer requires a chart-of-accounts
	// lookup (the subscriber takes the target accounts as arguments, §9) that
	// has no port yet; wiring the AMQP consumer loop is left for that port's
	// introduction rather than hard-coding per-tenant accounts here.
	_ = services.NewRefundSubscriber(ledgerEngine, paymentRepo)

	logger.Info("dependencies initialized")

	if len(cfg.SchedulerTenantIDs) > 0 {
		disbursementScheduler := scheduler.New(disbursementService, resolveDisbursementDestination(providerRegistry), cfg.DisbursementSchedule, cfg.SchedulerTenantIDs, logger)
		if err := disbursementScheduler.Start(); err != nil {
			logger.Error("failed to start disbursement scheduler", slog.String("error", err.Error()))
		} else {
			defer disbursementScheduler.Stop()
		}
	} else {
		logger.Warn("no scheduler tenant ids configured, disbursement batch scheduler not started")
	}

	if amqpChannel != nil {
		processor := outbox.NewProcessor(outboxRepo, amqpChannel, outbox.ProcessorConfig{
			Owner:        cfg.OutboxOwner,
			BatchSize:    cfg.OutboxBatchSize,
			LockTTL:      cfg.OutboxLockTTL,
			PollInterval: cfg.OutboxPollInterval,
		}, logger)
		go processor.Run(context.Background())
		logger.Info("outbox processor started")
	} else {
		logger.Warn("rabbitmq unavailable, outbox processor not started")
	}

	r := setupGinEngine(logger, cfg)
	handlers.RegisterRoutes(r, cfg, handlers.Services{
		Ledger:         ledgerEngine,
		Orchestrator:   orchestrator,
		Reconciliation: reconciliationEngine,
		Disbursements:  disbursementService,
		Statements:     statementBuilder,
		Providers:      providerRegistry,
	})

	logger.Info("server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupProviders wires the card and mobile-money provider adapters behind a
// single registry, keyed by currency with the card provider as the default.
func setupProviders(cfg *config.Config) ports.ProviderRegistry {
	cardAdapter := cardprovider.NewStripeAdapter(cfg.StripeAPIKey, cfg.StripeWebhookSecret, []domain.CurrencyCode{domain.USD, domain.EUR, domain.GBP})

	mobileMoneyAdapter := mobilemoney.NewAdapter(mobilemoney.Config{
		BaseURL:        cfg.MobileMoneyBaseURL,
		TokenURL:       cfg.MobileMoneyTokenURL,
		ConsumerKey:    cfg.MobileMoneyConsumerKey,
		ConsumerSecret: cfg.MobileMoneyConsumerSecret,
		ShortCode:      cfg.MobileMoneyShortCode,
		Passkey:        cfg.MobileMoneyPasskey,
		CallbackURL:    cfg.MobileMoneyCallbackURL,
		Currencies:     []domain.CurrencyCode{domain.KES, domain.TZS, domain.UGX},
	})

	return registry.New([]ports.ProviderAdapter{cardAdapter, mobileMoneyAdapter}, cardAdapter)
}

// resolveDisbursementDestination resolves a batch-eligible owner's payout
// rail by creating (or reusing, provider-side) a connected account with
// whichever provider handles the owner's currency. The card provider settles
// to a bank account; mobile money settles to a mobile money wallet.
func resolveDisbursementDestination(providers ports.ProviderRegistry) scheduler.DestinationResolver {
	return func(ctx context.Context, tenant domain.TenantID, owner domain.OwnerBalance) (string, domain.DestinationType, error) {
		provider, err := providers.Resolve(owner.Currency)
		if err != nil {
			return "", "", err
		}

		externalID, err := provider.CreateConnectedAccount(ctx, tenant, owner.OwnerID)
		if err != nil {
			return "", "", err
		}

		destinationType := domain.DestinationBankAccount
		if provider.Name() == "mobilemoney" {
			destinationType = domain.DestinationMobileMoney
		}
		return externalID, destinationType, nil
	}
}

// setupRabbitMQ dials the broker and declares the topic exchange the outbox
// processor publishes to. A connection failure is logged but non-fatal: the
// outbox keeps durably recording events even if publishing is paused.
func setupRabbitMQ(logger *slog.Logger, cfg *config.Config) (*amqp.Connection, *amqp.Channel) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		return nil, nil
	}

	channel, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open rabbitmq channel", slog.String("error", err.Error()))
		conn.Close()
		return nil, nil
	}

	if err := channel.ExchangeDeclare(outbox.Exchange, "topic", true, false, false, false, nil); err != nil {
		logger.Error("failed to declare outbox exchange", slog.String("error", err.Error()))
		channel.Close()
		conn.Close()
		return nil, nil
	}

	return conn, channel
}

// setupGinEngine initializes and configures the Gin engine.
func setupGinEngine(logger *slog.Logger, cfg *config.Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	return r
}

// runDatabaseMigrations applies all pending "up" migrations before the
// application pool is opened.
func runDatabaseMigrations(logger *slog.Logger, cfg *config.Config) {
	logger.Info("running database migrations...")

	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database connection for migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := migrationDB.Ping(); err != nil {
		logger.Error("failed to ping database for migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		logger.Error("could not create postgres driver instance for migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		logger.Error("could not create migrate instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Error("migration source error on close", slog.String("error", sourceErr.Error()))
		os.Exit(1)
	}
	if dbErr != nil {
		logger.Error("migration database error on close", slog.String("error", dbErr.Error()))
		os.Exit(1)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no new migrations to apply")
	} else {
		logger.Info("database migrations applied successfully")
	}
}
