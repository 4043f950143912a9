package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// Exchange is the topic exchange every envelope is published to. Routing
// key is the envelope's EventType, so a consumer binds the events it cares
// about ("payment.*", "ledger.*", ...) without the processor knowing who's
// listening.
const Exchange = "ledgerd.events"

// Channel is the subset of *amqp.Channel the processor needs, so tests can
// substitute a fake without dialing a broker.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ProcessorConfig tunes polling and lock behavior.
type ProcessorConfig struct {
	Owner       string
	BatchSize   int
	LockTTL     time.Duration
	PollInterval time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Owner == "" {
		c.Owner = "ledgerd-outbox"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	return c
}

// Processor polls the outbox store and publishes due envelopes to RabbitMQ,
// applying the store's own retry/backoff/dead-letter bookkeeping on
// failure.
type Processor struct {
	store   repositories.OutboxStore
	channel Channel
	cfg     ProcessorConfig
	logger  *slog.Logger
}

// NewProcessor constructs a Processor. channel is a live *amqp.Channel with
// Exchange already declared as a durable topic exchange by the composition
// root.
func NewProcessor(store repositories.OutboxStore, channel Channel, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, channel: channel, cfg: cfg.withDefaults(), logger: logger}
}

// Run polls until ctx is cancelled. It is meant to be launched as a single
// long-lived goroutine from cmd/ledgerd.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.Error("outbox: drain failed", slog.String("error", err.Error()))
			}
		}
	}
}

// drainOnce locks one batch and publishes it; exported at package level via
// Run, kept unexported since a partial batch mid-shutdown is not a
// meaningful unit of work on its own.
func (p *Processor) drainOnce(ctx context.Context) error {
	batch, err := p.store.LockBatch(ctx, p.cfg.Owner, p.cfg.BatchSize, p.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}

	for _, envelope := range batch {
		p.publishOne(ctx, envelope)
	}
	return nil
}

func (p *Processor) publishOne(ctx context.Context, envelope domain.OutboxEnvelope) {
	err := p.channel.PublishWithContext(ctx, Exchange, string(envelope.EventType), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.ID,
		Type:         string(envelope.EventType),
		Timestamp:    envelope.CreatedAt,
		Headers: amqp.Table{
			"tenant_id":      string(envelope.TenantID),
			"aggregate_type": envelope.AggregateType,
			"aggregate_id":   envelope.AggregateID,
		},
		Body: envelope.Payload,
	})
	if err != nil {
		p.logger.Warn("outbox: publish failed, will retry",
			slog.String("envelope_id", envelope.ID),
			slog.String("event_type", string(envelope.EventType)),
			slog.String("error", err.Error()))
		if markErr := p.store.MarkFailed(ctx, envelope.ID, err.Error()); markErr != nil {
			p.logger.Error("outbox: mark failed errored", slog.String("error", markErr.Error()))
		}
		return
	}

	if err := p.store.MarkPublished(ctx, envelope.ID); err != nil {
		p.logger.Error("outbox: mark published errored", slog.String("envelope_id", envelope.ID), slog.String("error", err.Error()))
	}
}
