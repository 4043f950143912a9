// Package scheduler drives recurring batch jobs off a cron spec. Today that
// is the disbursement payout batch (spec §4.4); the cron runner itself is
// generic enough to host future batch jobs without change.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
)

// DestinationResolver produces the payout rail for an eligible owner. It
// exists so the scheduler never has to know how a destination is obtained -
// today that's a provider connected-account id, looked up per tenant and
// currency.
type DestinationResolver func(ctx context.Context, tenant domain.TenantID, owner domain.OwnerBalance) (destination string, destinationType domain.DestinationType, err error)

// DisbursementScheduler runs DisbursementService.Process in batches on a
// cron schedule derived from a domain.DisbursementSchedule, across a fixed
// set of tenants. The ledger service owns no tenant table (tenant identity
// is supplied by the platform at the HTTP boundary), so the tenant set a
// batch run covers must be supplied up front rather than discovered.
type DisbursementScheduler struct {
	disbursements *services.DisbursementService
	resolve       DestinationResolver
	schedule      domain.DisbursementSchedule
	tenants       []domain.TenantID
	logger        *slog.Logger

	cron *cron.Cron
}

// New builds a scheduler. logger defaults to slog.Default() if nil.
func New(disbursements *services.DisbursementService, resolve DestinationResolver, schedule domain.DisbursementSchedule, tenants []domain.TenantID, logger *slog.Logger) *DisbursementScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisbursementScheduler{
		disbursements: disbursements,
		resolve:       resolve,
		schedule:      schedule,
		tenants:       tenants,
		logger:        logger,
	}
}

// Start registers the batch job on a cron spec built from the schedule kind
// and begins running it in the background. Call Stop to drain in-flight runs
// before shutdown.
func (s *DisbursementScheduler) Start() error {
	spec, err := cronSpec(s.schedule)
	if err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		s.RunBatch(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduler: register disbursement batch job: %w", err)
	}

	s.cron = c
	s.cron.Start()
	s.logger.Info("disbursement scheduler started", slog.String("cron_spec", spec), slog.String("kind", string(s.schedule.Kind)), slog.Int("tenants", len(s.tenants)))
	return nil
}

// Stop halts the cron and waits for any running job to finish.
func (s *DisbursementScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunBatch executes one batch pass across every configured tenant: pull
// eligible owners, cap at BatchSize, and process each with DelayBetween
// pacing between provider calls. A single owner's failure is logged and
// skipped, never aborting the rest of the batch.
func (s *DisbursementScheduler) RunBatch(ctx context.Context) {
	for _, tenant := range s.tenants {
		s.runTenantBatch(ctx, tenant)
	}
}

func (s *DisbursementScheduler) runTenantBatch(ctx context.Context, tenant domain.TenantID) {
	owners, err := s.disbursements.EligibleOwners(ctx, tenant, s.schedule.MinBalance)
	if err != nil {
		s.logger.Error("disbursement batch: failed listing eligible owners", slog.String("tenant_id", string(tenant)), slog.String("error", err.Error()))
		return
	}

	if len(owners) > s.schedule.BatchSize {
		s.logger.Info("disbursement batch: capping batch", slog.String("tenant_id", string(tenant)), slog.Int("eligible", len(owners)), slog.Int("batch_size", s.schedule.BatchSize))
		owners = owners[:s.schedule.BatchSize]
	}

	for i, owner := range owners {
		if i > 0 && s.schedule.DelayBetween > 0 {
			time.Sleep(s.schedule.DelayBetween)
		}
		s.processOwner(ctx, tenant, owner)
	}
}

func (s *DisbursementScheduler) processOwner(ctx context.Context, tenant domain.TenantID, owner domain.OwnerBalance) {
	destination, destinationType, err := s.resolve(ctx, tenant, owner)
	if err != nil {
		s.logger.Error("disbursement batch: failed resolving destination, skipping owner", slog.String("tenant_id", string(tenant)), slog.String("owner_id", string(owner.OwnerID)), slog.String("error", err.Error()))
		return
	}

	req := domain.DisbursementRequest{
		TenantID:        tenant,
		OwnerID:         owner.OwnerID,
		Currency:        owner.Currency,
		Destination:     destination,
		DestinationType: destinationType,
		IdempotencyKey:  fmt.Sprintf("sched-%s-%s-%s", tenant, owner.OwnerID, batchWindow(time.Now().UTC(), s.schedule.Kind)),
	}

	result, err := s.disbursements.Process(ctx, req)
	if err != nil {
		s.logger.Error("disbursement batch: owner payout failed, continuing batch", slog.String("tenant_id", string(tenant)), slog.String("owner_id", string(owner.OwnerID)), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("disbursement batch: owner payout processed", slog.String("tenant_id", string(tenant)), slog.String("owner_id", string(owner.OwnerID)), slog.String("disbursement_id", string(result.Disbursement.ID)), slog.Bool("already_existed", result.AlreadyExisted))
}

// batchWindow buckets "now" to the schedule's recurrence granularity so a
// retried or overlapping run for the same owner within the same window
// collides on IdempotencyKey instead of double-paying.
func batchWindow(now time.Time, kind domain.DisbursementScheduleKind) string {
	switch kind {
	case domain.ScheduleWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("w%d-%02d", year, week)
	case domain.ScheduleMonthly:
		return now.Format("2006-01")
	default:
		return now.Format("2006-01-02")
	}
}

// cronSpec renders a domain.DisbursementSchedule into a 5-field cron
// expression. Runs fire at 02:00 UTC, an off-peak hour chosen so a batch
// never overlaps typical daytime provider rate limits.
func cronSpec(schedule domain.DisbursementSchedule) (string, error) {
	switch schedule.Kind {
	case domain.ScheduleDaily:
		return "0 2 * * *", nil
	case domain.ScheduleWeekly:
		return fmt.Sprintf("0 2 * * %d", int(schedule.DayOfWeek)), nil
	case domain.ScheduleMonthly:
		dom := schedule.DayOfMonth
		if dom < 1 || dom > 28 {
			dom = 1
		}
		return fmt.Sprintf("0 2 %d * *", dom), nil
	default:
		return "", fmt.Errorf("scheduler: unknown disbursement schedule kind %q", schedule.Kind)
	}
}
