package scheduler

import (
	"context"
	"log"
	"time"

	"diamonds/internal/services"
)

type GrantSweeper interface {
	SweepCooling(ctx context.Context) (executed, failed int)
}

type TransferExpirer interface {
	ExpireStale(ctx context.Context) (expired, failed int)
}

type Reconciler interface {
	ResetDailyCounters(ctx context.Context) (int64, error)
	AutoUpgradeTiers(ctx context.Context) (upgraded, failed int)
}

type SupplyAuditor interface {
	SupplyAudit(ctx context.Context) (services.SupplyAuditReport, error)
}

// Scheduler drives the recurring sweeps: hourly grant execution and transfer
// expiry, daily counter reset, tier upgrades and supply audit at midnight
// UTC.
type Scheduler struct {
	grants    GrantSweeper
	transfers TransferExpirer
	reconcile Reconciler
	audit     SupplyAuditor
}

func New(grants GrantSweeper, transfers TransferExpirer, reconcile Reconciler, audit SupplyAuditor) *Scheduler {
	return &Scheduler{
		grants:    grants,
		transfers: transfers,
		reconcile: reconcile,
		audit:     audit,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	hourly := time.NewTicker(time.Hour)
	defer hourly.Stop()
	daily := time.NewTimer(untilNextMidnightUTC())
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hourly.C:
			s.grants.SweepCooling(ctx)
			s.transfers.ExpireStale(ctx)
		case <-daily.C:
			s.runDaily(ctx)
			daily.Reset(untilNextMidnightUTC())
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	if _, err := s.reconcile.ResetDailyCounters(ctx); err != nil {
		log.Printf("scheduler: daily reset failed: %v", err)
	}
	s.reconcile.AutoUpgradeTiers(ctx)
	if _, err := s.audit.SupplyAudit(ctx); err != nil {
		log.Printf("scheduler: supply audit failed: %v", err)
	}
}

func untilNextMidnightUTC() time.Duration {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
