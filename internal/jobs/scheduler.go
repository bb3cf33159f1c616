// Package jobs runs background jobs on a cron schedule.
// scheduler.go registers the daily expiration sweep.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/expiration"
)

// Sweeper runs one expiration sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (expiration.Result, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	loc      *time.Location
}

// NewScheduler creates a scheduler in loc. Each sweep gets at most timeout.
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration, loc *time.Location) *Scheduler {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.StandardLogger())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger())),
		),
	)
	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		loc:      loc,
	}
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() { s.RunSweep(ctx) })
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"schedule": s.schedule,
		"timezone": s.loc.String(),
	}).Info("scheduler started")
	return nil
}

// RunSweep runs one sweep and logs the outcome.
func (s *Scheduler) RunSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info("[CRON] expiration sweep")
	res, err := s.sweeper.Sweep(ctx)
	switch {
	case errors.Is(err, common.ErrSweepInProgress):
		log.Warn("[CRON] sweep already running elsewhere, skipping")
	case err != nil:
		log.WithError(err).Error("[CRON] sweep failed")
	default:
		log.WithFields(log.Fields{
			"expired":      res.Expired,
			"auto_renewed": res.AutoRenewed,
			"failed":       res.Failed,
		}).Info("[CRON] sweep done")
	}
}

// Next returns when the sweep runs next, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop waits for running jobs and stops the runner.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}
