// workers/retention_worker.go
package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"prize-redemption-system/metrics"
	"prize-redemption-system/repository"
)

// RetentionWorker runs the periodic housekeeping jobs:
//   - purge redemption records whose data-deletion schedule has passed
//     (delivered + 90 days)
//   - release mint claims left behind by crashed redemption calls
type RetentionWorker struct {
	repos        *repository.Repositories
	claimTimeout time.Duration
	scheduler    gocron.Scheduler
}

func NewRetentionWorker(repos *repository.Repositories, claimTimeout time.Duration) *RetentionWorker {
	return &RetentionWorker{repos: repos, claimTimeout: claimTimeout}
}

// Start schedules the jobs. Call Stop on shutdown.
func (w *RetentionWorker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.scheduler = sched

	// Hourly: data-retention purge
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(w.PurgeExpiredRecords),
	)
	if err != nil {
		return err
	}

	// Every minute: free stuck redemption claims
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(w.ReleaseStaleClaims),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Info("retention worker started")
	return nil
}

func (w *RetentionWorker) Stop() {
	if w.scheduler != nil {
		if err := w.scheduler.Shutdown(); err != nil {
			log.WithError(err).Warn("retention scheduler shutdown failed")
		}
	}
}

func (w *RetentionWorker) PurgeExpiredRecords() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := w.repos.Redemptions.PurgeExpired(ctx, time.Now())
	if err != nil {
		log.WithError(err).Error("retention purge failed")
		return
	}
	if purged > 0 {
		metrics.RecordsPurgedTotal.Add(float64(purged))
		log.WithField("purged", purged).Info("purged redemption records past retention")
	}
}

func (w *RetentionWorker) ReleaseStaleClaims() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	released, err := w.repos.Nfts.ReleaseStaleClaims(ctx, time.Now().Add(-w.claimTimeout))
	if err != nil {
		log.WithError(err).Error("stale claim release failed")
		return
	}
	if released > 0 {
		log.WithField("released", released).Warn("released stale redemption claims")
	}
}
