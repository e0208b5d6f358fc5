package jobs

import (
	"context"
	"log/slog"
	"time"
)

// ProcessedPurger deletes deduplication marks older than a cutoff
type ProcessedPurger interface {
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob trims the processed message table once per interval
type RetentionJob struct {
	store     ProcessedPurger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewRetentionJob creates a job that keeps retentionDays of message ids
func NewRetentionJob(store ProcessedPurger, retentionDays int) *RetentionJob {
	return &RetentionJob{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		now:       time.Now,
		logger:    slog.With("component", "retention"),
	}
}

// Run purges immediately and then on every tick until ctx is done
func (j *RetentionJob) Run(ctx context.Context) error {
	j.logger.Info("retention job started", "retention", j.retention, "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.RunOnce(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("retention job stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce deletes every mark older than the retention window
func (j *RetentionJob) RunOnce(ctx context.Context) int64 {
	cutoff := j.now().Add(-j.retention).UTC()
	purged, err := j.store.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge processed messages", "cutoff", cutoff, "error", err)
		return 0
	}
	if purged > 0 {
		j.logger.Info("purged processed messages", "count", purged, "cutoff", cutoff)
	}
	return purged
}
