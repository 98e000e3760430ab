package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StaleSessionStore removes persisted sessions that were neither saved nor
// touched since a point in time.
type StaleSessionStore interface {
	DeleteSessionsBefore(ctx context.Context, t time.Time) (int64, error)
}

// SessionJanitor periodically purges persisted sessions nobody has used for
// longer than the TTL. Such sessions hold refresh tokens the server has
// already retired.
type SessionJanitor struct {
	store    StaleSessionStore
	schedule string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionJanitor creates a janitor running on a standard cron schedule
// ("@hourly", "0 3 * * *", ...).
func NewSessionJanitor(store StaleSessionStore, schedule string, ttl time.Duration, logger *zap.Logger) *SessionJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionJanitor{
		store:    store,
		schedule: schedule,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the schedule until ctx is done.
func (j *SessionJanitor) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(j.schedule, func() {
		j.logger.Debug("cron triggered: sweeping stale sessions")
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("failed to sweep stale sessions", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", j.schedule, err)
	}

	c.Start()
	j.logger.Info("session janitor started", zap.String("schedule", j.schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	j.logger.Info("session janitor stopped")
	return nil
}

// Sweep removes sessions older than the TTL once.
func (j *SessionJanitor) Sweep(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.ttl)

	n, err := j.store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("stale sessions removed",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
