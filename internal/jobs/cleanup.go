// Package jobs runs the periodic maintenance tasks of the API process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/learning-api/internal/metrics"
)

// ExpiredTokenPurger deletes rows whose expiry is at or before now.
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanup purges expired refresh and reset tokens on a cron schedule.
// Expired tokens are already rejected on use; this only reclaims rows.
type TokenCleanup struct {
	Refresh ExpiredTokenPurger
	Reset   ExpiredTokenPurger
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Timeout time.Duration
	Now     func() time.Time
}

// RunOnce purges both tables and returns the first error encountered.
// A failure on one table does not skip the other.
func (j *TokenCleanup) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var firstErr error
	for _, t := range []struct {
		kind   string
		purger ExpiredTokenPurger
	}{{"refresh", j.Refresh}, {"reset", j.Reset}} {
		if t.purger == nil {
			continue
		}
		n, err := t.purger.DeleteExpired(ctx, now)
		if err != nil {
			j.Log.WithError(err).WithField("kind", t.kind).Error("token cleanup failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("purge %s tokens: %w", t.kind, err)
			}
			continue
		}
		j.Metrics.TokensPurged(t.kind, n)
		if n > 0 {
			j.Log.WithFields(logrus.Fields{"kind": t.kind, "deleted": n}).Info("expired tokens purged")
		}
	}
	return firstErr
}

// Run schedules RunOnce and blocks until ctx is cancelled, then waits for a
// running purge to finish.
func (j *TokenCleanup) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { _ = j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule token cleanup %q: %w", schedule, err)
	}
	c.Start()
	j.Log.WithField("schedule", schedule).Info("token cleanup scheduled")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
