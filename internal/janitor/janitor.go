// Package janitor physically removes presence records that have long
// since expired.
package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/repository"
	pkglog "github.com/weiawesome/wes-io-rooms/pkg/log"
)

// Config controls the sweep schedule.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// Janitor periodically deletes presence records older than the retention.
type Janitor struct {
	presence repository.PresenceRepository
	cfg      Config
	now      func() time.Time
	quit     chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Janitor.
func New(presence repository.PresenceRepository, cfg Config, now func() time.Time) *Janitor {
	if now == nil {
		now = time.Now
	}
	return &Janitor{
		presence: presence,
		cfg:      cfg,
		now:      now,
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the janitor in a background goroutine.
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop signals the janitor to stop and returns immediately.
// Call Done() to wait for it to exit.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.quit) })
}

// Done returns a channel that is closed when the janitor has fully stopped.
func (j *Janitor) Done() <-chan struct{} {
	return j.doneCh
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	interval := j.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep deletes expired records once and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	l := pkglog.Component("janitor")

	retention := j.cfg.Retention
	if retention <= 0 {
		retention = time.Hour
	}

	deleted, err := j.presence.DeleteExpired(ctx, j.now().Add(-retention))
	if err != nil {
		l.Error().Err(err).Msg("janitor: failed to delete expired presence")
		return 0
	}
	if deleted > 0 {
		l.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("janitor: expired presence removed")
	}
	return deleted
}
