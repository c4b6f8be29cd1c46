// Package stream pushes live viewer counts to connected clients.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// Event names written to the transport.
const (
	EventReady = "ready"
	EventCount = "count"
)

// Counter is the viewer count source.
type Counter interface {
	CountViewers(ctx context.Context, room string, window time.Duration) (int, error)
}

// Emit writes one event to the client. A returned error ends the stream.
type Emit func(event string, data interface{}) error

// IntervalPolicy bounds the push interval regardless of what clients ask for.
type IntervalPolicy struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Clamp converts a requested interval in milliseconds to the enforced one.
func (p IntervalPolicy) Clamp(intervalMs int) time.Duration {
	d := p.Default
	if intervalMs > 0 {
		d = time.Duration(intervalMs) * time.Millisecond
	}
	if d < p.Min {
		d = p.Min
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Streamer runs one polling loop per open stream.
type Streamer struct {
	counter Counter
	policy  IntervalPolicy
	active  atomic.Int64
}

// NewStreamer creates a streamer.
func NewStreamer(counter Counter, policy IntervalPolicy) *Streamer {
	return &Streamer{counter: counter, policy: policy}
}

// Interval applies the interval policy.
func (s *Streamer) Interval(intervalMs int) time.Duration {
	return s.policy.Clamp(intervalMs)
}

// Active returns the number of streams currently running.
func (s *Streamer) Active() int64 {
	return s.active.Load()
}

// Run sends a ready event, then the current count immediately and on every
// tick until ctx is cancelled. Cancellation is the normal way a stream ends
// and returns nil; the ticker is released before Run returns.
func (s *Streamer) Run(ctx context.Context, room string, window, interval time.Duration, emit Emit) error {
	s.active.Add(1)
	defer s.active.Add(-1)

	if err := emit(EventReady, domain.ReadyEvent{Ready: true}); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.push(ctx, room, window, emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Streamer) push(ctx context.Context, room string, window time.Duration, emit Emit) error {
	n, err := s.counter.CountViewers(ctx, room, window)
	if err != nil {
		if ctx.Err() == nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoom, room).Msg("viewer count failed, skipping tick")
		}
		return nil
	}
	return emit(EventCount, domain.CountEvent{Viewers: n})
}
