package sessionkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs [Service.CleanupExpiredSessions] on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper using the Service's Cleanup configuration.
// It returns nil when Cleanup.Interval is zero.
func NewSweeper(svc *Service) *Sweeper {
	if svc == nil || svc.config.Cleanup.Interval <= 0 {
		return nil
	}
	return &Sweeper{
		svc:      svc,
		interval: svc.config.Cleanup.Interval,
		timeout:  svc.config.Cleanup.Timeout,
		log:      svc.log.With().Str("component", "sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop once. The first sweep runs after one interval.
// The loop exits when ctx is cancelled or Stop is called.
func (w *Sweeper) Start(ctx context.Context) {
	if w == nil || !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (w *Sweeper) Stop() {
	if w == nil {
		return
	}
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.done
	}
}

// RunOnce performs a single bounded sweep.
func (w *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if w == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	reaped, err := w.svc.CleanupExpiredSessions(ctx)
	if err != nil {
		w.log.Error().Err(err).Int("reaped", reaped).Msg("sweep failed")
		return reaped, err
	}
	w.log.Debug().Int("reaped", reaped).Dur("took", time.Since(start)).Msg("sweep finished")
	return reaped, nil
}

func (w *Sweeper) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}
