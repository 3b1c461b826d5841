package hold

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/logger"
)

// Sweeper runs a sweep function on a fixed interval until stopped.  It is
// the primary expiry mechanism: buyers who abandon checkout never touch
// their hold again.
type Sweeper struct {
	interval time.Duration
	sweep    func(ctx context.Context) int
	log      *logger.Logger

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
	started  atomic.Bool
}

// DefaultSweepInterval is used when a sweeper is given a non-positive
// interval.
const DefaultSweepInterval = 5 * time.Second

// NewSweeper creates a sweeper.  sweep returns the number of holds it
// finalized, which is logged at debug level.
func NewSweeper(interval time.Duration, sweep func(ctx context.Context) int, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		interval: interval,
		sweep:    sweep,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval in a
// background goroutine.
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.log.Info("hold sweeper started", "interval", s.interval.String())
	s.run()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.run()
			case <-s.stopChan:
				ticker.Stop()
				s.log.Info("hold sweeper stopped")
				return
			}
		}
	}()
}

// Stop stops the sweeper and waits for an in-progress sweep to finish.
// It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		if s.started.Load() {
			<-s.done
		}
	})
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if n := s.sweep(ctx); n > 0 {
		s.log.Debug("hold sweep finished", "expired", n)
	}
}
