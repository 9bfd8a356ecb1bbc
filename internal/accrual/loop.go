// internal/accrual/loop.go
package accrual

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
)

// Loop calls tick once per interval while running. Each tick runs on its own
// goroutine so a slow tick never delays the next one. Stop clears the ticker
// before returning; ticks already executing are allowed to finish, and Wait
// blocks until they have.
type Loop struct {
	name     string
	clock    clockwork.Clock
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	gen    uint64
	ticker clockwork.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewLoop(name string, clock clockwork.Clock, interval time.Duration, tick func(ctx context.Context)) *Loop {
	return &Loop{name: name, clock: clock, interval: interval, tick: tick}
}

// Start arms the ticker. It reports false when the loop was already running.
func (l *Loop) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ticker != nil {
		return false
	}
	l.gen++
	l.ticker = l.clock.NewTicker(l.interval)
	l.stop = make(chan struct{})

	go l.run(ctx, l.gen, l.ticker, l.stop)
	logging.Debug("Loop started", zap.String("loop", l.name), zap.Duration("interval", l.interval))
	return true
}

func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ticker == nil {
		return
	}
	l.ticker.Stop()
	close(l.stop)
	l.ticker = nil
	l.stop = nil
	l.gen++
	logging.Debug("Loop stopped", zap.String("loop", l.name))
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticker != nil
}

// Wait blocks until every dispatched tick has returned.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// dispatch starts one tick unless the loop was stopped or restarted since
// gen. The WaitGroup is incremented under mu so Stop followed by Wait never
// misses a tick.
func (l *Loop) dispatch(ctx context.Context, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.tick(ctx)
	}()
	return true
}

func (l *Loop) run(ctx context.Context, gen uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// select picks randomly when stop and a buffered tick are both ready.
			if !l.dispatch(ctx, gen) {
				return
			}
		}
	}
}
