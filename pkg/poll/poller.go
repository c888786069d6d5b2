// Package poll provides a generic interval poller with a bounded error
// budget. It is not domain-specific: callers supply a callback that reports
// whether polling should stop.
package poll

import (
	"context"
	"sync"
	"time"
)

// Func is one poll tick. Returning done=true stops the poller and fires
// OnComplete. A returned error counts against the error budget.
type Func func(ctx context.Context) (done bool, err error)

// Config controls one polling session.
type Config struct {
	// Interval between ticks. The first tick fires immediately on Start.
	Interval time.Duration
	// MaxErrors stops the session after this many accumulated callback
	// errors, without calling OnComplete. Zero means stop on first error.
	MaxErrors int
	// OnComplete fires once when the callback reports done.
	OnComplete func()
	// OnError fires for every callback error.
	OnError func(err error)
}

// Poller runs a callback at a fixed interval until it reports done, the
// error budget is exhausted, or the session is stopped. Errors accumulate
// for the lifetime of the session; an intervening success does not reset the
// counter.
type Poller struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a Poller with the given configuration.
func New(cfg Config) *Poller {
	return &Poller{cfg: cfg}
}

// Start begins a polling session. The callback is invoked once immediately,
// then every Interval. Starting an already-running poller is a no-op.
func (p *Poller) Start(ctx context.Context, fn Func) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(runCtx, fn, p.done)
}

// Stop cancels the session and waits for the loop to exit. No callback
// fires after Stop returns. Safe to call multiple times.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, fn Func, done chan struct{}) {
	defer close(done)

	errCount := 0
	tick := func() (stop bool) {
		if ctx.Err() != nil {
			return true
		}
		finished, err := fn(ctx)
		if err != nil {
			errCount++
			if p.cfg.OnError != nil {
				p.cfg.OnError(err)
			}
			// Budget exhausted: stop silently, completion never happened.
			return errCount >= p.cfg.MaxErrors
		}
		if finished {
			if p.cfg.OnComplete != nil {
				p.cfg.OnComplete()
			}
			return true
		}
		return false
	}

	if tick() {
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if tick() {
				return
			}
		}
	}
}
