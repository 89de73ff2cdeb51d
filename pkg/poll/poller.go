// Package poll runs a fixed-interval fetch loop bound to a context. Views use
// it to refresh long-running server operations and must call Stop on
// teardown.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/value"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 5 * time.Second

// ErrRunning is returned by Start when the poller is already running.
var ErrRunning = errors.New("poll: poller already running")

// FetchFunc loads the current state of the polled resource.
type FetchFunc func(ctx context.Context) (*value.Value, error)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between fetches.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithBus publishes a ServerError on the bus for every failed fetch.
func WithBus(bus *events.Bus) Option {
	return func(p *Poller) {
		p.bus = bus
	}
}

// WithSource names the polled resource in errors and logs.
func WithSource(name string) Option {
	return func(p *Poller) {
		p.source = name
	}
}

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// OnResult registers the handler receiving every successful fetch.
func OnResult(fn func(*value.Value)) Option {
	return func(p *Poller) {
		p.onResult = fn
	}
}

// Until stops polling after the first result for which done returns true.
func Until(done func(*value.Value) bool) Option {
	return func(p *Poller) {
		p.until = done
	}
}

// Poller fetches on a fixed interval until stopped.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	bus      *events.Bus
	source   string
	logger   *zap.Logger
	onResult func(*value.Value)
	until    func(*value.Value) bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a stopped Poller.
func New(fetch FetchFunc, options ...Option) *Poller {
	p := &Poller{
		fetch:    fetch,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start fetches immediately and then once per interval until ctx is done,
// Stop is called, or the Until condition holds.
func (p *Poller) Start(ctx context.Context) error {
	if p.fetch == nil {
		return errors.New("poll: fetch func is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		select {
		case <-p.done:
		default:
			return ErrRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. It is safe to call on a
// stopped poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current loop exits. It is nil before Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.tick(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one fetch and reports whether polling should stop.
func (p *Poller) tick(ctx context.Context) bool {
	result, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		p.logger.Warn("poll fetch failed", zap.String("source", p.source), zap.Error(err))
		p.bus.PublishServerError(events.ServerError{
			Source:  p.source,
			Status:  statusOf(err),
			Message: err.Error(),
			Err:     err,
		})
		return false
	}
	if p.onResult != nil {
		p.onResult(result)
	}
	if p.until != nil && p.until(result) {
		p.logger.Debug("poll finished", zap.String("source", p.source))
		return true
	}
	return false
}

func statusOf(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return 0
}
