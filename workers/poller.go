// Package workers runs scheduled tasks for views.
package workers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/internal/metrics"
)

// A Poller runs a task every interval while its gate is open.
//
// The gate is checked before every run; once it reports false the poller
// exits and must be started again to resume.
type Poller struct {
	name     string
	interval time.Duration
	task     func(context.Context) error
	gate     func() bool
	logger   *slog.Logger
	metrics  metrics.Recorder

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithGate only lets the task run while open returns true.
func WithGate(open func() bool) Option {
	return func(p *Poller) { p.gate = open }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Poller) { p.metrics = metrics.OrNop(r) }
}

// NewPoller returns a stopped Poller.
func NewPoller(name string, interval time.Duration, task func(context.Context) error, opts ...Option) *Poller {
	p := &Poller{
		name:     name,
		interval: interval,
		task:     task,
		gate:     func() bool { return true },
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the task name.
func (p *Poller) Name() string {
	return p.name
}

// Run runs the task until ctx is cancelled or the gate closes. The first run
// happens one interval after Run is called. Task errors are logged and do
// not stop the poller.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Debug("poller started", slog.String("task", p.name))
	defer p.logger.Debug("poller stopped", slog.String("task", p.name))

	for {
		if !p.gate() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.interval):
			// continue
		}
		if !p.gate() {
			return nil
		}
		err := p.task(ctx)
		p.metrics.RecordPoll(p.name, err)
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("poll failed", slog.String("task", p.name), slog.Any("error", err))
		}
	}
}

// Start runs the poller in the background. Starting a running poller does
// nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		select {
		case <-p.done:
		default:
			return
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		p.Run(ctx)
	}()
}

// Stop stops a poller started with Start and waits for it to exit.
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

// Running reports whether a poller started with Start is still running.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
