// Package delivery posts envelopes to remote inboxes.
//
// Every target is attempted once, independently of the others. Nothing is
// retried: a Failed result is reported to the caller, who decides whether to
// try again.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/models"
)

// Outcome is the result of delivering to one inbox.
type Outcome int

const (
	// Delivered means the inbox accepted the envelope.
	Delivered Outcome = iota
	// Rejected means the inbox already held an equivalent activity.
	Rejected
	// Failed means the envelope may not have arrived.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Reason qualifies a Rejected or Failed outcome.
type Reason string

const (
	AlreadyExists    Reason = "already_exists"
	AlreadyLiked     Reason = "already_liked"
	AlreadyFollowing Reason = "already_following"
	Unauthorized     Reason = "unauthorized"
	Transport        Reason = "transport"
	Unknown          Reason = "unknown"
)

// Result reports the delivery of one envelope to one target.
type Result struct {
	Target  models.Author
	Outcome Outcome
	Reason  Reason
	Err     error
}

func (r Result) String() string {
	if r.Reason == "" {
		return fmt.Sprintf("%s: %s", r.Target.Ref(), r.Outcome)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Target.Ref(), r.Outcome, r.Reason)
}

// Poster posts an inbox container to the inbox of the author it addresses.
type Poster interface {
	PostInbox(ctx context.Context, inbox activities.Inbox) error
}

// Dispatcher delivers envelopes. A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	poster      Poster
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of deliveries in flight at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRate limits deliveries to perSecond, with the given burst. A perSecond
// of zero or less means no limit.
func WithRate(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = metrics.OrNop(r) }
}

// New returns a Dispatcher that posts through p.
func New(p Poster, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		poster:      p,
		concurrency: 8,
		logger:      slog.Default(),
		metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeliverOne delivers env to target's inbox.
func (d *Dispatcher) DeliverOne(ctx context.Context, env activities.Envelope, target models.Author) Result {
	start := time.Now()
	err := d.wait(ctx)
	if err == nil {
		err = d.poster.PostInbox(ctx, activities.Wrap(target, env))
	}
	res := Result{Target: target, Err: err}
	res.Outcome, res.Reason = classify(env, err)
	d.metrics.RecordDelivery(res.Outcome.String(), string(res.Reason), time.Since(start))

	log := d.logger.With(slog.String("type", env.Type()), slog.String("id", env.ID()), slog.String("target", target.Ref()))
	switch res.Outcome {
	case Delivered:
		log.Debug("delivered")
	case Rejected:
		log.Debug("rejected", slog.String("reason", string(res.Reason)))
	default:
		log.Warn("delivery failed", slog.String("reason", string(res.Reason)), slog.Any("error", err))
	}
	return res
}

func (d *Dispatcher) wait(ctx context.Context) error {
	if d.limiter == nil {
		return ctx.Err()
	}
	return d.limiter.Wait(ctx)
}

// Deliver delivers env to every target in parallel. Targets that refer to
// the same author are delivered to once. Results are in target order.
func (d *Dispatcher) Deliver(ctx context.Context, env activities.Envelope, targets []models.Author) *Report {
	targets = algorithms.UniqBy(targets, func(a models.Author) string { return a.Ref() })
	results := make([]Result, len(targets))

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target models.Author) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result{Target: target, Outcome: Failed, Reason: Transport, Err: ctx.Err()}
				return
			}
			results[i] = d.DeliverOne(ctx, env, target)
		}(i, target)
	}
	wg.Wait()
	return &Report{Envelope: env, Results: results}
}

// classify maps a delivery error onto an outcome.
func classify(env activities.Envelope, err error) (Outcome, Reason) {
	if err == nil {
		return Delivered, ""
	}
	switch code := httpx.StatusCode(err); {
	case code == http.StatusBadRequest, code == http.StatusConflict:
		switch env.(type) {
		case *activities.LikeActivity:
			return Rejected, AlreadyLiked
		case *activities.FollowActivity:
			return Rejected, AlreadyFollowing
		default:
			return Rejected, AlreadyExists
		}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return Failed, Unauthorized
	case code != 0:
		return Failed, Unknown
	default:
		// no response: connection refused, timeouts, cancellation
		return Failed, Transport
	}
}

// Report collects the results of a fan-out.
type Report struct {
	Envelope activities.Envelope
	Results  []Result
}

func (r *Report) filter(o Outcome) []Result {
	return algorithms.Filter(r.Results, func(res Result) bool { return res.Outcome == o })
}

// Delivered returns the results that were delivered.
func (r *Report) Delivered() []Result { return r.filter(Delivered) }

// Rejected returns the results that were rejected as duplicates.
func (r *Report) Rejected() []Result { return r.filter(Rejected) }

// Failed returns the results that failed.
func (r *Report) Failed() []Result { return r.filter(Failed) }

// Err returns the failures joined into one error, or nil.
func (r *Report) Err() error {
	errs := algorithms.Map(r.Failed(), func(res Result) error {
		return fmt.Errorf("%s: %w", res.Target.Ref(), res.Err)
	})
	return errors.Join(errs...)
}

// Log summarises the report. Fan-outs are best effort, so failures are
// logged rather than returned.
func (r *Report) Log(logger *slog.Logger) {
	logger.Info("fan-out complete",
		slog.String("type", r.Envelope.Type()),
		slog.Int("targets", len(r.Results)),
		slog.Int("delivered", len(r.Delivered())),
		slog.Int("rejected", len(r.Rejected())),
		slog.Int("failed", len(r.Failed())),
	)
}
