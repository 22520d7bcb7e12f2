// Package pages keeps a local copy of one page of a remote collection.
//
// The cursor moves as soon as a request is issued. Every request carries a
// sequence number and only the response to the most recently issued request
// is applied; anything older is discarded, success or failure.
package pages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/internal/streaming"
	"github.com/socialdistribution/courier/workers"
)

// Page is one page of a collection as returned by a node.
type Page[T any] struct {
	Items []T
	// Total is the size of the whole collection, if the node reports it.
	Total *int
}

// Fetcher returns the given 1-based page of a collection.
type Fetcher[T any] func(ctx context.Context, page, size int) (Page[T], error)

// Snapshot is a copy of the reconciler's state.
type Snapshot[T any] struct {
	Collection string
	Page       int
	Items      []T
	Total      *int
}

// ErrSuperseded is returned when a newer request was issued while this one
// was in flight. Its response was discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// ReconciliationFailed is returned when fetching a page fails. The
// reconciler has been reset to an empty first page.
type ReconciliationFailed struct {
	Collection string
	Page       int
	Err        error
}

func (e *ReconciliationFailed) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Collection, e.Page, e.Err)
}

func (e *ReconciliationFailed) Unwrap() error { return e.Err }

// Config holds the optional parts of a Reconciler.
type Config struct {
	// Size is the page size, 5 if unset.
	Size    int
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// Mux, if set, receives a Snapshot each time the state changes.
	Mux *streaming.Mux
}

// DefaultSize is the page size used when Config.Size is unset.
const DefaultSize = 5

// A Reconciler holds one page of a collection.
type Reconciler[T any] struct {
	name    string
	fetch   Fetcher[T]
	size    int
	logger  *slog.Logger
	metrics metrics.Recorder
	mux     *streaming.Mux

	mu     sync.Mutex
	page   int
	items  []T
	total  *int
	issued uint64
}

// New returns a Reconciler positioned on page 1 with no items loaded.
func New[T any](name string, fetch Fetcher[T], cfg Config) *Reconciler[T] {
	if cfg.Size < 1 {
		cfg.Size = DefaultSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler[T]{
		name:    name,
		fetch:   fetch,
		size:    cfg.Size,
		logger:  cfg.Logger.With(slog.String("collection", name)),
		metrics: metrics.OrNop(cfg.Metrics),
		mux:     cfg.Mux,
		page:    1,
	}
}

// Load fetches the current page.
func (r *Reconciler[T]) Load(ctx context.Context) error {
	return r.move(ctx, 0)
}

// Refresh refetches the current page.
func (r *Reconciler[T]) Refresh(ctx context.Context) error {
	return r.move(ctx, 0)
}

// Next moves to the following page and fetches it.
func (r *Reconciler[T]) Next(ctx context.Context) error {
	return r.move(ctx, +1)
}

// Prev moves to the preceding page and fetches it. On page 1 Prev does
// nothing.
func (r *Reconciler[T]) Prev(ctx context.Context) error {
	r.mu.Lock()
	first := r.page <= 1
	r.mu.Unlock()
	if first {
		return nil
	}
	return r.move(ctx, -1)
}

func (r *Reconciler[T]) move(ctx context.Context, delta int) error {
	r.mu.Lock()
	page := r.page + delta
	if page < 1 {
		// lost a race with another Prev
		r.mu.Unlock()
		return nil
	}
	r.page = page
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	res, err := r.fetch(ctx, page, r.size)

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.issued {
		r.logger.Debug("discarding stale page", slog.Int("page", page))
		return ErrSuperseded
	}
	if err != nil && ctx.Err() != nil {
		// abandoned by the caller, keep the page we had
		r.page = page - delta
		return err
	}
	if err != nil {
		r.page = 1
		r.items = nil
		r.total = nil
		r.metrics.RecordReconcileFailure(r.name)
		r.logger.Warn("fetch failed, reset to first page", slog.Int("page", page), slog.Any("error", err))
		r.publish()
		return &ReconciliationFailed{Collection: r.name, Page: page, Err: err}
	}
	r.items = res.Items
	r.total = res.Total
	r.publish()
	return nil
}

// publish must be called with r.mu held.
func (r *Reconciler[T]) publish() {
	if r.mux != nil {
		r.mux.Publish(r.name, r.snapshot())
	}
}

// Snapshot returns a copy of the current state.
func (r *Reconciler[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Reconciler[T]) snapshot() Snapshot[T] {
	s := Snapshot[T]{
		Collection: r.name,
		Page:       r.page,
		Items:      append([]T(nil), r.items...),
	}
	if r.total != nil {
		total := *r.total
		s.Total = &total
	}
	return s
}

// Page returns the current page number.
func (r *Reconciler[T]) Page() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// Refresher returns a poller that refreshes the current page every interval.
func (r *Reconciler[T]) Refresher(interval time.Duration) *workers.Poller {
	return workers.NewPoller(r.name, interval,
		func(ctx context.Context) error {
			err := r.Refresh(ctx)
			if errors.Is(err, ErrSuperseded) {
				return nil
			}
			return err
		},
		workers.WithLogger(r.logger),
		workers.WithMetrics(r.metrics),
	)
}
