// Package likes registers likes at most once per post view.
package likes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/delivery"
	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/workers"
)

// Outcome is the result of a Like.
type Outcome int

const (
	// Applied means this call registered the like.
	Applied Outcome = iota
	// AlreadyApplied means the like was registered before, here or remotely.
	AlreadyApplied
	// Failed means the like may not have been registered. Nothing changed locally.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already applied"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Deliverer delivers a single envelope.
type Deliverer interface {
	DeliverOne(ctx context.Context, env activities.Envelope, target models.Author) delivery.Result
}

// Lister returns the likes of a post.
type Lister func(ctx context.Context) ([]models.Like, error)

// A View is the viewer's like state for one post. It lives as long as the
// view showing the post; a new view starts from scratch.
type View struct {
	viewer  models.Author
	post    models.Post
	deliver Deliverer
	list    Lister
	logger  *slog.Logger

	mu       sync.Mutex
	liked    bool
	inflight bool
	count    models.Counter
}

// NewView returns the like state of post as seen by viewer. list may be nil
// if the like count is not wanted.
func NewView(viewer models.Author, post models.Post, d Deliverer, list Lister, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		viewer:  viewer,
		post:    post,
		deliver: d,
		list:    list,
		logger:  logger.With(slog.String("post", post.Ref())),
	}
}

// Like likes the post. The like is delivered to the post author's inbox at
// most once per view, however often or concurrently Like is called.
func (v *View) Like(ctx context.Context) (Outcome, error) {
	v.mu.Lock()
	if v.liked || v.inflight {
		v.mu.Unlock()
		return AlreadyApplied, nil
	}
	v.inflight = true
	v.mu.Unlock()

	res := v.deliver.DeliverOne(ctx, activities.Like(v.viewer, v.post.ID), v.post.Author)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.inflight = false
	switch res.Outcome {
	case delivery.Delivered:
		v.liked = true
		v.count.Bump(1)
		return Applied, nil
	case delivery.Rejected:
		v.liked = true
		return AlreadyApplied, nil
	default:
		return Failed, fmt.Errorf("like %s: %w", v.post.Ref(), res.Err)
	}
}

// Liked reports whether the viewer is known to like the post.
func (v *View) Liked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.liked
}

// Count returns the like count.
func (v *View) Count() models.Counter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.count
}

// Reset forgets everything, as if the view had just been opened.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.liked = false
	v.count = models.Counter{}
}

// Refresh rereads the post's likes. It syncs the count and, if the viewer is
// among the likers, marks the post liked.
func (v *View) Refresh(ctx context.Context) error {
	if v.list == nil {
		return nil
	}
	likes, err := v.list(ctx)
	if err != nil {
		return fmt.Errorf("likes of %s: %w", v.post.Ref(), err)
	}
	mine := algorithms.Any(likes, func(l models.Like) bool { return l.Author.Is(&v.viewer) })

	v.mu.Lock()
	defer v.mu.Unlock()
	v.count.Sync(len(likes))
	if mine {
		v.liked = true
	}
	return nil
}

// Refresher returns a poller that refreshes the like count every interval.
func (v *View) Refresher(interval time.Duration, m metrics.Recorder) *workers.Poller {
	return workers.NewPoller("likes", interval, v.Refresh,
		workers.WithLogger(v.logger),
		workers.WithMetrics(m),
	)
}
