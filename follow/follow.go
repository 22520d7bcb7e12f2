// Package follow tracks whether one author follows another.
//
// A follow request is asymmetric: the requester can only ask, and learns
// that the request was accepted by polling the target's follower list.
//
//	Unknown ──Load──▶ NotFollowing ──RequestFollow──▶ Pending ──Reconcile──▶ Following
//	                       ▲                                                    │
//	                       └──────────────────────── Unfollow ◀─────────────────┘
package follow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/delivery"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/workers"
)

// State is the viewer's relationship to the target.
type State int

const (
	Unknown State = iota
	NotFollowing
	Pending
	Following
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case NotFollowing:
		return "not following"
	case Pending:
		return "pending"
	case Following:
		return "following"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrAlreadyFollowing is returned when asking to follow someone already followed.
	ErrAlreadyFollowing = errors.New("already following")
	// ErrAlreadyRequested is returned when the target already holds a request
	// from the viewer. The relationship is Pending.
	ErrAlreadyRequested = errors.New("follow request already sent")
)

// Remote is the follower list of the target's node.
type Remote interface {
	IsFollower(ctx context.Context, target, follower string) (bool, error)
	RemoveFollower(ctx context.Context, target, follower string) error
	Followers(ctx context.Context, target string) ([]models.Author, error)
}

// Deliverer delivers a single envelope.
type Deliverer interface {
	DeliverOne(ctx context.Context, env activities.Envelope, target models.Author) delivery.Result
}

// A Relationship is the viewer's view of their relationship to target.
// It is owned by a single view and discarded with it.
type Relationship struct {
	viewer  models.Author
	target  models.Author
	remote  Remote
	deliver Deliverer
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	followers models.Counter
}

// New returns a Relationship in the Unknown state.
func New(viewer, target models.Author, remote Remote, d Deliverer, logger *slog.Logger) *Relationship {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relationship{
		viewer:  viewer,
		target:  target,
		remote:  remote,
		deliver: d,
		logger:  logger.With(slog.String("viewer", viewer.Ref()), slog.String("target", target.Ref())),
	}
}

// State returns the current state.
func (r *Relationship) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Followers returns the target's follower count.
func (r *Relationship) Followers() models.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.followers
}

// Load reads the target's followers and settles the state to Following or
// NotFollowing. Both follower counts are reset to the server's value.
func (r *Relationship) Load(ctx context.Context) error {
	followers, err := r.remote.Followers(ctx, r.target.ID)
	if err != nil {
		return fmt.Errorf("load followers of %s: %w", r.target.Ref(), err)
	}
	following := false
	for i := range followers {
		if followers[i].Is(&r.viewer) {
			following = true
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.followers.Sync(len(followers))
	switch {
	case following:
		r.state = Following
	case r.state != Pending:
		// a pending request is not visible in the follower list
		r.state = NotFollowing
	}
	return nil
}

// RequestFollow sends a follow request to the target. A delivered request
// leaves the relationship Pending; only Reconcile moves it to Following.
func (r *Relationship) RequestFollow(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case Pending:
		r.mu.Unlock()
		return nil
	case Following:
		r.mu.Unlock()
		return ErrAlreadyFollowing
	}
	// Pending while in flight stops a second request being sent.
	r.state = Pending
	r.mu.Unlock()

	res := r.deliver.DeliverOne(ctx, activities.Follow(r.viewer, r.target), r.target)

	r.mu.Lock()
	defer r.mu.Unlock()
	switch res.Outcome {
	case delivery.Delivered:
		r.logger.Info("follow requested")
		return nil
	case delivery.Rejected:
		return ErrAlreadyRequested
	default:
		if r.state == Pending {
			r.state = NotFollowing
		}
		return fmt.Errorf("follow %s: %w", r.target.Ref(), res.Err)
	}
}

// Reconcile checks whether the viewer appears among the target's followers.
// An accepted request moves Pending to Following and bumps the projected
// follower count. Errors leave the state unchanged.
func (r *Relationship) Reconcile(ctx context.Context) (State, error) {
	r.mu.Lock()
	before := r.state
	r.mu.Unlock()

	present, err := r.remote.IsFollower(ctx, r.target.ID, r.viewer.ID)
	if err != nil {
		return before, fmt.Errorf("reconcile follow of %s: %w", r.target.Ref(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != before {
		// changed underneath us; this answer is stale
		return r.state, nil
	}
	switch {
	case present && r.state != Following:
		r.state = Following
		if before == Pending {
			r.followers.Bump(1)
			r.logger.Info("follow accepted")
		}
	case !present && r.state == Following:
		r.state = NotFollowing
		r.followers.Bump(-1)
	}
	return r.state, nil
}

// Unfollow removes the viewer from the target's followers. The relationship
// becomes NotFollowing whether or not the remote call succeeds; the remote
// error, if any, is returned afterwards.
func (r *Relationship) Unfollow(ctx context.Context) error {
	err := r.remote.RemoveFollower(ctx, r.target.ID, r.viewer.ID)
	// the notice also withdraws a request the target has not answered
	if res := r.deliver.DeliverOne(ctx, activities.Unfollow(r.viewer, r.target), r.target); res.Outcome == delivery.Failed {
		r.logger.Debug("unfollow notice not delivered", slog.Any("error", res.Err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Following {
		r.followers.Bump(-1)
	}
	r.state = NotFollowing
	if err != nil {
		r.logger.Warn("unfollow failed", slog.Any("error", err))
		return fmt.Errorf("unfollow %s: %w", r.target.Ref(), err)
	}
	return nil
}

// Poller returns a poller that reconciles every interval while the
// relationship is Pending. It stops by itself once the request is accepted.
func (r *Relationship) Poller(interval time.Duration, m metrics.Recorder) *workers.Poller {
	return workers.NewPoller("follow", interval,
		func(ctx context.Context) error {
			_, err := r.Reconcile(ctx)
			return err
		},
		workers.WithGate(func() bool { return r.State() == Pending }),
		workers.WithLogger(r.logger),
		workers.WithMetrics(m),
	)
}

// Acceptor adds followers to an author.
type Acceptor interface {
	AcceptFollower(ctx context.Context, target, follower string) error
}

// Accept answers a follow request by adding follower to self's followers.
// If follower already follows self, Accept returns ErrAlreadyFollowing.
func Accept(ctx context.Context, a Acceptor, self, follower models.Author) error {
	err := a.AcceptFollower(ctx, self.ID, follower.ID)
	switch {
	case err == nil:
		return nil
	case httpx.IsStatus(err, http.StatusBadRequest, http.StatusConflict):
		return ErrAlreadyFollowing
	default:
		return fmt.Errorf("accept %s: %w", follower.Ref(), err)
	}
}
