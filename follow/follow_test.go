package follow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/delivery"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/models"
)

var (
	viewer = models.Author{ID: "http://a.example/api/authors/v", DisplayName: "V"}
	target = models.Author{ID: "http://b.example/api/authors/t", DisplayName: "T"}
)

// fakeRemote is the target's follower list.
type fakeRemote struct {
	mu        sync.Mutex
	followers []models.Author
	err       error
	removeErr error
	checks    atomic.Int32
}

func (f *fakeRemote) IsFollower(ctx context.Context, t, follower string) (bool, error) {
	f.checks.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, a := range f.followers {
		if identity.Same(a.ID, follower) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRemote) RemoveFollower(ctx context.Context, t, follower string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	var kept []models.Author
	for _, a := range f.followers {
		if !identity.Same(a.ID, follower) {
			kept = append(kept, a)
		}
	}
	f.followers = kept
	return nil
}

func (f *fakeRemote) Followers(ctx context.Context, t string) ([]models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Author(nil), f.followers...), f.err
}

func (f *fakeRemote) accept(a models.Author) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followers = append(f.followers, a)
}

// fakeDeliverer answers every delivery with outcome.
type fakeDeliverer struct {
	outcome delivery.Outcome
	sent    []activities.Envelope
}

func (f *fakeDeliverer) DeliverOne(ctx context.Context, env activities.Envelope, t models.Author) delivery.Result {
	f.sent = append(f.sent, env)
	res := delivery.Result{Target: t, Outcome: f.outcome}
	if f.outcome == delivery.Failed {
		res.Err = errors.New("connection refused")
	}
	return res
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func others(n int) []models.Author {
	var authors []models.Author
	for i := 0; i < n; i++ {
		authors = append(authors, models.Author{ID: "http://c.example/api/authors/" + string(rune('a'+i))})
	}
	return authors
}

func TestLoad(t *testing.T) {
	t.Run("not following", func(t *testing.T) {
		require := require.New(t)

		r := New(viewer, target, &fakeRemote{followers: others(3)}, &fakeDeliverer{}, quiet())
		require.Equal(Unknown, r.State())
		require.NoError(r.Load(context.Background()))
		require.Equal(NotFollowing, r.State())
		require.Equal(models.Counter{Confirmed: 3, Projected: 3}, r.Followers())
	})
	t.Run("following", func(t *testing.T) {
		require := require.New(t)

		remote := &fakeRemote{followers: append(others(2), models.Author{ID: "v"})}
		r := New(viewer, target, remote, &fakeDeliverer{}, quiet())
		require.NoError(r.Load(context.Background()))
		require.Equal(Following, r.State())
		require.Equal(3, r.Followers().Confirmed)
	})
	t.Run("error leaves the state unknown", func(t *testing.T) {
		require := require.New(t)

		r := New(viewer, target, &fakeRemote{err: errors.New("down")}, &fakeDeliverer{}, quiet())
		require.Error(r.Load(context.Background()))
		require.Equal(Unknown, r.State())
	})
}

func TestRequestFollowNeverJumpsToFollowing(t *testing.T) {
	for _, outcome := range []delivery.Outcome{delivery.Delivered, delivery.Rejected, delivery.Failed} {
		t.Run(outcome.String(), func(t *testing.T) {
			require := require.New(t)

			r := New(viewer, target, &fakeRemote{}, &fakeDeliverer{outcome: outcome}, quiet())
			require.NoError(r.Load(context.Background()))
			r.RequestFollow(context.Background())
			require.NotEqual(Following, r.State())
		})
	}
}

func TestRequestFollow(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		require := require.New(t)

		d := &fakeDeliverer{outcome: delivery.Delivered}
		r := New(viewer, target, &fakeRemote{}, d, quiet())
		require.NoError(r.RequestFollow(context.Background()))
		require.Equal(Pending, r.State())
		require.Len(d.sent, 1)
		follow, ok := d.sent[0].(*activities.FollowActivity)
		require.True(ok)
		require.Equal("V wants to follow T", follow.Summary())

		// a second request while pending sends nothing
		require.NoError(r.RequestFollow(context.Background()))
		require.Len(d.sent, 1)
	})
	t.Run("rejected", func(t *testing.T) {
		require := require.New(t)

		r := New(viewer, target, &fakeRemote{}, &fakeDeliverer{outcome: delivery.Rejected}, quiet())
		require.ErrorIs(r.RequestFollow(context.Background()), ErrAlreadyRequested)
		require.Equal(Pending, r.State())
	})
	t.Run("failed", func(t *testing.T) {
		require := require.New(t)

		r := New(viewer, target, &fakeRemote{}, &fakeDeliverer{outcome: delivery.Failed}, quiet())
		require.ErrorContains(r.RequestFollow(context.Background()), "connection refused")
		require.Equal(NotFollowing, r.State())
	})
	t.Run("already following", func(t *testing.T) {
		require := require.New(t)

		d := &fakeDeliverer{}
		r := New(viewer, target, &fakeRemote{followers: []models.Author{viewer}}, d, quiet())
		require.NoError(r.Load(context.Background()))
		require.ErrorIs(r.RequestFollow(context.Background()), ErrAlreadyFollowing)
		require.Empty(d.sent)
	})
}

func TestAcceptanceBumpsProjectedCount(t *testing.T) {
	require := require.New(t)

	remote := &fakeRemote{followers: others(3)}
	r := New(viewer, target, remote, &fakeDeliverer{outcome: delivery.Delivered}, quiet())
	require.NoError(r.Load(context.Background()))
	require.NoError(r.RequestFollow(context.Background()))

	state, err := r.Reconcile(context.Background())
	require.NoError(err)
	require.Equal(Pending, state)

	remote.accept(viewer)
	state, err = r.Reconcile(context.Background())
	require.NoError(err)
	require.Equal(Following, state)
	require.Equal(models.Counter{Confirmed: 3, Projected: 4}, r.Followers())

	// later reconciles are idempotent
	state, err = r.Reconcile(context.Background())
	require.NoError(err)
	require.Equal(Following, state)
	require.Equal(4, r.Followers().Projected)
}

func TestReconcileErrorLeavesStateUnchanged(t *testing.T) {
	require := require.New(t)

	remote := &fakeRemote{}
	r := New(viewer, target, remote, &fakeDeliverer{outcome: delivery.Delivered}, quiet())
	require.NoError(r.RequestFollow(context.Background()))

	remote.err = httpx.Error(http.StatusBadGateway, errors.New("upstream"))
	state, err := r.Reconcile(context.Background())
	require.Error(err)
	require.Equal(Pending, state)
	require.Equal(Pending, r.State())
}

func TestReconcileNoticesRemoval(t *testing.T) {
	require := require.New(t)

	remote := &fakeRemote{followers: []models.Author{viewer}}
	r := New(viewer, target, remote, &fakeDeliverer{}, quiet())
	require.NoError(r.Load(context.Background()))
	require.NoError(remote.RemoveFollower(context.Background(), target.ID, viewer.ID))

	state, err := r.Reconcile(context.Background())
	require.NoError(err)
	require.Equal(NotFollowing, state)
	require.Equal(models.Counter{Confirmed: 1, Projected: 0}, r.Followers())
}

func TestUnfollowAlwaysEndsNotFollowing(t *testing.T) {
	for name, removeErr := range map[string]error{
		"ok":    nil,
		"error": errors.New("timeout"),
	} {
		for _, initial := range []State{Unknown, NotFollowing, Pending, Following} {
			t.Run(name+"/"+initial.String(), func(t *testing.T) {
				require := require.New(t)

				remote := &fakeRemote{removeErr: removeErr, followers: others(2)}
				d := &fakeDeliverer{}
				r := New(viewer, target, remote, d, quiet())
				require.NoError(r.Load(context.Background()))
				r.state = initial

				err := r.Unfollow(context.Background())
				if removeErr != nil {
					require.Error(err)
				} else {
					require.NoError(err)
				}
				require.Len(d.sent, 1)
				notice, ok := d.sent[0].(*activities.UnfollowActivity)
				require.True(ok)
				require.Equal(viewer, notice.Actor())
				require.Equal(target, notice.Object())
				require.Equal(NotFollowing, r.State())
				want := 2
				if initial == Following {
					want = 1
				}
				require.Equal(want, r.Followers().Projected)
			})
		}
	}
}

func TestUnfollowNoticeIsBestEffort(t *testing.T) {
	require := require.New(t)

	remote := &fakeRemote{followers: append(others(1), viewer)}
	d := &fakeDeliverer{outcome: delivery.Failed}
	r := New(viewer, target, remote, d, quiet())
	require.NoError(r.Load(context.Background()))
	require.Equal(Following, r.State())

	require.NoError(r.Unfollow(context.Background()))
	require.Len(d.sent, 1)
	require.Equal(NotFollowing, r.State())
	require.Equal(1, r.Followers().Projected)
}

func TestPollerStopsOnceFollowing(t *testing.T) {
	require := require.New(t)

	remote := &fakeRemote{}
	r := New(viewer, target, remote, &fakeDeliverer{outcome: delivery.Delivered}, quiet())

	// not pending: the poller exits without checking
	p := r.Poller(time.Millisecond, nil)
	require.NoError(p.Run(context.Background()))
	require.Zero(remote.checks.Load())

	require.NoError(r.RequestFollow(context.Background()))
	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(func() bool { return remote.checks.Load() >= 2 }, time.Second, time.Millisecond)

	remote.accept(viewer)
	require.Eventually(func() bool { return !p.Running() }, time.Second, time.Millisecond)
	require.Equal(Following, r.State())

	checks := remote.checks.Load()
	time.Sleep(10 * time.Millisecond)
	require.Equal(checks, remote.checks.Load())
}

// fakeAcceptor fails with err.
type fakeAcceptor struct{ err error }

func (f fakeAcceptor) AcceptFollower(ctx context.Context, t, follower string) error { return f.err }

func TestAccept(t *testing.T) {
	require := require.New(t)

	require.NoError(Accept(context.Background(), fakeAcceptor{}, target, viewer))
	require.ErrorIs(Accept(context.Background(), fakeAcceptor{httpx.Error(http.StatusBadRequest, errors.New("exists"))}, target, viewer), ErrAlreadyFollowing)
	require.ErrorContains(Accept(context.Background(), fakeAcceptor{errors.New("down")}, target, viewer), "down")
}
