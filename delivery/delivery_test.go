package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/models"
)

// fakePoster records deliveries and fails those configured in errs.
type fakePoster struct {
	mu       sync.Mutex
	errs     map[string]error
	received []activities.Inbox
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakePoster) PostInbox(ctx context.Context, inbox activities.Inbox) error {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, inbox)
	return f.errs[inbox.Author]
}

func author(id string) models.Author {
	return models.Author{ID: "http://node.example/api/authors/" + id, DisplayName: id}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeliverOne(t *testing.T) {
	alice, bob := author("alice"), author("bob")

	tests := []struct {
		name    string
		env     activities.Envelope
		err     error
		outcome Outcome
		reason  Reason
	}{
		{"delivered", activities.Like(alice, "p1"), nil, Delivered, ""},
		{"duplicate like", activities.Like(alice, "p1"), httpx.Error(http.StatusBadRequest, errors.New("already liked")), Rejected, AlreadyLiked},
		{"duplicate follow", activities.Follow(alice, bob), httpx.Error(http.StatusConflict, errors.New("exists")), Rejected, AlreadyFollowing},
		{"duplicate share", activities.Share(models.Post{Author: alice}), httpx.Error(http.StatusBadRequest, errors.New("exists")), Rejected, AlreadyExists},
		{"unauthorized", activities.Like(alice, "p1"), httpx.Error(http.StatusUnauthorized, errors.New("who?")), Failed, Unauthorized},
		{"forbidden", activities.Like(alice, "p1"), httpx.Error(http.StatusForbidden, errors.New("no")), Failed, Unauthorized},
		{"server error", activities.Like(alice, "p1"), httpx.Error(http.StatusBadGateway, errors.New("upstream")), Failed, Unknown},
		{"transport", activities.Like(alice, "p1"), errors.New("connection refused"), Failed, Transport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			poster := &fakePoster{errs: map[string]error{bob.ID: tt.err}}
			d := New(poster, WithLogger(quiet()))
			res := d.DeliverOne(context.Background(), tt.env, bob)
			require.Equal(tt.outcome, res.Outcome)
			require.Equal(tt.reason, res.Reason)
			require.Equal(bob, res.Target)

			require.Len(poster.received, 1)
			require.Equal("inbox", poster.received[0].Type)
			require.Equal(bob.ID, poster.received[0].Author)
			require.Equal([]activities.Envelope{tt.env}, poster.received[0].Items)
		})
	}
}

func TestDeliverPartialFailure(t *testing.T) {
	require := require.New(t)

	alice := author("alice")
	targets := []models.Author{author("a"), author("b"), author("c"), author("d")}
	poster := &fakePoster{errs: map[string]error{
		targets[1].ID: errors.New("connection reset"),
		targets[3].ID: httpx.Error(http.StatusBadRequest, errors.New("seen it")),
	}}
	reg := prometheus.NewRegistry()
	d := New(poster, WithLogger(quiet()), WithMetrics(metrics.NewCollector(reg)))

	report := d.Deliver(context.Background(), activities.Share(models.Post{Author: alice, Title: "hi"}), targets)
	require.Len(report.Results, 4)
	for i, res := range report.Results {
		require.Equal(targets[i], res.Target, "results are in target order")
	}
	require.Len(report.Delivered(), 2)
	require.Len(report.Rejected(), 1)
	require.Len(report.Failed(), 1)
	require.ErrorContains(report.Err(), "connection reset")
	require.Len(poster.received, 4, "one failure does not stop the others")

	report.Log(quiet())
}

func TestDeliverDeduplicatesTargets(t *testing.T) {
	require := require.New(t)

	poster := &fakePoster{}
	d := New(poster, WithLogger(quiet()))
	bob := author("bob")
	report := d.Deliver(context.Background(), activities.Like(author("alice"), "p1"), []models.Author{
		bob, {ID: "bob"}, {ID: bob.ID + "/"},
	})
	require.Len(report.Results, 1)
	require.Len(poster.received, 1)
	require.NoError(report.Err())
}

func TestDeliverBoundsConcurrency(t *testing.T) {
	require := require.New(t)

	poster := &fakePoster{delay: 10 * time.Millisecond}
	d := New(poster, WithLogger(quiet()), WithConcurrency(2))
	var targets []models.Author
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		targets = append(targets, author(id))
	}
	report := d.Deliver(context.Background(), activities.Like(author("alice"), "p1"), targets)
	require.Len(report.Delivered(), 6)
	require.LessOrEqual(poster.peak.Load(), int32(2))
}

func TestDeliverCancelled(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poster := &fakePoster{}
	d := New(poster, WithLogger(quiet()), WithRate(1, 1))
	report := d.Deliver(ctx, activities.Like(author("alice"), "p1"), []models.Author{author("a"), author("b")})
	require.Len(report.Failed(), 2)
	for _, res := range report.Failed() {
		require.Equal(Transport, res.Reason)
	}
	require.Empty(poster.received)
}

func TestWithRate(t *testing.T) {
	require := require.New(t)

	d := New(&fakePoster{}, WithRate(0, 0))
	require.Nil(d.limiter)

	d = New(&fakePoster{}, WithRate(5, 0))
	require.NotNil(d.limiter)
	require.Equal(1, d.limiter.Burst())
}
