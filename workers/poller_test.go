package workers

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPollerRunsUntilCancelled(t *testing.T) {
	require := require.New(t)

	var runs atomic.Int32
	p := NewPoller("refresh", time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("transient")
	}, quiet())

	p.Start(context.Background())
	require.Eventually(func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	require.True(p.Running())

	p.Stop()
	require.False(p.Running())
	n := runs.Load()
	time.Sleep(10 * time.Millisecond)
	require.Equal(n, runs.Load(), "no runs after Stop")
}

func TestPollerGate(t *testing.T) {
	t.Run("closed gate never runs", func(t *testing.T) {
		require := require.New(t)

		var runs atomic.Int32
		p := NewPoller("follow", time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return nil
		}, WithGate(func() bool { return false }), quiet())
		require.NoError(p.Run(context.Background()))
		require.Zero(runs.Load())
	})

	t.Run("closing the gate stops the poller", func(t *testing.T) {
		require := require.New(t)

		var open atomic.Bool
		open.Store(true)
		var runs atomic.Int32
		p := NewPoller("follow", time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 2 {
				open.Store(false)
			}
			return nil
		}, WithGate(open.Load), quiet())

		p.Start(context.Background())
		require.Eventually(func() bool { return !p.Running() }, time.Second, time.Millisecond)
		require.EqualValues(2, runs.Load())
	})
}

func TestPollerStartTwice(t *testing.T) {
	require := require.New(t)

	var runs atomic.Int32
	p := NewPoller("refresh", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, quiet())
	p.Start(context.Background())
	p.Start(context.Background())
	require.True(p.Running())
	p.Stop()
	p.Stop()
	require.Zero(runs.Load())
}

func TestPollerRestart(t *testing.T) {
	require := require.New(t)

	var runs atomic.Int32
	p := NewPoller("refresh", time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, quiet())
	p.Start(context.Background())
	p.Stop()
	before := runs.Load()

	p.Start(context.Background())
	require.Eventually(func() bool { return runs.Load() > before }, time.Second, time.Millisecond)
	p.Stop()
}
