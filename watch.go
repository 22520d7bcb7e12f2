package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/group"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/internal/streaming"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/pages"
)

type WatchCmd struct {
	MetricsAddr string `help:"serve Prometheus metrics on this address"`
}

func (w *WatchCmd) Run(ctx *Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mux := new(streaming.Mux)
	sub := mux.Subscribe(16)
	defer sub.Cancel()

	svc, err := ctx.service(options{
		metrics: metrics.NewCollector(reg),
		mux:     mux,
	})
	if err != nil {
		return err
	}

	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	inbox, err := svc.Inbox(bg)
	if err != nil {
		return err
	}
	defer inbox.Close()
	feed, err := svc.Feed(bg)
	if err != nil {
		return err
	}
	defer feed.Close()

	g := group.New(bg)
	if w.MetricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", metrics.Handler(reg))
		g.Go(serve(ctx.Logger, &http.Server{
			Addr:         w.MetricsAddr,
			Handler:      r,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}))
	}
	g.Go(func(ctx context.Context) error {
		return watch(ctx, sub)
	})
	return g.Wait()
}

// watch prints each collection whenever its contents change.
func watch(ctx context.Context, sub *streaming.Subscription) error {
	last := make(map[string][]byte)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return errors.New("fell too far behind the views")
			}
			var buf bytes.Buffer
			render(&buf, ev)
			if bytes.Equal(last[ev.Event], buf.Bytes()) {
				continue
			}
			last[ev.Event] = buf.Bytes()
			os.Stdout.Write(buf.Bytes())
		}
	}
}

func render(buf *bytes.Buffer, ev streaming.Payload) {
	p := printer{w: buf}
	buf.WriteString("== " + ev.Event + "\n")
	switch snap := ev.Data.(type) {
	case pages.Snapshot[activities.Item]:
		for _, it := range snap.Items {
			p.item(it)
		}
	case pages.Snapshot[models.Post]:
		for i := range snap.Items {
			p.post(&snap.Items[i])
		}
	}
}

// serve runs srv until the group is stopped.
func serve(logger *slog.Logger, srv *http.Server) func(context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
