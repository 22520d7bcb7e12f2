package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/internal/group"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/internal/node"
)

type NodeCmd struct {
	Addr string   `default:"localhost:8000" help:"address to listen"`
	Base string   `help:"public locator of the API, defaults to http://<addr>/api"`
	User []string `help:"create an author, as name:password" placeholder:"NAME:PASSWORD"`
}

func (n *NodeCmd) Run(ctx *Context) error {
	base := n.Base
	if base == "" {
		base = "http://" + n.Addr + "/api"
	}
	nd := node.New(strings.TrimRight(base, "/"), ctx.Logger)
	for _, u := range n.User {
		name, pass, ok := strings.Cut(u, ":")
		if !ok || name == "" {
			return fmt.Errorf("--user %q: want name:password", u)
		}
		author := nd.AddAuthor(name, pass, name)
		ctx.Logger.Info("author created", slog.String("name", name), slog.String("id", author.ID))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	r.Mount("/", nd.Handler())

	if ctx.Debug {
		walk := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			ctx.Logger.Debug("route", slog.String("method", method), slog.String("route", strings.Replace(route, "/*/", "/", -1)))
			return nil
		}
		if err := chi.Walk(r, walk); err != nil {
			return err
		}
	}

	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g := group.New(bg)
	g.Go(serve(ctx.Logger, &http.Server{
		Addr:         n.Addr,
		Handler:      r,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}))
	return g.Wait()
}
