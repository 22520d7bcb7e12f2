package main

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/socialdistribution/courier/delivery"
	"github.com/socialdistribution/courier/internal/activitypub"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/internal/streaming"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/social"
)

func (ctx *Context) openDB() (*gorm.DB, error) {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return nil, err
	}
	if err := configureDB(db); err != nil {
		return nil, err
	}
	return db, nil
}

func (ctx *Context) sessions() (*models.Sessions, error) {
	db, err := ctx.openDB()
	if err != nil {
		return nil, err
	}
	return models.NewSessions(db), nil
}

func (ctx *Context) client(session *models.Session) *activitypub.Client {
	return activitypub.NewClient(session, activitypub.WithLogger(ctx.Logger))
}

// options are the per command parts of a service.
type options struct {
	pageSize int
	metrics  metrics.Recorder
	mux      *streaming.Mux
}

// service returns a social.Service for the current session.
func (ctx *Context) service(opts options) (*social.Service, error) {
	sessions, err := ctx.sessions()
	if err != nil {
		return nil, err
	}
	session, err := sessions.Current()
	if errors.Is(err, models.ErrNoSession) {
		return nil, fmt.Errorf("%w: run courier login first", err)
	}
	if err != nil {
		return nil, err
	}
	client := ctx.client(session)
	d := delivery.New(client,
		delivery.WithConcurrency(ctx.Concurrency),
		delivery.WithRate(ctx.Rate, ctx.Concurrency),
		delivery.WithLogger(ctx.Logger),
		delivery.WithMetrics(opts.metrics),
	)
	return social.New(client, d, social.Config{
		PollInterval: ctx.PollInterval,
		PageSize:     opts.pageSize,
		Logger:       ctx.Logger,
		Metrics:      opts.metrics,
		Mux:          opts.mux,
	})
}
