// Package social ties the client, the dispatcher and the per-view state
// machines together for one signed in author.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/classify"
	"github.com/socialdistribution/courier/delivery"
	"github.com/socialdistribution/courier/follow"
	"github.com/socialdistribution/courier/internal/activitypub"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/internal/metrics"
	"github.com/socialdistribution/courier/internal/streaming"
	"github.com/socialdistribution/courier/likes"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/pages"
)

// Config holds the optional parts of a Service.
type Config struct {
	// PollInterval is how often views refresh, 10s if unset.
	PollInterval time.Duration
	// PageSize is the page size of every collection, 5 if unset.
	PageSize int
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	// Mux, if set, receives view updates.
	Mux *streaming.Mux
}

const defaultPollInterval = 10 * time.Second

// Service acts for the author of a session.
type Service struct {
	client   *activitypub.Client
	dispatch *delivery.Dispatcher
	me       models.Author
	interval time.Duration
	size     int
	logger   *slog.Logger
	metrics  metrics.Recorder
	mux      *streaming.Mux
}

var ErrNotSignedIn = errors.New("not signed in")

// New returns a Service acting as the author client is signed in as.
func New(client *activitypub.Client, d *delivery.Dispatcher, cfg Config) (*Service, error) {
	session := client.Session()
	if session == nil || session.Author.ID == "" {
		return nil, ErrNotSignedIn
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = pages.DefaultSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		client:   client,
		dispatch: d,
		me:       session.Author,
		interval: cfg.PollInterval,
		size:     cfg.PageSize,
		logger:   cfg.Logger.With(slog.String("author", session.Author.Ref())),
		metrics:  metrics.OrNop(cfg.Metrics),
		mux:      cfg.Mux,
	}, nil
}

// Me returns the author the service acts as.
func (s *Service) Me() models.Author { return s.me }

// Author fetches the author named by ref.
func (s *Service) Author(ctx context.Context, ref string) (*models.Author, error) {
	return s.client.Author(ctx, ref)
}

// Post fetches the post ref. A bare id names one of the author's own posts,
// anything else must be a post locator.
func (s *Service) Post(ctx context.Context, ref string) (*models.Post, error) {
	author, post, ok := identity.SplitPost(ref)
	if !ok {
		author, post = s.me.ID, ref
	}
	return s.client.Post(ctx, author, post)
}

// A Draft is a post before it is classified.
type Draft struct {
	Title       string
	Description string
	Visibility  models.Visibility
	classify.Input
}

func (s *Service) compose(d Draft) (*models.Post, error) {
	res, err := classify.Classify(d.Input)
	if err != nil {
		return nil, err
	}
	if res.Dropped > 0 {
		s.logger.Warn("only one image can be attached, keeping the last", slog.Int("dropped", res.Dropped))
	}
	visibility := d.Visibility
	if visibility == "" {
		visibility = models.Public
	}
	post := &models.Post{
		Type:        activities.POST,
		Title:       d.Title,
		Description: d.Description,
		ContentType: res.ContentType,
		Content:     res.Content,
		Author:      s.me,
		Visibility:  visibility,
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	return post, nil
}

// Publish classifies and publishes a new post.
func (s *Service) Publish(ctx context.Context, d Draft) (*models.Post, error) {
	post, err := s.compose(d)
	if err != nil {
		return nil, err
	}
	return s.client.CreatePost(ctx, s.me.ID, post)
}

// Edit replaces the post ref with d.
func (s *Service) Edit(ctx context.Context, ref string, d Draft) (*models.Post, error) {
	post, err := s.compose(d)
	if err != nil {
		return nil, err
	}
	return s.client.UpdatePost(ctx, s.me.ID, ref, post)
}

// Delete deletes the post ref.
func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.client.DeletePost(ctx, s.me.ID, ref)
}

// Share sends post to the inbox of each of the author's followers. Delivery
// is best effort: failures are logged and reported, never retried.
func (s *Service) Share(ctx context.Context, post models.Post) (*delivery.Report, error) {
	followers, err := s.client.Followers(ctx, s.me.ID)
	if err != nil {
		return nil, fmt.Errorf("followers of %s: %w", s.me.Ref(), err)
	}
	report := s.dispatch.Deliver(ctx, activities.Share(post), followers)
	report.Log(s.logger)
	return report, nil
}

// Comment comments on post and tells the post's author about it.
func (s *Service) Comment(ctx context.Context, post *models.Post, text string, markdown bool) (*models.Comment, error) {
	comment := &models.Comment{
		Type:        activities.COMMENT,
		Author:      s.me,
		Comment:     text,
		ContentType: models.ContentTypePlain,
	}
	if markdown {
		comment.ContentType = models.ContentTypeMarkdown
	}
	stored, err := s.client.CreateComment(ctx, post, comment)
	if err != nil {
		return nil, err
	}
	if post.Author.Is(&s.me) {
		return stored, nil
	}
	// the comment exists; a lost notice is only logged
	if res := s.dispatch.DeliverOne(ctx, activities.CommentNotice(post.ID, *stored), post.Author); res.Outcome != delivery.Delivered {
		s.logger.Warn("comment notice not delivered", slog.String("target", res.Target.Ref()), slog.String("outcome", res.Outcome.String()), slog.Any("error", res.Err))
	}
	return stored, nil
}

// Relationship returns the follow state machine between the author and target.
func (s *Service) Relationship(target models.Author) *follow.Relationship {
	return follow.New(s.me, target, s.client, s.dispatch, s.logger)
}

// Accept accepts a follow request from follower.
func (s *Service) Accept(ctx context.Context, follower models.Author) error {
	return follow.Accept(ctx, s.client, s.me, follower)
}

// Like returns the like state of post. Each view of a post gets its own.
func (s *Service) Like(post models.Post) *likes.View {
	return likes.NewView(s.me, post, s.dispatch, func(ctx context.Context) ([]models.Like, error) {
		return s.client.Likes(ctx, &post)
	}, s.logger)
}

// ClearInbox empties the author's inbox.
func (s *Service) ClearInbox(ctx context.Context) error {
	return s.client.ClearInbox(ctx, s.me.ID)
}

func (s *Service) pageConfig() pages.Config {
	return pages.Config{
		Size:    s.size,
		Logger:  s.logger,
		Metrics: s.metrics,
		Mux:     s.mux,
	}
}
