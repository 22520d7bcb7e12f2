package social

import (
	"context"
	"errors"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/follow"
	"github.com/socialdistribution/courier/internal/activitypub"
	"github.com/socialdistribution/courier/internal/group"
	"github.com/socialdistribution/courier/likes"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/pages"
	"github.com/socialdistribution/courier/workers"
)

// Posts returns author's posts. The collection is not loaded.
func (s *Service) Posts(author models.Author) *pages.Reconciler[models.Post] {
	return pages.New("posts", activitypub.Posts(s.client, author.ID), s.pageConfig())
}

// PublicPosts returns every public post the node knows of.
func (s *Service) PublicPosts() *pages.Reconciler[models.Post] {
	return pages.New("public", activitypub.PublicPosts(s.client, s.me.ID), s.pageConfig())
}

// FollowingPosts returns the posts of the authors the author follows.
func (s *Service) FollowingPosts() *pages.Reconciler[models.Post] {
	return pages.New("following", activitypub.FollowingPosts(s.client, s.me.ID), s.pageConfig())
}

func (s *Service) Comments(post models.Post) *pages.Reconciler[models.Comment] {
	return pages.New("comments", activitypub.Comments(s.client, &post), s.pageConfig())
}

// InboxItems returns the author's inbox, newest first.
func (s *Service) InboxItems() *pages.Reconciler[activities.Item] {
	return pages.New(activities.INBOX, activitypub.Inbox(s.client, s.me.ID), s.pageConfig())
}

// view owns the pollers of an open view. Closing the view stops them.
type view struct {
	g *group.G
}

func (v *view) open(ctx context.Context, pollers ...*workers.Poller) {
	v.g = group.New(ctx)
	for _, p := range pollers {
		v.g.Go(p.Run)
	}
}

// Close stops the view's pollers and waits for them to exit.
func (v *view) Close() error {
	if v.g == nil {
		return nil
	}
	return v.g.Stop()
}

// Profile is an author's page: their posts and the viewer's relationship
// with them.
type Profile struct {
	view
	Author       models.Author
	Posts        *pages.Reconciler[models.Post]
	Relationship *follow.Relationship

	watch *workers.Poller
}

// Profile opens the profile of author. The posts are refreshed and, while a
// follow request is pending, its acceptance is polled for until Close.
func (s *Service) Profile(ctx context.Context, author models.Author) (*Profile, error) {
	p := &Profile{
		Author:       author,
		Posts:        s.Posts(author),
		Relationship: s.Relationship(author),
	}
	p.watch = p.Relationship.Poller(s.interval, s.metrics)
	if err := p.Posts.Load(ctx); err != nil {
		return nil, err
	}
	if !author.Is(&s.me) {
		if err := p.Relationship.Load(ctx); err != nil {
			return nil, err
		}
	}
	p.open(ctx, p.Posts.Refresher(s.interval))
	return p, nil
}

// Follow requests to follow the profile's author and watches for the
// request to be accepted. At most one watch runs however often Follow is
// called.
func (p *Profile) Follow(ctx context.Context) error {
	err := p.Relationship.RequestFollow(ctx)
	if err != nil && !errors.Is(err, follow.ErrAlreadyRequested) {
		return err
	}
	if p.Relationship.State() == follow.Pending {
		p.watch.Start(p.g.Context())
	}
	return err
}

// Close stops the watch and the posts refresher.
func (p *Profile) Close() error {
	p.watch.Stop()
	return p.view.Close()
}

// Feed is the public stream and the stream of followed authors.
type Feed struct {
	view
	Public    *pages.Reconciler[models.Post]
	Following *pages.Reconciler[models.Post]
}

// Feed opens both streams and keeps them fresh until Close.
func (s *Service) Feed(ctx context.Context) (*Feed, error) {
	f := &Feed{
		Public:    s.PublicPosts(),
		Following: s.FollowingPosts(),
	}
	for _, r := range []*pages.Reconciler[models.Post]{f.Public, f.Following} {
		if err := r.Load(ctx); err != nil {
			return nil, err
		}
	}
	f.open(ctx, f.Public.Refresher(s.interval), f.Following.Refresher(s.interval))
	return f, nil
}

// Thread is a post with its comments and likes.
type Thread struct {
	view
	Post     models.Post
	Comments *pages.Reconciler[models.Comment]
	Likes    *likes.View
}

// Thread opens post. The like count is refreshed until Close.
func (s *Service) Thread(ctx context.Context, post models.Post) (*Thread, error) {
	t := &Thread{
		Post:     post,
		Comments: s.Comments(post),
		Likes:    s.Like(post),
	}
	if err := t.Comments.Load(ctx); err != nil {
		return nil, err
	}
	if err := t.Likes.Refresh(ctx); err != nil {
		return nil, err
	}
	t.open(ctx, t.Likes.Refresher(s.interval, s.metrics), t.Comments.Refresher(s.interval))
	return t, nil
}

// Inbox is the signed in author's inbox.
type Inbox struct {
	view
	Items *pages.Reconciler[activities.Item]
}

// Inbox opens the author's inbox and keeps it fresh until Close.
func (s *Service) Inbox(ctx context.Context) (*Inbox, error) {
	in := &Inbox{
		Items: s.InboxItems(),
	}
	if err := in.Items.Load(ctx); err != nil {
		return nil, err
	}
	in.open(ctx, in.Items.Refresher(s.interval))
	return in, nil
}
