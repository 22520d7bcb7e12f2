package activitypub

import (
	"context"
	"net/url"
	"strconv"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/pages"
)

// collection is the envelope every node collection is wrapped in.
// Some nodes return comments under "comments" rather than "items".
type collection[T any] struct {
	Type     string `json:"type"`
	Items    []T    `json:"items"`
	Comments []T    `json:"comments"`
	Count    *int   `json:"count"`
}

func (c *collection[T]) items() []T {
	if len(c.Items) == 0 {
		return c.Comments
	}
	return c.Items
}

// FetchPage fetches one page of the collection at ref.
func FetchPage[T any](ctx context.Context, c *Client, ref string, page, size int) (pages.Page[T], error) {
	var coll collection[T]
	err := c.request(c.url(ref)).
		Param("page", strconv.Itoa(page)).
		Param("size", strconv.Itoa(size)).
		Handle(toJSON(&coll)).
		Fetch(ctx)
	if err != nil {
		return pages.Page[T]{}, err
	}
	return pages.Page[T]{Items: coll.items(), Total: coll.Count}, nil
}

// fetchAll fetches the whole of the collection at ref.
func fetchAll[T any](ctx context.Context, c *Client, ref string) ([]T, error) {
	var coll collection[T]
	if err := c.Fetch(ctx, ref, &coll); err != nil {
		return nil, err
	}
	return coll.items(), nil
}

func pager[T any](c *Client, ref string) pages.Fetcher[T] {
	return func(ctx context.Context, page, size int) (pages.Page[T], error) {
		return FetchPage[T](ctx, c, ref, page, size)
	}
}

func postPath(post *models.Post, rest ...string) []string {
	return authorPath(post.Author.ID, append([]string{"posts", url.PathEscape(identity.ID(post.ID))}, rest...)...)
}

// Authors returns a fetcher for the node's authors.
func Authors(c *Client) pages.Fetcher[models.Author] {
	return pager[models.Author](c, c.url("authors"))
}

// Posts returns a fetcher for the posts of author.
func Posts(c *Client, author string) pages.Fetcher[models.Post] {
	return pager[models.Post](c, c.url(authorPath(author, "posts")...))
}

// PublicPosts returns a fetcher for the node's public stream.
func PublicPosts(c *Client, viewer string) pages.Fetcher[models.Post] {
	return pager[models.Post](c, c.url(authorPath(viewer, "posts", "public")...))
}

// FollowingPosts returns a fetcher for the posts of the authors viewer follows.
func FollowingPosts(c *Client, viewer string) pages.Fetcher[models.Post] {
	return pager[models.Post](c, c.url(authorPath(viewer, "posts", "following")...))
}

// Comments returns a fetcher for the comments on post.
func Comments(c *Client, post *models.Post) pages.Fetcher[models.Comment] {
	return pager[models.Comment](c, c.commentsURL(post))
}

// Inbox returns a fetcher for the inbox of author. Items the client does not
// understand are returned as *activities.UnknownItem.
func Inbox(c *Client, author string) pages.Fetcher[activities.Item] {
	ref := c.url(authorPath(author, "inbox")...)
	return func(ctx context.Context, page, size int) (pages.Page[activities.Item], error) {
		raw, err := FetchPage[map[string]any](ctx, c, ref, page, size)
		if err != nil {
			return pages.Page[activities.Item]{}, err
		}
		return pages.Page[activities.Item]{
			Items: activities.DecodeItems(raw.Items),
			Total: raw.Total,
		}, nil
	}
}

// Post fetches a single post.
func (c *Client) Post(ctx context.Context, author, ref string) (*models.Post, error) {
	var post models.Post
	if err := c.Fetch(ctx, c.url(authorPath(author, "posts", url.PathEscape(identity.ID(ref)))...), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Followers returns every follower of target.
func (c *Client) Followers(ctx context.Context, target string) ([]models.Author, error) {
	return fetchAll[models.Author](ctx, c, c.url(authorPath(target, "followers")...))
}

// Likes returns every like of post.
func (c *Client) Likes(ctx context.Context, post *models.Post) ([]models.Like, error) {
	likes, err := fetchAll[models.Like](ctx, c, c.url(postPath(post, "likes")...))
	if err != nil {
		return nil, err
	}
	// nodes that echo back likes of other objects are filtered out
	return algorithms.Filter(likes, func(l models.Like) bool {
		return l.Object == "" || identity.Same(l.Object, post.ID)
	}), nil
}
