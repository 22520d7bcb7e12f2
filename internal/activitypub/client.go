// Package activitypub talks to a node's author, post, follower and inbox API.
package activitypub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/go-json-experiment/json"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/internal/webfinger"
	"github.com/socialdistribution/courier/models"
)

// Client makes requests to a node on behalf of a session.
type Client struct {
	base      string
	session   *models.Session
	transport http.RoundTripper
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the round tripper used for every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithLogger sets the logger requests are traced to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client for the node the session belongs to.
func NewClient(session *models.Session, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(session.Host, "/"),
		session:   session,
		transport: http.DefaultTransport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anonymous returns a Client for host with no credentials.
func Anonymous(host string, opts ...Option) *Client {
	return NewClient(&models.Session{Host: host}, opts...)
}

// Session returns the session the client acts for.
func (c *Client) Session() *models.Session {
	return c.session
}

// url returns the locator for ref. Absolute refs are used as is, anything else
// is built from the bare ids of parts below the node's base.
func (c *Client) url(parts ...string) string {
	if len(parts) == 1 && (strings.HasPrefix(parts[0], "http://") || strings.HasPrefix(parts[0], "https://")) {
		return parts[0]
	}
	var sb strings.Builder
	sb.WriteString(c.base)
	for _, p := range parts {
		sb.WriteByte('/')
		sb.WriteString(p)
	}
	return sb.String()
}

func authorPath(author string, rest ...string) []string {
	return append([]string{"authors", url.PathEscape(identity.ID(author))}, rest...)
}

func (c *Client) request(uri string) *requests.Builder {
	rb := requests.URL(uri).
		Accept("application/json").
		Transport(requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			c.logger.Debug("request", slog.String("method", req.Method), slog.String("url", req.URL.String()))
			return c.transport.RoundTrip(req)
		})).
		AddValidator(checkStatus)
	if auth := c.session.Authorization(); auth != "" {
		rb.Header("Authorization", auth)
	}
	return rb
}

// checkStatus converts non 2xx responses into *httpx.StatusError.
func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = res.Status
	}
	return httpx.Error(res.StatusCode, fmt.Errorf("%s %s: %s", res.Request.Method, res.Request.URL, msg))
}

// toJSON decodes the response body into v.
func toJSON(v any) requests.ResponseHandler {
	return func(res *http.Response) error {
		return json.UnmarshalFull(res.Body, v)
	}
}

// withJSON encodes obj as the request body.
func withJSON(rb *requests.Builder, obj any) (*requests.Builder, error) {
	body, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return rb.BodyBytes(body).ContentType("application/json"), nil
}

// Fetch decodes the resource at ref into obj.
func (c *Client) Fetch(ctx context.Context, ref string, obj any) error {
	return c.request(c.url(ref)).
		Handle(toJSON(obj)).
		Fetch(ctx)
}

// Login checks username and password against the node and returns a session
// for the author they belong to.
func (c *Client) Login(ctx context.Context, username, password string) (*models.Session, error) {
	var author models.Author
	err := c.request(c.url("auth", "")).
		BasicAuth(username, password).
		Handle(toJSON(&author)).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewSession(c.base, author, username, password), nil
}

// Author fetches the author named by ref. ref may also be a name@host handle,
// which is resolved with webfinger first.
func (c *Client) Author(ctx context.Context, ref string) (*models.Author, error) {
	if webfinger.IsHandle(ref) {
		resolved, err := c.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		ref = resolved
	}
	var author models.Author
	if err := c.Fetch(ctx, c.url(authorPath(ref)...), &author); err != nil {
		return nil, err
	}
	return &author, nil
}

// resolve returns the author locator of handle. Handles on the client's own
// host are looked up with the client's scheme, everything else over https.
func (c *Client) resolve(ctx context.Context, handle string) (string, error) {
	acct, err := webfinger.Parse(handle)
	if err != nil {
		return "", err
	}
	scheme := "https"
	if u, err := url.Parse(c.base); err == nil && strings.EqualFold(u.Host, acct.Host) {
		scheme = u.Scheme
	}
	wf, err := acct.Fetch(ctx, c.transport, scheme)
	if err != nil {
		return "", fmt.Errorf("webfinger %s: %w", acct, err)
	}
	return wf.Author()
}

// PostInbox delivers inbox to the inbox of the author it is addressed to.
func (c *Client) PostInbox(ctx context.Context, inbox activities.Inbox) error {
	rb, err := withJSON(c.request(c.url(authorPath(inbox.Author, "inbox")...)), inbox)
	if err != nil {
		return err
	}
	return rb.Method(http.MethodPost).Fetch(ctx)
}

// ClearInbox empties author's inbox. Clearing an empty or missing inbox is
// not an error.
func (c *Client) ClearInbox(ctx context.Context, author string) error {
	err := c.request(c.url(authorPath(author, "inbox")...)).
		Method(http.MethodDelete).
		Fetch(ctx)
	if httpx.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func followerPath(target, follower string) []string {
	return authorPath(target, "followers", url.PathEscape(follower))
}

// IsFollower reports whether follower is among target's followers.
// A 404 means no.
func (c *Client) IsFollower(ctx context.Context, target, follower string) (bool, error) {
	err := c.request(c.url(followerPath(target, follower)...)).Fetch(ctx)
	switch {
	case err == nil:
		return true, nil
	case httpx.IsStatus(err, http.StatusNotFound):
		return false, nil
	default:
		return false, err
	}
}

// AcceptFollower adds follower to target's followers.
func (c *Client) AcceptFollower(ctx context.Context, target, follower string) error {
	return c.request(c.url(followerPath(target, follower)...)).
		Method(http.MethodPut).
		Fetch(ctx)
}

// RemoveFollower removes follower from target's followers. Removing someone
// who is not a follower is not an error.
func (c *Client) RemoveFollower(ctx context.Context, target, follower string) error {
	err := c.request(c.url(followerPath(target, follower)...)).
		Method(http.MethodDelete).
		Fetch(ctx)
	if httpx.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// CreatePost publishes post as author and returns the post the node stored.
func (c *Client) CreatePost(ctx context.Context, author string, post *models.Post) (*models.Post, error) {
	return c.sendPost(ctx, http.MethodPost, c.url(authorPath(author, "posts")...), post)
}

// UpdatePost replaces the post ref with post.
func (c *Client) UpdatePost(ctx context.Context, author, ref string, post *models.Post) (*models.Post, error) {
	return c.sendPost(ctx, http.MethodPut, c.url(authorPath(author, "posts", url.PathEscape(identity.ID(ref)))...), post)
}

func (c *Client) sendPost(ctx context.Context, method, uri string, post *models.Post) (*models.Post, error) {
	rb, err := withJSON(c.request(uri), post)
	if err != nil {
		return nil, err
	}
	var stored models.Post
	if err := rb.Method(method).Handle(toJSON(&stored)).Fetch(ctx); err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeletePost deletes the post ref.
func (c *Client) DeletePost(ctx context.Context, author, ref string) error {
	return c.request(c.url(authorPath(author, "posts", url.PathEscape(identity.ID(ref)))...)).
		Method(http.MethodDelete).
		Fetch(ctx)
}

// CreateComment adds comment to post's comment collection.
func (c *Client) CreateComment(ctx context.Context, post *models.Post, comment *models.Comment) (*models.Comment, error) {
	rb, err := withJSON(c.request(c.commentsURL(post)), comment)
	if err != nil {
		return nil, err
	}
	var stored models.Comment
	if err := rb.Method(http.MethodPost).Handle(toJSON(&stored)).Fetch(ctx); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) commentsURL(post *models.Post) string {
	if post.Comments != "" {
		return c.url(post.Comments)
	}
	return c.url(authorPath(post.Author.ID, "posts", url.PathEscape(post.Ref()), "comments")...)
}
