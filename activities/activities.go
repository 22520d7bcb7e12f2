// Package activities builds the envelopes delivered to remote inboxes and
// decodes the items read back from them.
package activities

import (
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/socialdistribution/courier/models"
)

const (
	LIKE     = "Like"
	FOLLOW   = "Follow"
	UNFOLLOW = "Unfollow"
	POST     = "post"
	COMMENT  = "comment"
	INBOX    = "inbox"
)

// An Envelope is an activity addressed to some inbox. Envelopes are built by
// the functions in this package and cannot be changed afterwards.
type Envelope interface {
	// ID is unique to each envelope.
	ID() string
	Type() string
	Summary() string
	Actor() models.Author

	envelope()
}

func newID() string {
	return "urn:uuid:" + uuid.New().String()
}

// LikeActivity records that an author liked a post.
type LikeActivity struct {
	id     string
	actor  models.Author
	object string
}

// Like returns a Like of post by actor.
func Like(actor models.Author, post string) *LikeActivity {
	return &LikeActivity{id: newID(), actor: actor, object: post}
}

func (l *LikeActivity) ID() string           { return l.id }
func (l *LikeActivity) Type() string         { return LIKE }
func (l *LikeActivity) Actor() models.Author { return l.actor }
func (l *LikeActivity) Object() string       { return l.object }
func (l *LikeActivity) Summary() string      { return l.actor.String() + " Liked the post" }
func (*LikeActivity) envelope()              {}

func (l *LikeActivity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string        `json:"type"`
		ID      string        `json:"id"`
		Summary string        `json:"summary"`
		Author  models.Author `json:"author"`
		Object  string        `json:"object"`
	}{LIKE, l.id, l.Summary(), l.actor, l.object})
}

// FollowActivity asks target to accept actor as a follower.
type FollowActivity struct {
	id     string
	actor  models.Author
	target models.Author
}

// Follow returns a request from actor to follow target.
func Follow(actor, target models.Author) *FollowActivity {
	return &FollowActivity{id: newID(), actor: actor, target: target}
}

func (f *FollowActivity) ID() string            { return f.id }
func (f *FollowActivity) Type() string          { return FOLLOW }
func (f *FollowActivity) Actor() models.Author  { return f.actor }
func (f *FollowActivity) Object() models.Author { return f.target }
func (f *FollowActivity) Summary() string {
	return f.actor.String() + " wants to follow " + f.target.String()
}
func (*FollowActivity) envelope() {}

func (f *FollowActivity) MarshalJSON() ([]byte, error) {
	return marshalRelationship(FOLLOW, f.id, f.Summary(), f.actor, f.target)
}

// UnfollowActivity tells target that actor no longer follows them.
type UnfollowActivity struct {
	id     string
	actor  models.Author
	target models.Author
}

// Unfollow returns a notice that actor stopped following target.
func Unfollow(actor, target models.Author) *UnfollowActivity {
	return &UnfollowActivity{id: newID(), actor: actor, target: target}
}

func (u *UnfollowActivity) ID() string            { return u.id }
func (u *UnfollowActivity) Type() string          { return UNFOLLOW }
func (u *UnfollowActivity) Actor() models.Author  { return u.actor }
func (u *UnfollowActivity) Object() models.Author { return u.target }
func (u *UnfollowActivity) Summary() string {
	return u.actor.String() + " unfollowed " + u.target.String()
}
func (*UnfollowActivity) envelope() {}

func (u *UnfollowActivity) MarshalJSON() ([]byte, error) {
	return marshalRelationship(UNFOLLOW, u.id, u.Summary(), u.actor, u.target)
}

func marshalRelationship(typ, id, summary string, actor, target models.Author) ([]byte, error) {
	return json.Marshal(struct {
		Type    string        `json:"type"`
		ID      string        `json:"id"`
		Summary string        `json:"summary"`
		Actor   models.Author `json:"actor"`
		Object  models.Author `json:"object"`
	}{typ, id, summary, actor, target})
}

// ShareActivity delivers a whole post to an inbox.
type ShareActivity struct {
	id   string
	post models.Post
}

// Share returns a share of post. The post travels in full.
func Share(post models.Post) *ShareActivity {
	return &ShareActivity{id: newID(), post: post}
}

func (s *ShareActivity) ID() string           { return s.id }
func (s *ShareActivity) Type() string         { return POST }
func (s *ShareActivity) Actor() models.Author { return s.post.Author }
func (s *ShareActivity) Post() models.Post    { return s.post }
func (s *ShareActivity) Summary() string {
	return s.post.Author.String() + " shared " + s.post.Title
}
func (*ShareActivity) envelope() {}

// MarshalJSON encodes the share as the post itself, which is how inboxes
// expect to receive posts.
func (s *ShareActivity) MarshalJSON() ([]byte, error) {
	post := s.post
	post.Type = POST
	return json.Marshal(post)
}

// CommentActivity tells a post's author about a new comment.
type CommentActivity struct {
	id      string
	post    string
	comment models.Comment
}

// CommentNotice returns a notice that comment was left on post.
func CommentNotice(post string, comment models.Comment) *CommentActivity {
	return &CommentActivity{id: newID(), post: post, comment: comment}
}

func (c *CommentActivity) ID() string              { return c.id }
func (c *CommentActivity) Type() string            { return COMMENT }
func (c *CommentActivity) Actor() models.Author    { return c.comment.Author }
func (c *CommentActivity) Post() string            { return c.post }
func (c *CommentActivity) Comment() models.Comment { return c.comment }
func (c *CommentActivity) Summary() string {
	return c.comment.Author.String() + " commented on your post"
}
func (*CommentActivity) envelope() {}

func (c *CommentActivity) MarshalJSON() ([]byte, error) {
	published := c.comment.Published
	if published.IsZero() {
		published = time.Now().UTC()
	}
	contentType := c.comment.ContentType
	if contentType == "" {
		contentType = models.ContentTypePlain
	}
	return json.Marshal(struct {
		Type        string        `json:"type"`
		ID          string        `json:"id"`
		Author      models.Author `json:"author"`
		Comment     string        `json:"comment"`
		ContentType string        `json:"contentType"`
		Published   time.Time     `json:"published"`
		Post        string        `json:"post"`
	}{COMMENT, c.id, c.comment.Author, c.comment.Comment, contentType, published, c.post})
}

// Inbox is the unit actually posted to a remote inbox.
type Inbox struct {
	Type   string     `json:"type"`
	Author string     `json:"author"`
	Items  []Envelope `json:"items"`
}

// Wrap addresses env to the inbox of target.
func Wrap(target models.Author, env Envelope) Inbox {
	return Inbox{
		Type:   INBOX,
		Author: target.ID,
		Items:  []Envelope{env},
	}
}
