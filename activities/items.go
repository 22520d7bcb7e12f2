package activities

import (
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/socialdistribution/courier/models"
)

// An Item is something found in an inbox. The set of items is closed:
// every Item is one of PostItem, FollowItem, LikeItem, CommentItem or
// UnknownItem.
type Item interface {
	// Kind is the lower case item type, eg. "post".
	Kind() string
	Accept(Visitor)

	item()
}

// Visitor handles each kind of Item.
type Visitor interface {
	VisitPost(*PostItem)
	VisitFollow(*FollowItem)
	VisitLike(*LikeItem)
	VisitComment(*CommentItem)
	VisitUnknown(*UnknownItem)
}

// PostItem is a post delivered to the inbox, usually by a share.
type PostItem struct {
	models.Post `json:",inline"`
}

func (*PostItem) Kind() string        { return POST }
func (p *PostItem) Accept(v Visitor) { v.VisitPost(p) }
func (*PostItem) item()               {}

// FollowItem is a pending follow request.
type FollowItem struct {
	Summary string        `json:"summary"`
	Actor   models.Author `json:"actor"`
	Object  models.Author `json:"object"`
}

func (*FollowItem) Kind() string        { return "follow" }
func (f *FollowItem) Accept(v Visitor) { v.VisitFollow(f) }
func (*FollowItem) item()               {}

// LikeItem is a like of one of the inbox owner's posts.
type LikeItem struct {
	Summary string        `json:"summary"`
	Author  models.Author `json:"author"`
	Object  string        `json:"object"`
}

func (*LikeItem) Kind() string        { return "like" }
func (l *LikeItem) Accept(v Visitor) { v.VisitLike(l) }
func (*LikeItem) item()               {}

// CommentItem is a comment on one of the inbox owner's posts.
type CommentItem struct {
	models.Comment `json:",inline"`
	Post           string `json:"post"`
}

func (*CommentItem) Kind() string        { return COMMENT }
func (c *CommentItem) Accept(v Visitor) { v.VisitComment(c) }
func (*CommentItem) item()               {}

// UnknownItem holds anything this package does not understand, including
// known types that failed to decode.
type UnknownItem struct {
	Type string
	Raw  map[string]any
}

func (u *UnknownItem) Kind() string     { return strings.ToLower(u.Type) }
func (u *UnknownItem) Accept(v Visitor) { v.VisitUnknown(u) }
func (*UnknownItem) item()              {}

// DecodeItem converts a raw inbox entry into an Item. DecodeItem never fails;
// anything it cannot make sense of becomes an UnknownItem.
func DecodeItem(raw map[string]any) Item {
	typ, _ := raw["type"].(string)
	unknown := &UnknownItem{Type: typ, Raw: raw}

	var item Item
	switch strings.ToLower(typ) {
	case POST:
		item = new(PostItem)
	case "follow":
		item = new(FollowItem)
	case "like":
		item = new(LikeItem)
	case COMMENT:
		item = new(CommentItem)
	default:
		return unknown
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return unknown
	}
	if err := json.Unmarshal(b, item); err != nil {
		return unknown
	}
	return item
}

// DecodeItems decodes every entry of an inbox page.
func DecodeItems(raw []map[string]any) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, DecodeItem(r))
	}
	return items
}
