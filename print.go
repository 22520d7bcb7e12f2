package main

import (
	"fmt"
	"html"
	"io"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/models"
)

// remote text may carry markup; none of it belongs on a terminal.
var strict = bluemonday.StrictPolicy()

func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	// escape sequences would drive the terminal
	s = strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// printer writes inbox items, posts and comments as plain text.
type printer struct {
	w io.Writer
}

func (p printer) post(post *models.Post) {
	fmt.Fprintf(p.w, "%s\n  %s by %s [%s]\n", post.ID, clean(post.Title), clean(post.Author.String()), post.Visibility)
	if models.IsImageContentType(post.ContentType) {
		fmt.Fprintf(p.w, "  <%s, %d bytes base64>\n", strings.TrimSuffix(post.ContentType, ";base64"), len(post.Content))
		return
	}
	for _, line := range strings.Split(clean(post.Content), "\n") {
		fmt.Fprintf(p.w, "  | %s\n", line)
	}
}

func (p printer) comment(c *models.Comment) {
	fmt.Fprintf(p.w, "%s: %s\n", clean(c.Author.String()), clean(c.Comment))
}

func (p printer) item(it activities.Item) {
	it.Accept(p)
}

func (p printer) VisitPost(it *activities.PostItem) {
	fmt.Fprint(p.w, "post ")
	p.post(&it.Post)
}

func (p printer) VisitFollow(it *activities.FollowItem) {
	fmt.Fprintf(p.w, "follow %s wants to follow you (%s)\n", clean(it.Actor.String()), it.Actor.ID)
}

func (p printer) VisitLike(it *activities.LikeItem) {
	fmt.Fprintf(p.w, "like %s liked %s\n", clean(it.Author.String()), it.Object)
}

func (p printer) VisitComment(it *activities.CommentItem) {
	fmt.Fprintf(p.w, "comment on %s\n  ", it.Post)
	p.comment(&it.Comment)
}

func (p printer) VisitUnknown(it *activities.UnknownItem) {
	fmt.Fprintf(p.w, "%s (unrecognised)\n", it.Kind())
}
