package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/socialdistribution/courier/internal/identity"
)

// Visibility controls who may see a post.
type Visibility string

const (
	Public   Visibility = "PUBLIC"
	Unlisted Visibility = "UNLISTED"
	Friends  Visibility = "FRIENDS"
)

// ParseVisibility returns the Visibility named by s. Matching ignores case.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case Public, Unlisted, Friends:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

const (
	ContentTypePlain    = "text/plain"
	ContentTypeMarkdown = "text/markdown"

	imageSuffix = ";base64"
)

// ImageContentType returns the content type of a post whose content is a base64
// image of the given media type, eg. image/png;base64.
func ImageContentType(mediaType string) string {
	return mediaType + imageSuffix
}

// IsImageContentType reports whether contentType describes a base64 image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") && strings.HasSuffix(contentType, imageSuffix)
}

// A Post is a single piece of authored content.
type Post struct {
	Type        string     `json:"type,omitempty"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ContentType string     `json:"contentType"`
	Content     string     `json:"content"`
	Author      Author     `json:"author"`
	Source      string     `json:"source,omitempty"`
	Origin      string     `json:"origin,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Comments    string     `json:"comments,omitempty"`
	Count       int        `json:"count"`
	Published   time.Time  `json:"published"`
}

// Ref returns the bare identifier of the post.
func (p *Post) Ref() string {
	return identity.ID(p.ID)
}

// IsShared reports whether the post was reshared from somewhere other than
// where it was first published.
func (p *Post) IsShared() bool {
	return p.Source != p.Origin
}

var (
	ErrMissingTitle       = errors.New("post title is required")
	ErrMissingDescription = errors.New("post description is required")
	ErrContentMismatch    = errors.New("post content does not match its content type")
)

// Validate checks that the post can be submitted: it has a title and a
// description, and its content agrees with its content type.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrMissingDescription
	}
	if _, err := ParseVisibility(string(p.Visibility)); err != nil {
		return err
	}
	switch {
	case p.ContentType == ContentTypePlain, p.ContentType == ContentTypeMarkdown:
		return nil
	case IsImageContentType(p.ContentType):
		if p.Content == "" {
			return fmt.Errorf("%w: empty image", ErrContentMismatch)
		}
		if _, err := base64.StdEncoding.DecodeString(p.Content); err != nil {
			return fmt.Errorf("%w: %v", ErrContentMismatch, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported content type %q", ErrContentMismatch, p.ContentType)
	}
}

// A Comment belongs to exactly one post's comment collection.
type Comment struct {
	Type        string    `json:"type,omitempty"`
	ID          string    `json:"id,omitempty"`
	Author      Author    `json:"author"`
	Comment     string    `json:"comment"`
	ContentType string    `json:"contentType"`
	Published   time.Time `json:"published"`
}

// Ref returns the bare identifier of the comment.
func (c *Comment) Ref() string {
	return identity.ID(c.ID)
}

// A Like records that an author liked an object.
type Like struct {
	Type      string    `json:"type,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Author    Author    `json:"author"`
	Object    string    `json:"object"`
	Published time.Time `json:"published"`
}
