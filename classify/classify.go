// Package classify decides the content type of a new post from what the
// author typed and attached.
//
// The rules are applied in order and the first match wins:
//
//  1. ForceMarkdown with any text or images: text/markdown, content is the
//     text as typed. Images are not embedded.
//  2. Exactly one image: <image-type>;base64, content is the image payload.
//  3. Text and no images: text/plain, content is the text.
//  4. Nothing at all: EmptyPostError.
//
// When more than one image is attached without ForceMarkdown only the last
// image is kept, and Result.Dropped records how many were discarded.
package classify

import (
	"fmt"

	"github.com/socialdistribution/courier/internal/mime"
	"github.com/socialdistribution/courier/models"
)

// An Image is a base64 encoded image and its media type.
type Image struct {
	MediaType string
	Data      string
}

// FromDataURL returns the Image encoded in a data url.
func FromDataURL(s string) (Image, error) {
	typ, payload, err := mime.ParseDataURL(s)
	if err != nil {
		return Image{}, &Error{Kind: InvalidImage, Err: err}
	}
	return Image{MediaType: typ, Data: payload}, nil
}

// Input is what the author submitted.
type Input struct {
	Text          string
	Images        []Image
	ForceMarkdown bool
}

// Result is the classified content of a post.
type Result struct {
	ContentType string
	Content     string
	// Dropped is the number of attached images that were discarded.
	Dropped int
}

// Kind names a class of classification failure.
type Kind int

const (
	// EmptyPost means there was neither text nor an image.
	EmptyPost Kind = iota + 1
	// InvalidImage means an attached image has no usable media type or payload.
	InvalidImage
)

func (k Kind) String() string {
	switch k {
	case EmptyPost:
		return "empty post"
	case InvalidImage:
		return "invalid image"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned when the input cannot be classified. Nothing should be
// submitted when Classify fails.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEmptyPost) and friends match on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	// EmptyPostError matches any error of kind EmptyPost.
	EmptyPostError = &Error{Kind: EmptyPost}
	// InvalidImageError matches any error of kind InvalidImage.
	InvalidImageError = &Error{Kind: InvalidImage}
)

// Classify returns the content type and content for in.
func Classify(in Input) (Result, error) {
	hasText := in.Text != ""
	hasImages := len(in.Images) > 0

	switch {
	case in.ForceMarkdown && (hasText || hasImages):
		return Result{
			ContentType: models.ContentTypeMarkdown,
			Content:     in.Text,
		}, nil
	case hasImages:
		img := in.Images[len(in.Images)-1]
		if err := validate(img); err != nil {
			return Result{}, err
		}
		return Result{
			ContentType: models.ImageContentType(mime.Base(img.MediaType)),
			Content:     img.Data,
			Dropped:     len(in.Images) - 1,
		}, nil
	case hasText:
		return Result{
			ContentType: models.ContentTypePlain,
			Content:     in.Text,
		}, nil
	default:
		return Result{}, &Error{Kind: EmptyPost}
	}
}

func validate(img Image) error {
	if !mime.IsImage(img.MediaType) {
		return &Error{Kind: InvalidImage, Err: fmt.Errorf("media type %q is not an image", img.MediaType)}
	}
	if img.Data == "" {
		return &Error{Kind: InvalidImage, Err: fmt.Errorf("empty %s payload", img.MediaType)}
	}
	return nil
}
