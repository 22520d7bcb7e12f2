package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	png = Image{MediaType: "image/png", Data: "iVBORw0KGgo="}
	gif = Image{MediaType: "image/gif", Data: "R0lGODlhAQABAAAAACw="}
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Result
	}{{
		name: "plain text",
		in:   Input{Text: "hello"},
		want: Result{ContentType: "text/plain", Content: "hello"},
	}, {
		name: "whitespace is still text",
		in:   Input{Text: " "},
		want: Result{ContentType: "text/plain", Content: " "},
	}, {
		name: "single image",
		in:   Input{Images: []Image{png}},
		want: Result{ContentType: "image/png;base64", Content: png.Data},
	}, {
		name: "single image wins over text",
		in:   Input{Text: "caption", Images: []Image{gif}},
		want: Result{ContentType: "image/gif;base64", Content: gif.Data},
	}, {
		name: "force markdown with text",
		in:   Input{Text: "# title", ForceMarkdown: true},
		want: Result{ContentType: "text/markdown", Content: "# title"},
	}, {
		name: "force markdown with text and image does not embed the image",
		in:   Input{Text: "*hi*", Images: []Image{png}, ForceMarkdown: true},
		want: Result{ContentType: "text/markdown", Content: "*hi*"},
	}, {
		name: "force markdown with image only",
		in:   Input{Images: []Image{png}, ForceMarkdown: true},
		want: Result{ContentType: "text/markdown", Content: ""},
	}, {
		name: "multiple images keep the last",
		in:   Input{Images: []Image{png, gif}},
		want: Result{ContentType: "image/gif;base64", Content: gif.Data, Dropped: 1},
	}, {
		name: "media type parameters are stripped",
		in:   Input{Images: []Image{{MediaType: "Image/JPEG; q=1", Data: "/9j/"}}},
		want: Result{ContentType: "image/jpeg;base64", Content: "/9j/"},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyEmptyPost(t *testing.T) {
	for _, force := range []bool{false, true} {
		_, err := Classify(Input{ForceMarkdown: force})
		require.ErrorIs(t, err, EmptyPostError)

		var cerr *Error
		require.True(t, errors.As(err, &cerr))
		require.Equal(t, EmptyPost, cerr.Kind)
	}
}

func TestClassifyInvalidImage(t *testing.T) {
	t.Run("no media type", func(t *testing.T) {
		_, err := Classify(Input{Images: []Image{{Data: "abc="}}})
		require.ErrorIs(t, err, InvalidImageError)
		require.False(t, errors.Is(err, EmptyPostError))
	})
	t.Run("not an image", func(t *testing.T) {
		_, err := Classify(Input{Images: []Image{{MediaType: "text/html", Data: "abc="}}})
		require.ErrorIs(t, err, InvalidImageError)
	})
	t.Run("empty payload", func(t *testing.T) {
		_, err := Classify(Input{Images: []Image{{MediaType: "image/png"}}})
		require.ErrorIs(t, err, InvalidImageError)
	})
	t.Run("only the kept image is validated", func(t *testing.T) {
		got, err := Classify(Input{Images: []Image{{MediaType: "text/html"}, png}})
		require.NoError(t, err)
		require.Equal(t, png.Data, got.Content)
	})
}

func TestClassifyTextIsUnchanged(t *testing.T) {
	for _, text := range []string{"hello", "  padded  ", "<b>html</b>", "line\nbreak", "emoji 🎉"} {
		got, err := Classify(Input{Text: text})
		require.NoError(t, err)
		require.Equal(t, "text/plain", got.ContentType)
		require.Equal(t, text, got.Content)
	}
}

func TestFromDataURL(t *testing.T) {
	require := require.New(t)

	img, err := FromDataURL("data:image/png;base64,iVBORw0KGgo=")
	require.NoError(err)
	require.Equal(png, img)

	_, err = FromDataURL("iVBORw0KGgo=")
	require.ErrorIs(err, InvalidImageError)
}
