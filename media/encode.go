// Package media prepares images for attaching to a post.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/nfnt/resize"

	"github.com/socialdistribution/courier/classify"
)

// MaxSide is the longest side, in pixels, of an encoded image.
const MaxSide = 1920

// maxInput bounds how much of an image file is read.
const maxInput = 32 << 20

// maxPixels bounds the decoded size of an image that needs scaling.
const maxPixels = 50_000_000

var ErrTooLarge = errors.New("image too large")

// Encode reads an image and returns it base64 encoded. Images wider or taller
// than MaxSide are scaled down to fit, keeping their aspect ratio. GIFs are
// never rescaled, so animations survive.
func Encode(r io.Reader) (classify.Image, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxInput+1))
	if err != nil {
		return classify.Image{}, err
	}
	if len(buf) > maxInput {
		return classify.Image{}, ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return classify.Image{}, fmt.Errorf("decode image: %w", err)
	}
	mediaType := "image/" + format
	if format == "gif" || (cfg.Width <= MaxSide && cfg.Height <= MaxSide) {
		return encoded(mediaType, buf), nil
	}

	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return classify.Image{}, ErrTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return classify.Image{}, fmt.Errorf("decode image: %w", err)
	}
	img = resize.Thumbnail(MaxSide, MaxSide, img, resize.Lanczos3)

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, img, &jpeg.Options{Quality: 85})
	default:
		// no encoders for webp or bmp; png is lossless
		mediaType = "image/png"
		err = png.Encode(&out, img)
	}
	if err != nil {
		return classify.Image{}, fmt.Errorf("encode %s: %w", mediaType, err)
	}
	return encoded(mediaType, out.Bytes()), nil
}

// EncodeFile encodes the image at path.
func EncodeFile(path string) (classify.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return classify.Image{}, err
	}
	defer f.Close()
	img, err := Encode(f)
	if err != nil {
		return classify.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func encoded(mediaType string, b []byte) classify.Image {
	return classify.Image{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(b),
	}
}
