// package mime contains helper functions for media types.
package mime

import (
	"errors"
	"net/http"
	"strings"
)

// MediaType returns the media type of the request, without parameters.
func MediaType(req *http.Request) string {
	typ := Base(req.Header.Get("Content-Type"))
	if typ == "" {
		typ = "application/octet-stream"
	}
	return typ
}

// Base strips any parameters from a media type and lower cases it.
// Base("Image/PNG; charset=binary") returns "image/png".
func Base(typ string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(typ, ";")[0]))
}

// IsImage reports whether typ is an image media type.
func IsImage(typ string) bool {
	return strings.HasPrefix(Base(typ), "image/") && len(Base(typ)) > len("image/")
}

var ErrNotDataURL = errors.New("not a base64 data url")

// ParseDataURL splits a base64 data url, data:<type>;base64,<payload>, into its
// media type and base64 payload. The payload is not decoded.
func ParseDataURL(s string) (typ, payload string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", ErrNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrNotDataURL
	}
	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return "", "", ErrNotDataURL
	}
	return Base(params[0]), payload, nil
}

// DataURL is the inverse of ParseDataURL.
func DataURL(typ, payload string) string {
	return "data:" + typ + ";base64," + payload
}
