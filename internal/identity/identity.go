// Package identity normalizes author, post and comment references.
//
// Remote nodes hand out references in several shapes: a bare id, a full
// locator, a locator with a trailing slash or a query string. Everything that
// builds a path or compares two references goes through ID first.
package identity

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ID returns the bare identifier of ref: the last path segment of a locator,
// or ref unchanged if it is already bare. ID never fails.
func ID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Same reports whether a and b refer to the same object.
func Same(a, b string) bool {
	return ID(a) == ID(b)
}

// Host returns the lower case, IDNA normalised host of the locator ref.
// Bare identifiers have no host and return "".
func Host(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return ""
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return strings.ToLower(u.Hostname())
	}
	if port := u.Port(); port != "" {
		return host + ":" + port
	}
	return host
}

// SplitPost splits a post locator of the form .../authors/{a}/posts/{p} into
// the author's locator and the bare post id. ok is false if ref does not name
// a post.
func SplitPost(ref string) (author, post string, ok bool) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, "/posts/")
	if i < 0 || !strings.Contains(ref[:i], "authors/") {
		return "", "", false
	}
	post = ID(ref[i+len("/posts/"):])
	if post == "" {
		return "", "", false
	}
	return ref[:i], post, true
}
