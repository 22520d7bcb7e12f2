// Package webfinger resolves name@host handles to author locators.
package webfinger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"
)

// Rel is the relation of the link to the author's API locator.
const Rel = "self"

type Webfinger struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases"`
	Links   []Link   `json:"links"`
}

// Author returns the locator of the author the document describes.
func (wf *Webfinger) Author() (string, error) {
	for _, link := range wf.Links {
		if link.Rel == Rel && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("%s: no %q link", wf.Subject, Rel)
}

type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type Acct struct {
	User string
	Host string
}

func (a *Acct) String() string {
	return "acct:" + a.User + "@" + a.Host
}

// Webfinger returns the URL of the webfinger resource for this Acct.
func (a *Acct) Webfinger(scheme string) string {
	return scheme + "://" + a.Host + "/.well-known/webfinger?resource=" + url.QueryEscape(a.String())
}

// Fetch fetches the webfinger document for a over scheme, through rt.
func (a *Acct) Fetch(ctx context.Context, rt http.RoundTripper, scheme string) (*Webfinger, error) {
	var webfinger Webfinger
	err := requests.URL(a.Webfinger(scheme)).
		Transport(rt).
		Accept("application/jrd+json, application/json").
		ToJSON(&webfinger).
		Fetch(ctx)
	return &webfinger, err
}

// IsHandle reports whether s looks like a handle rather than a locator or
// a bare id.
func IsHandle(s string) bool {
	return !strings.Contains(s, "://") && strings.Contains(strings.TrimPrefix(s, "@"), "@")
}

func Parse(query string) (*Acct, error) {
	// Remove the leading @, if there's one.
	query = strings.TrimPrefix(query, "@")
	query = strings.TrimPrefix(query, "acct:")

	// In case the handle has been URL encoded
	query, err := url.QueryUnescape(query)
	if err != nil {
		return nil, err
	}
	user, host, ok := strings.Cut(query, "@")
	if !ok || user == "" || host == "" {
		return nil, fmt.Errorf("invalid acct: %q", query)
	}
	return &Acct{
		User: user,
		Host: host,
	}, nil
}
