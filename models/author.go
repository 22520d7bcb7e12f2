package models

import (
	"github.com/socialdistribution/courier/internal/identity"
)

// An Author is a person who publishes posts, comments and likes on some node.
// The ID is an opaque reference; compare Authors with Ref, never with ID.
type Author struct {
	Type         string `json:"type,omitempty"`
	ID           string `json:"id"`
	Host         string `json:"host,omitempty"`
	DisplayName  string `json:"displayName"`
	URL          string `json:"url,omitempty"`
	GitHub       string `json:"github,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Ref returns the bare identifier of the author.
func (a *Author) Ref() string {
	return identity.ID(a.ID)
}

// Locator returns the most specific reference known for the author.
func (a *Author) Locator() string {
	if a.URL != "" {
		return a.URL
	}
	return a.ID
}

// Is reports whether a and other refer to the same author.
func (a *Author) Is(other *Author) bool {
	if a == nil || other == nil {
		return false
	}
	return identity.Same(a.ID, other.ID)
}

// String returns the display name, falling back to the bare id.
func (a *Author) String() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Ref()
}
