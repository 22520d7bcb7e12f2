package node

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/internal/to"
	"github.com/socialdistribution/courier/models"
)

// follower returns the follower named in the request path. Followers are
// addressed by their full, path escaped, id.
func follower(r *http.Request) (string, error) {
	ref, err := url.PathUnescape(chi.URLParam(r, "follower"))
	if err != nil {
		return "", httpx.Error(http.StatusBadRequest, err)
	}
	return ref, nil
}

func (n *Node) listFollowers(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	acct, err := n.author(chi.URLParam(r, "author"))
	var followers []models.Author
	if err == nil {
		followers = append(followers, n.followers[acct.author.Ref()]...)
	}
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return to.JSON(w, collection{Type: "followers", Items: followers, Count: len(followers)})
}

func (n *Node) showFollower(w http.ResponseWriter, r *http.Request) error {
	ref, err := follower(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	acct, err := n.author(chi.URLParam(r, "author"))
	if err != nil {
		return err
	}
	for _, f := range n.followers[acct.author.Ref()] {
		if identity.Same(f.ID, ref) {
			return to.JSON(w, f)
		}
	}
	return httpx.Error(http.StatusNotFound, errors.New("not a follower"))
}

// addFollower accepts a follow request. Only the followed author may do so.
func (n *Node) addFollower(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.owner(r)
	if err != nil {
		return err
	}
	ref, err := follower(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	target := acct.author.Ref()
	if n.isFollower(target, ref) {
		return httpx.Error(http.StatusConflict, errors.New("already a follower"))
	}
	f := models.Author{ID: ref}
	if local, err := n.author(ref); err == nil {
		f = local.author
	} else if pending, ok := n.requester(target, ref); ok {
		f = pending
	}
	n.followers[target] = append(n.followers[target], f)
	// the request has been answered
	n.inboxes[target] = algorithms.Filter(n.inboxes[target], func(raw map[string]any) bool {
		return !isFollowFrom(raw, ref)
	})
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// removeFollower removes a follower. Either side of the relationship may do
// so.
func (n *Node) removeFollower(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.authenticate(r)
	if err != nil {
		return err
	}
	ref, err := follower(r)
	if err != nil {
		return err
	}
	target := chi.URLParam(r, "author")
	if !identity.Same(acct.author.ID, target) && !identity.Same(acct.author.ID, ref) {
		return httpx.Error(http.StatusForbidden, errors.New("not your relationship"))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.author(target); err != nil {
		return err
	}
	if !n.isFollower(target, ref) {
		return httpx.Error(http.StatusNotFound, errors.New("not a follower"))
	}
	n.removeFollowerLocked(target, ref)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (n *Node) removeFollowerLocked(target, ref string) {
	target = identity.ID(target)
	n.followers[target] = algorithms.Filter(n.followers[target], func(a models.Author) bool {
		return !identity.Same(a.ID, ref)
	})
}
