package node

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/models"
)

type inboxBody struct {
	Type   string           `json:"type"`
	Author string           `json:"author"`
	Items  []map[string]any `json:"items"`
}

func (n *Node) showInbox(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.owner(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	all := n.inboxes[acct.author.Ref()]
	// newest first
	items := make([]map[string]any, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		items = append(items, all[i])
	}
	n.mu.Unlock()
	return page(w, r, activities.INBOX, items)
}

func (n *Node) clearInbox(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.owner(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.inboxes, acct.author.Ref())
	n.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// postInbox accepts either an inbox wrapper or a single bare item.
func (n *Node) postInbox(w http.ResponseWriter, r *http.Request) error {
	if _, err := n.authenticate(r); err != nil {
		return err
	}
	var body map[string]any
	if err := httpx.Params(r, &body); err != nil {
		return err
	}
	raws := []map[string]any{body}
	if typ, _ := body["type"].(string); strings.EqualFold(typ, activities.INBOX) {
		var wrapped inboxBody
		if err := remarshal(body, &wrapped); err != nil {
			return httpx.Error(http.StatusBadRequest, err)
		}
		raws = wrapped.Items
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	target, err := n.author(chi.URLParam(r, "author"))
	if err != nil {
		return err
	}
	for _, raw := range raws {
		if err := n.deliver(target, raw); err != nil {
			return err
		}
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

// deliver applies a single inbox item addressed to target.
// It must be called with n.mu held.
func (n *Node) deliver(target *account, raw map[string]any) error {
	inbox := target.author.Ref()
	typ, _ := raw["type"].(string)
	switch strings.ToLower(typ) {
	case "like":
		like, ok := activities.DecodeItem(raw).(*activities.LikeItem)
		if !ok {
			return httpx.Error(http.StatusBadRequest, errors.New("malformed like"))
		}
		post := identity.ID(like.Object)
		if algorithms.Any(n.likes[post], func(l models.Like) bool { return l.Author.Is(&like.Author) }) {
			return httpx.Error(http.StatusBadRequest, fmt.Errorf("%s already liked %s", like.Author.String(), like.Object))
		}
		if _, local := n.posts[post]; local {
			n.likes[post] = append(n.likes[post], models.Like{
				Type:      "Like",
				Summary:   like.Summary,
				Author:    like.Author,
				Object:    like.Object,
				Published: time.Now().UTC(),
			})
		}
	case "follow":
		follow, ok := activities.DecodeItem(raw).(*activities.FollowItem)
		if !ok {
			return httpx.Error(http.StatusBadRequest, errors.New("malformed follow"))
		}
		if n.isFollower(inbox, follow.Actor.ID) {
			return httpx.Error(http.StatusBadRequest, fmt.Errorf("%s already follows %s", follow.Actor.String(), target.author.String()))
		}
		if _, ok := n.requester(inbox, follow.Actor.ID); ok {
			return httpx.Error(http.StatusConflict, errors.New("follow request already sent"))
		}
	case "unfollow":
		if actor, ok := raw["actor"].(map[string]any); ok {
			if id, ok := actor["id"].(string); ok {
				n.removeFollowerLocked(inbox, id)
				n.inboxes[inbox] = algorithms.Filter(n.inboxes[inbox], func(raw map[string]any) bool {
					return !isFollowFrom(raw, id)
				})
			}
		}
		return nil
	}
	n.inboxes[inbox] = append(n.inboxes[inbox], raw)
	return nil
}

// requester returns the author of a pending follow request from ref in the
// inbox of target. It must be called with n.mu held.
func (n *Node) requester(target, ref string) (models.Author, bool) {
	for _, raw := range n.inboxes[identity.ID(target)] {
		if !isFollowFrom(raw, ref) {
			continue
		}
		if follow, ok := activities.DecodeItem(raw).(*activities.FollowItem); ok {
			return follow.Actor, true
		}
	}
	return models.Author{}, false
}

func isFollowFrom(raw map[string]any, ref string) bool {
	typ, _ := raw["type"].(string)
	if !strings.EqualFold(typ, "follow") {
		return false
	}
	actor, _ := raw["actor"].(map[string]any)
	id, _ := actor["id"].(string)
	return id != "" && identity.Same(id, ref)
}

func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
