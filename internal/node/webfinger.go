package node

import (
	"errors"
	"net/http"

	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/to"
	"github.com/socialdistribution/courier/internal/webfinger"
)

func (n *Node) webfinger(w http.ResponseWriter, r *http.Request) error {
	acct, err := webfinger.Parse(r.URL.Query().Get("resource"))
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}

	// the handle's host is not checked, the node answers for whatever name
	// it was reached by
	n.mu.Lock()
	found := n.findUser(acct.User)
	n.mu.Unlock()
	if found == nil {
		return httpx.Error(http.StatusNotFound, errors.New("no such author"))
	}

	return to.JSON(w, &webfinger.Webfinger{
		Subject: acct.String(),
		Aliases: []string{found.author.ID},
		Links: []webfinger.Link{{
			Rel:  webfinger.Rel,
			Type: "application/json",
			Href: found.author.ID,
		}},
	})
}
