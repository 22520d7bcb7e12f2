// Package node is an in-memory node serving the author, post, follower and
// inbox API. It holds nothing on disk and is meant for local development and
// tests.
package node

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/internal/snowflake"
	"github.com/socialdistribution/courier/internal/to"
	"github.com/socialdistribution/courier/models"
)

const (
	defaultSize = 5
	maxSize     = 1000
)

type account struct {
	username string
	password []byte // bcrypt
	author   models.Author
}

// Node is a single node. The zero value is not usable, call New.
type Node struct {
	base   string
	logger *slog.Logger

	mu        sync.Mutex
	accounts  map[string]*account // by bare author id
	posts     map[string]*models.Post
	order     []string // post ids, oldest first
	comments  map[string][]models.Comment
	likes     map[string][]models.Like
	followers map[string][]models.Author
	inboxes   map[string][]map[string]any
}

// New returns an empty node whose API lives at base, eg. http://localhost:8000/api.
func New(base string, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		base:      strings.TrimRight(base, "/"),
		logger:    logger.With(slog.String("node", base)),
		accounts:  make(map[string]*account),
		posts:     make(map[string]*models.Post),
		comments:  make(map[string][]models.Comment),
		likes:     make(map[string][]models.Like),
		followers: make(map[string][]models.Author),
		inboxes:   make(map[string][]map[string]any),
	}
}

// Log implements httpx.Env.
func (n *Node) Log() *slog.Logger { return n.logger }

// Base returns the locator of the node's API.
func (n *Node) Base() string { return n.base }

// AddAuthor creates an author who logs in with username and password.
func (n *Node) AddAuthor(username, password, displayName string) models.Author {
	// every request is checked against the hash
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		// only fails for passwords over 72 bytes
		panic(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	id := snowflake.Now().String()
	author := models.Author{
		Type:        "author",
		ID:          n.base + "/authors/" + id,
		Host:        n.base + "/",
		DisplayName: displayName,
		URL:         n.base + "/authors/" + id,
	}
	n.accounts[id] = &account{username: username, password: hash, author: author}
	return author
}

// Handler returns the node's routes, mounted below /api.
func (n *Node) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	h := func(fn func(*Node, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
		return httpx.HandlerFunc(n, fn)
	}

	r.Get("/.well-known/webfinger", h((*Node).webfinger))
	r.Route("/api", func(r chi.Router) {
		r.Get("/auth", h((*Node).login))
		r.Get("/auth/", h((*Node).login))
		r.Route("/authors", func(r chi.Router) {
			r.Get("/", h((*Node).listAuthors))
			r.Route("/{author}", func(r chi.Router) {
				r.Get("/", h((*Node).showAuthor))
				r.Route("/posts", func(r chi.Router) {
					r.Get("/", h((*Node).listPosts))
					r.Post("/", h((*Node).createPost))
					r.Get("/public", h((*Node).publicPosts))
					r.Get("/following", h((*Node).followingPosts))
					r.Route("/{post}", func(r chi.Router) {
						r.Get("/", h((*Node).showPost))
						r.Put("/", h((*Node).updatePost))
						r.Delete("/", h((*Node).deletePost))
						r.Get("/comments", h((*Node).listComments))
						r.Post("/comments", h((*Node).createComment))
						r.Get("/likes", h((*Node).listLikes))
					})
				})
				r.Route("/followers", func(r chi.Router) {
					r.Get("/", h((*Node).listFollowers))
					r.Get("/{follower}", h((*Node).showFollower))
					r.Put("/{follower}", h((*Node).addFollower))
					r.Delete("/{follower}", h((*Node).removeFollower))
				})
				r.Route("/inbox", func(r chi.Router) {
					r.Get("/", h((*Node).showInbox))
					r.Post("/", h((*Node).postInbox))
					r.Delete("/", h((*Node).clearInbox))
				})
			})
		})
	})
	return r
}

var errUnauthorized = httpx.Error(http.StatusUnauthorized, errors.New("unauthorized"))

// authenticate returns the account the request's basic credentials belong to.
func (n *Node) authenticate(r *http.Request) (*account, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, errUnauthorized
	}
	n.mu.Lock()
	acct := n.findUser(user)
	n.mu.Unlock()
	if acct == nil || bcrypt.CompareHashAndPassword(acct.password, []byte(pass)) != nil {
		return nil, errUnauthorized
	}
	return acct, nil
}

// findUser must be called with n.mu held.
func (n *Node) findUser(username string) *account {
	for _, acct := range n.accounts {
		if acct.username == username {
			return acct
		}
	}
	return nil
}

// owner authenticates the request as the author named in its path.
func (n *Node) owner(r *http.Request) (*account, error) {
	acct, err := n.authenticate(r)
	if err != nil {
		return nil, err
	}
	if !identity.Same(acct.author.ID, chi.URLParam(r, "author")) {
		return nil, httpx.Error(http.StatusForbidden, errors.New("not your resource"))
	}
	return acct, nil
}

// author must be called with n.mu held.
func (n *Node) author(ref string) (*account, error) {
	acct, ok := n.accounts[identity.ID(ref)]
	if !ok {
		return nil, httpx.Error(http.StatusNotFound, errors.New("author not found"))
	}
	return acct, nil
}

func (n *Node) login(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.authenticate(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="courier"`)
		return err
	}
	return to.JSON(w, acct.author)
}

type pageParams struct {
	Page int `schema:"page"`
	Size int `schema:"size"`
}

type collection struct {
	Type   string `json:"type"`
	Author string `json:"author,omitempty"`
	Items  any    `json:"items"`
	Count  int    `json:"count"`
}

// page writes the window of all selected by the request's page and size
// parameters.
func page[T any](w http.ResponseWriter, r *http.Request, typ string, all []T) error {
	var params pageParams
	if err := httpx.Query(r, &params); err != nil {
		return err
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Size < 1 {
		params.Size = defaultSize
	}
	if params.Size > maxSize {
		params.Size = maxSize
	}
	return to.JSON(w, collection{
		Type:  typ,
		Items: algorithms.Window(all, params.Page, params.Size),
		Count: len(all),
	})
}

func (n *Node) listAuthors(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	authors := make([]models.Author, 0, len(n.accounts))
	for _, acct := range n.accounts {
		authors = append(authors, acct.author)
	}
	n.mu.Unlock()
	sortByID(authors)
	return page(w, r, "authors", authors)
}

func (n *Node) showAuthor(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	acct, err := n.author(chi.URLParam(r, "author"))
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return to.JSON(w, acct.author)
}
