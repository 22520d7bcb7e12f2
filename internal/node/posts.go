package node

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slices"

	"github.com/socialdistribution/courier/internal/algorithms"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/identity"
	"github.com/socialdistribution/courier/internal/snowflake"
	"github.com/socialdistribution/courier/internal/to"
	"github.com/socialdistribution/courier/models"
)

func sortByID(authors []models.Author) {
	slices.SortFunc(authors, func(a, b models.Author) int {
		return strings.Compare(a.ID, b.ID)
	})
}

// newest returns the posts for which keep is true, newest first.
// It must be called with n.mu held.
func (n *Node) newest(keep func(*models.Post) bool) []models.Post {
	var posts []models.Post
	for i := len(n.order) - 1; i >= 0; i-- {
		if p := n.posts[n.order[i]]; keep(p) {
			posts = append(posts, *p)
		}
	}
	return posts
}

// isFollower must be called with n.mu held.
func (n *Node) isFollower(target, follower string) bool {
	return algorithms.Any(n.followers[identity.ID(target)], func(a models.Author) bool {
		return identity.Same(a.ID, follower)
	})
}

func (n *Node) listPosts(w http.ResponseWriter, r *http.Request) error {
	author := chi.URLParam(r, "author")
	viewer, _ := n.authenticate(r)

	n.mu.Lock()
	if _, err := n.author(author); err != nil {
		n.mu.Unlock()
		return err
	}
	own := viewer != nil && identity.Same(viewer.author.ID, author)
	posts := n.newest(func(p *models.Post) bool {
		return identity.Same(p.Author.ID, author) && (own || p.Visibility == models.Public)
	})
	n.mu.Unlock()
	return page(w, r, "posts", posts)
}

func (n *Node) publicPosts(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	posts := n.newest(func(p *models.Post) bool { return p.Visibility == models.Public })
	n.mu.Unlock()
	return page(w, r, "posts", posts)
}

func (n *Node) followingPosts(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.owner(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	posts := n.newest(func(p *models.Post) bool {
		return p.Visibility != models.Unlisted && n.isFollower(p.Author.ID, acct.author.ID)
	})
	n.mu.Unlock()
	return page(w, r, "posts", posts)
}

// post must be called with n.mu held.
func (n *Node) post(r *http.Request) (*models.Post, error) {
	p, ok := n.posts[identity.ID(chi.URLParam(r, "post"))]
	if !ok || !identity.Same(p.Author.ID, chi.URLParam(r, "author")) {
		return nil, httpx.Error(http.StatusNotFound, errors.New("post not found"))
	}
	return p, nil
}

func (n *Node) showPost(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	p, err := n.post(r)
	var post models.Post
	if err == nil {
		post = *p
	}
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return to.JSON(w, post)
}

func decodePost(r *http.Request) (*models.Post, error) {
	var post models.Post
	if err := httpx.Params(r, &post); err != nil {
		return nil, err
	}
	if post.Visibility == "" {
		post.Visibility = models.Public
	}
	if err := post.Validate(); err != nil {
		return nil, httpx.Error(http.StatusBadRequest, err)
	}
	return &post, nil
}

func (n *Node) createPost(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.owner(r)
	if err != nil {
		return err
	}
	post, err := decodePost(r)
	if err != nil {
		return err
	}
	id := snowflake.Now()
	post.Type = "post"
	post.ID = acct.author.ID + "/posts/" + id.String()
	post.Author = acct.author
	post.Comments = post.ID + "/comments"
	post.Published = id.ToTime().UTC()
	post.Count = 0
	if post.Origin == "" {
		post.Origin = post.ID
	}
	if post.Source == "" {
		post.Source = post.Origin
	}

	n.mu.Lock()
	n.posts[id.String()] = post
	n.order = append(n.order, id.String())
	stored := *post
	n.mu.Unlock()
	return to.Status(w, http.StatusCreated, stored)
}

func (n *Node) updatePost(w http.ResponseWriter, r *http.Request) error {
	if _, err := n.owner(r); err != nil {
		return err
	}
	update, err := decodePost(r)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	p, err := n.post(r)
	if err != nil {
		return err
	}
	p.Title = update.Title
	p.Description = update.Description
	p.ContentType = update.ContentType
	p.Content = update.Content
	p.Visibility = update.Visibility
	return to.JSON(w, *p)
}

func (n *Node) deletePost(w http.ResponseWriter, r *http.Request) error {
	if _, err := n.owner(r); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	p, err := n.post(r)
	if err != nil {
		return err
	}
	id := p.Ref()
	delete(n.posts, id)
	delete(n.comments, id)
	delete(n.likes, id)
	n.order = algorithms.Filter(n.order, func(s string) bool { return s != id })
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (n *Node) listComments(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	p, err := n.post(r)
	var comments []models.Comment
	if err == nil {
		all := n.comments[p.Ref()]
		for i := len(all) - 1; i >= 0; i-- {
			comments = append(comments, all[i])
		}
	}
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return page(w, r, "comments", comments)
}

func (n *Node) createComment(w http.ResponseWriter, r *http.Request) error {
	acct, err := n.authenticate(r)
	if err != nil {
		return err
	}
	var comment models.Comment
	if err := httpx.Params(r, &comment); err != nil {
		return err
	}
	if strings.TrimSpace(comment.Comment) == "" {
		return httpx.Error(http.StatusBadRequest, errors.New("comment is empty"))
	}
	if comment.ContentType == "" {
		comment.ContentType = models.ContentTypePlain
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	p, err := n.post(r)
	if err != nil {
		return err
	}
	id := snowflake.Now()
	comment.Type = "comment"
	comment.ID = fmt.Sprintf("%s/comments/%s", p.ID, id)
	comment.Author = acct.author
	comment.Published = id.ToTime().UTC()
	n.comments[p.Ref()] = append(n.comments[p.Ref()], comment)
	p.Count = len(n.comments[p.Ref()])
	return to.Status(w, http.StatusCreated, comment)
}

func (n *Node) listLikes(w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	p, err := n.post(r)
	var likes []models.Like
	if err == nil {
		likes = append(likes, n.likes[p.Ref()]...)
	}
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return to.JSON(w, collection{Type: "likes", Items: likes, Count: len(likes)})
}
