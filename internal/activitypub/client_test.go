package activitypub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/activities"
	"github.com/socialdistribution/courier/internal/httpx"
	"github.com/socialdistribution/courier/internal/node"
	"github.com/socialdistribution/courier/models"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startNode(t *testing.T) *node.Node {
	srv := httptest.NewUnstartedServer(nil)
	n := node.New("http://"+srv.Listener.Addr().String()+"/api", quiet())
	srv.Config.Handler = n.Handler()
	srv.Start()
	t.Cleanup(srv.Close)
	return n
}

// login returns a client logged in as a new author called name.
func login(t *testing.T, n *node.Node, name string) *Client {
	t.Helper()
	n.AddAuthor(name, "secret", name)
	session, err := Anonymous(n.Base(), WithLogger(quiet())).Login(context.Background(), name, "secret")
	require.NoError(t, err)
	return NewClient(session, WithLogger(quiet()))
}

func TestLogin(t *testing.T) {
	require := require.New(t)

	n := startNode(t)
	alice := n.AddAuthor("alice", "secret", "Alice")

	c := Anonymous(n.Base(), WithLogger(quiet()))
	session, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(err)
	require.Equal(alice, session.Author)
	require.Equal(n.Base(), session.Host)
	require.NotEmpty(session.Authorization())

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Equal(http.StatusUnauthorized, httpx.StatusCode(err))
}

func TestPostsAndComments(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	n := startNode(t)
	alice, bob := login(t, n, "alice"), login(t, n, "bob")
	me := alice.Session().Author

	var posts []*models.Post
	for _, title := range []string{"one", "two", "three"} {
		p, err := alice.CreatePost(ctx, me.ID, &models.Post{
			Title: title, Description: title, ContentType: models.ContentTypePlain, Content: title, Visibility: models.Public,
		})
		require.NoError(err)
		posts = append(posts, p)
	}

	page, err := Posts(bob, me.ID)(ctx, 1, 2)
	require.NoError(err)
	require.Len(page.Items, 2)
	require.Equal(3, *page.Total)
	require.Equal("three", page.Items[0].Title)

	page, err = PublicPosts(bob, bob.Session().Author.ID)(ctx, 2, 2)
	require.NoError(err)
	require.Len(page.Items, 1)

	updated, err := alice.UpdatePost(ctx, me.ID, posts[0].ID, &models.Post{
		Title: "uno", Description: "one", ContentType: models.ContentTypeMarkdown, Content: "*one*", Visibility: models.Public,
	})
	require.NoError(err)
	require.Equal("uno", updated.Title)
	require.Equal(posts[0].ID, updated.ID)

	got, err := bob.Post(ctx, me.ID, posts[0].ID)
	require.NoError(err)
	require.Equal(models.ContentTypeMarkdown, got.ContentType)

	err = bob.DeletePost(ctx, me.ID, posts[1].ID)
	require.Equal(http.StatusForbidden, httpx.StatusCode(err))
	require.NoError(alice.DeletePost(ctx, me.ID, posts[1].ID))

	comment, err := bob.CreateComment(ctx, posts[2], &models.Comment{Comment: "first", ContentType: models.ContentTypePlain})
	require.NoError(err)
	require.Equal(bob.Session().Author.ID, comment.Author.ID)

	comments, err := Comments(alice, posts[2])(ctx, 1, 5)
	require.NoError(err)
	require.Len(comments.Items, 1)
	require.Equal("first", comments.Items[0].Comment)
}

func TestInbox(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	n := startNode(t)
	alice, bob := login(t, n, "alice"), login(t, n, "bob")
	a, b := alice.Session().Author, bob.Session().Author

	post, err := alice.CreatePost(ctx, a.ID, &models.Post{
		Title: "t", Description: "d", ContentType: models.ContentTypePlain, Content: "c", Visibility: models.Public,
	})
	require.NoError(err)

	require.NoError(bob.PostInbox(ctx, activities.Wrap(a, activities.Like(b, post.ID))))
	err = bob.PostInbox(ctx, activities.Wrap(a, activities.Like(b, post.ID)))
	require.Equal(http.StatusBadRequest, httpx.StatusCode(err))
	require.NoError(bob.PostInbox(ctx, activities.Wrap(a, activities.Follow(b, a))))
	require.NoError(bob.PostInbox(ctx, activities.Wrap(a, activities.Share(*post))))

	likes, err := bob.Likes(ctx, post)
	require.NoError(err)
	require.Len(likes, 1)
	require.True(likes[0].Author.Is(&b))

	page, err := Inbox(alice, a.ID)(ctx, 1, 10)
	require.NoError(err)
	require.Equal(3, *page.Total)
	kinds := make([]string, 0, len(page.Items))
	for _, it := range page.Items {
		kinds = append(kinds, it.Kind())
	}
	require.Equal([]string{"post", "follow", "like"}, kinds)

	_, err = Inbox(bob, a.ID)(ctx, 1, 10)
	require.Equal(http.StatusForbidden, httpx.StatusCode(err))

	require.NoError(alice.ClearInbox(ctx, a.ID))
	require.NoError(alice.ClearInbox(ctx, a.ID))
	page, err = Inbox(alice, a.ID)(ctx, 1, 10)
	require.NoError(err)
	require.Empty(page.Items)
}

func TestFollowers(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	n := startNode(t)
	alice, bob := login(t, n, "alice"), login(t, n, "bob")
	a, b := alice.Session().Author, bob.Session().Author

	ok, err := bob.IsFollower(ctx, a.ID, b.ID)
	require.NoError(err)
	require.False(ok)

	require.NoError(alice.AcceptFollower(ctx, a.ID, b.ID))
	err = alice.AcceptFollower(ctx, a.ID, b.ID)
	require.Equal(http.StatusConflict, httpx.StatusCode(err))

	ok, err = bob.IsFollower(ctx, a.ID, b.ID)
	require.NoError(err)
	require.True(ok)

	followers, err := bob.Followers(ctx, a.ID)
	require.NoError(err)
	require.Equal([]models.Author{b}, followers)

	require.NoError(bob.RemoveFollower(ctx, a.ID, b.ID))
	require.NoError(bob.RemoveFollower(ctx, a.ID, b.ID))
	ok, err = bob.IsFollower(ctx, a.ID, b.ID)
	require.NoError(err)
	require.False(ok)
}

func TestAuthors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	n := startNode(t)
	alice := login(t, n, "alice")
	login(t, n, "bob")

	page, err := Authors(alice)(ctx, 1, 10)
	require.NoError(err)
	require.Len(page.Items, 2)

	me := alice.Session().Author
	got, err := alice.Author(ctx, me.ID)
	require.NoError(err)
	require.Equal(me, *got)

	u, err := url.Parse(n.Base())
	require.NoError(err)
	got, err = alice.Author(ctx, "bob@"+u.Host)
	require.NoError(err)
	require.Equal("bob", got.DisplayName)

	_, err = alice.Author(ctx, "carol@"+u.Host)
	require.Error(err)
}

func TestCommentsUnderCommentsKey(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("2", r.URL.Query().Get("page"))
		require.Equal("5", r.URL.Query().Get("size"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"type":"comments","comments":[{"comment":"hi","author":{"id":"x"}}]}`)
	}))
	defer srv.Close()

	c := Anonymous(srv.URL, WithLogger(quiet()))
	post := &models.Post{ID: srv.URL + "/authors/1/posts/2", Comments: srv.URL + "/authors/1/posts/2/comments"}
	page, err := Comments(c, post)(context.Background(), 2, 5)
	require.NoError(err)
	require.Len(page.Items, 1)
	require.Equal("hi", page.Items[0].Comment)
	require.Nil(page.Total)
}
