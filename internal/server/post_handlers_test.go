package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	author, token := env.login(t, "author")

	t.Run("thread with an image", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{"content": "**hello** world"},
			upload{name: "pic.png", content: testutil.TinyPNG(t, 64, 32)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		view := decode[models.PostView](t, resp)
		assert.Equal(t, "**hello** world", view.Content)
		assert.Contains(t, view.ContentHTML, "<strong>hello</strong>")
		assert.Equal(t, author.ID, view.Author.ID)
		assert.Nil(t, view.ThreadID)
		require.Len(t, view.Media, 1)
		assert.Equal(t, "pic.png", view.Media[0].Name)
		assert.Equal(t, "image/png", view.Media[0].MimeType)
		assert.NotEmpty(t, view.Media[0].PreviewURL)

		// the stored blob is served back
		mediaResp, err := env.app.Test(httptest.NewRequest(http.MethodGet, view.Media[0].URL, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, mediaResp.StatusCode)
	})

	thread := testutil.CreatePost(t, env.db, author.ID, "thread", nil)

	t.Run("reply", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{
			"content": "a reply",
			"thread":  strconv.Itoa(int(thread.ID)),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		view := decode[models.PostView](t, resp)
		require.NotNil(t, view.ThreadID)
		assert.Equal(t, thread.ID, *view.ThreadID)

		t.Run("replying to a reply is rejected with 501", func(t *testing.T) {
			resp := env.createPost(t, token, map[string]string{
				"content": "nested",
				"thread":  strconv.Itoa(int(view.ID)),
			})
			assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, models.CodeConflict, body.Code)
		})
	})

	t.Run("missing thread", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{"content": "x", "thread": "9999"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid thread id", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{"content": "x", "thread": "abc"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("empty content", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{"content": "  <b></b> "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unsupported file", func(t *testing.T) {
		resp := env.createPost(t, token, map[string]string{"content": "x"},
			upload{name: "notes.txt", content: []byte("plain text")})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("requires auth", func(t *testing.T) {
		resp := env.createPost(t, "", map[string]string{"content": "x"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("json body is rejected", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/post", token, map[string]string{"content": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	author, authorToken := env.login(t, "author")
	_, otherToken := env.login(t, "other")

	post := testutil.CreatePost(t, env.db, author.ID, "to delete", nil)
	testutil.CreateVote(t, env.db, post.ID, author.ID, models.VoteUp)
	path := fmt.Sprintf("/api/post?postId=%d", post.ID)

	resp := env.do(t, http.MethodDelete, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, path, authorToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(0), testutil.Count(t, env.db, &models.Vote{}, "post_id = ?", post.ID))

	resp = env.do(t, http.MethodDelete, path, authorToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/post?postId=abc", authorToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid post ID", body.Error)
}

func TestGetPosts(t *testing.T) {
	env := newTestEnv(t)
	author, token := env.login(t, "author")

	base := time.Now().Add(-time.Hour)
	for i := range 15 {
		testutil.CreatePostAt(t, env.db, author.ID, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	t.Run("second page", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/post?page=2&limit=10&sortBy=created_at&sortDir=desc", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		posts := decode[[]models.PostView](t, resp)
		require.Len(t, posts, 5)
		for i, p := range posts {
			assert.Equal(t, fmt.Sprintf("post %d", 4-i), p.Content)
			assert.Nil(t, p.MyVote)
		}
	})

	t.Run("viewer sees their vote", func(t *testing.T) {
		var first models.Post
		require.NoError(t, env.db.Where("content = ?", "post 14").First(&first).Error)
		testutil.CreateVote(t, env.db, first.ID, author.ID, models.VoteDown)

		resp := env.do(t, http.MethodGet, "/api/post?limit=1", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		posts := decode[[]models.PostView](t, resp)
		require.Len(t, posts, 1)
		require.NotNil(t, posts[0].MyVote)
		assert.Equal(t, models.VoteDown, *posts[0].MyVote)
		assert.Equal(t, int64(-1), posts[0].Reputation)
	})

	for _, query := range []string{
		"sortBy=title",
		"sortDir=sideways",
		"sortBy=created_at%3BDROP%20TABLE%20posts",
		"page=0",
		"page=abc",
		"limit=101",
		"limit=0",
	} {
		t.Run("rejects "+query, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/post?"+query, "", nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetPostAndThreads(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.login(t, "author")
	voter, voterToken := env.login(t, "voter")

	thread := testutil.CreatePost(t, env.db, author.ID, "thread", nil)
	low := testutil.CreatePost(t, env.db, author.ID, "low", &thread.ID)
	high := testutil.CreatePost(t, env.db, voter.ID, "high", &thread.ID)
	testutil.CreateVote(t, env.db, high.ID, voter.ID, models.VoteUp)
	testutil.CreateVote(t, env.db, low.ID, voter.ID, models.VoteDown)

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/post/%d", thread.ID), voterToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[models.PostView](t, resp)
	assert.Equal(t, int64(2), view.ReplyCount)
	require.NotNil(t, view.MyVote)
	assert.Equal(t, models.VoteNone, *view.MyVote)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/post/%d/threads", thread.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	replies := decode[[]models.PostView](t, resp)
	require.Len(t, replies, 2)
	// reputation ascending by default
	assert.Equal(t, low.ID, replies[0].ID)
	assert.Equal(t, high.ID, replies[1].ID)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/post/profile?userId=%d", voter.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[[]models.PostView](t, resp)
	require.Len(t, profile, 1)
	assert.Equal(t, high.ID, profile[0].ID)

	resp = env.do(t, http.MethodGet, "/api/post/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/post/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/post/profile", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	author, token := env.login(t, "author")
	post := testutil.CreatePost(t, env.db, author.ID, "post", nil)

	resp := env.do(t, http.MethodPost, "/api/post/comment", token, map[string]any{
		"postId":  post.ID,
		"comment": "first <script>alert(1)</script>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := decode[models.CommentView](t, resp)
	assert.Equal(t, "first", comment.Content)
	assert.Equal(t, author.Username, comment.Author.Username)

	resp = env.do(t, http.MethodPost, "/api/post/comment", token, map[string]any{
		"postId":  post.ID,
		"comment": strings.Repeat("a", 256),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/post/comment", token, map[string]any{
		"postId":  9999,
		"comment": "orphan",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/post/comments?postId=%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decode[[]models.CommentView](t, resp)
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "error")
}
