package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])

	// a configured Redis that stops answering makes the instance unready
	env.mr.Close()
	resp = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body = decode[map[string]any](t, resp)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unhealthy", checks["redis"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "alice")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/suggestions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/user/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/user/suggestions", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Token has been revoked", body.Error)
}

func TestRevocationCheckFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "alice")

	env.mr.SetError("ERR redis unavailable")
	resp := env.do(t, http.MethodGet, "/api/user/suggestions", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRevokedTokenIsAnonymousOnReads(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "alice")
	post := testutil.CreatePost(t, env.db, user.ID, "mine", nil)
	path := fmt.Sprintf("/api/post/%d", post.ID)

	resp := env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decode[models.PostView](t, resp).MyVote)

	resp = env.do(t, http.MethodPost, "/api/user/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[models.PostView](t, resp).MyVote)
}

func TestWSTicket_RedisFailureIsServerError(t *testing.T) {
	env := newTestEnv(t)

	env.mr.SetError("ERR redis unavailable")
	resp := env.do(t, http.MethodGet, "/api/ws?ticket=whatever", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.NotContains(t, body.Error, "redis")
}

func TestWSTicket(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decode[map[string]string](t, resp)["ticket"]
	require.NotEmpty(t, ticket)

	key := cache.TicketKey(ticket)
	stored, err := env.mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(user.ID), stored)
	assert.Equal(t, cache.TicketTTL, env.mr.TTL(key))

	// the ticket is spent by the first attempt even when it is not an upgrade
	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.False(t, env.mr.Exists(key))

	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSTicket_ExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decode[map[string]string](t, resp)["ticket"]

	env.mr.FastForward(cache.TicketTTL + time.Second)

	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMemoryTickets(t *testing.T) {
	tickets := &memoryTickets{tickets: make(map[string]memoryTicket)}

	tickets.put("a", 7, time.Minute)
	tickets.put("expired", 8, -time.Second)

	userID, ok := tickets.take("a")
	assert.True(t, ok)
	assert.Equal(t, uint(7), userID)

	_, ok = tickets.take("a")
	assert.False(t, ok, "tickets are single use")

	_, ok = tickets.take("expired")
	assert.False(t, ok)
}

func TestWebsocket_StreamsReputationUpdates(t *testing.T) {
	env := newTestEnv(t)
	author, token := env.login(t, "author")
	post := testutil.CreatePost(t, env.db, author.ID, "watch me", nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.s.hub.StartWiring(ctx, env.s.notifier))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decode[map[string]string](t, resp)["ticket"]

	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/api/ws?ticket=%s", ln.Addr(), ticket), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return env.s.hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.do(t, http.MethodPost, "/api/post/vote", token, map[string]any{
		"postId": post.ID,
		"type":   "UPVOTE",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type    string                          `json:"type"`
		Payload notifications.ReputationPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, notifications.EventPostReputationUpdated, ev.Type)
	assert.Equal(t, post.ID, ev.Payload.PostID)
	assert.Equal(t, int64(1), ev.Payload.Reputation)
	assert.Equal(t, models.VoteCreated, ev.Payload.Action)

	// closing the socket releases the hub slot
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return env.s.hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewNotFoundError("Post", 1), http.StatusNotFound},
		{models.NewConflictError("taken"), http.StatusConflict},
		{models.NewValidationError("bad"), http.StatusBadRequest},
		{models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{models.NewForbiddenError("no"), http.StatusForbidden},
		{models.NewInternalError(assert.AnError), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "post ID", humanizeParam("postId"))
	assert.Equal(t, "following user ID", humanizeParam("followingUserId"))
	assert.Equal(t, "page", humanizeParam("page"))
}

