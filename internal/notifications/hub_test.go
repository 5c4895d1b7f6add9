package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub()

	for range maxConnsPerUser {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	// the cap is per user
	_, err = hub.Register(8, nil)
	require.NoError(t, err)
	assert.Equal(t, maxConnsPerUser+1, hub.ConnectionCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)

	assert.Equal(t, 0, hub.ConnectionCount())
	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_BroadcastAllReachesEveryone(t *testing.T) {
	hub := NewHub()
	a, _ := hub.Register(1, nil)
	b, _ := hub.Register(2, nil)
	c3, _ := hub.Register(3, nil)

	hub.BroadcastAll(`{"type":"post_deleted"}`)

	for _, c := range []*Client{a, b, c3} {
		select {
		case msg := <-c.Send:
			assert.JSONEq(t, `{"type":"post_deleted"}`, string(msg))
		default:
			t.Fatalf("client %d received nothing", c.UserID)
		}
	}
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(1, nil)

	for range sendBuffer - 1 {
		c.TrySend([]byte("x"))
	}
	c.TrySend([]byte("last"))
	c.TrySend([]byte("dropped"))

	assert.Len(t, c.Send, sendBuffer)

	// sending on a closed client is swallowed
	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestClient_DropsAreLoggedThroughSharedLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = middleware.NewLogger(&buf, "production")
	t.Cleanup(func() { middleware.Logger = prev })

	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)
	for range sendBuffer + 1 {
		c.TrySend([]byte("x"))
	}

	line, _, _ := strings.Cut(buf.String(), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "event stream buffer full, dropped event", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.EqualValues(t, 9, rec["user_id"])
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	_, err := hub.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, err = hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrServerConnLimit)
}

func TestHub_LocalWiringWithoutRedis(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))

	c, _ := hub.Register(5, nil)
	require.NoError(t, n.Publish(context.Background(), ReputationUpdated(9, -1, models.VoteSwitched)))

	select {
	case msg := <-c.Send:
		var ev struct {
			Type    string            `json:"type"`
			Payload ReputationPayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, EventPostReputationUpdated, ev.Type)
		assert.Equal(t, uint(9), ev.Payload.PostID)
		assert.Equal(t, int64(-1), ev.Payload.Reputation)
		assert.Equal(t, models.VoteSwitched, ev.Payload.Action)
	default:
		t.Fatal("expected event to be delivered locally")
	}
}
