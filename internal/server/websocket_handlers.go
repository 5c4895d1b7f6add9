package server

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errInvalidTicket = models.NewUnauthorizedError("Invalid or expired WebSocket ticket")

// memoryTickets stands in for Redis when the instance runs without it.
// Tickets issued here are only valid on this instance.
type memoryTickets struct {
	mu      sync.Mutex
	tickets map[string]memoryTicket
}

type memoryTicket struct {
	userID  uint
	expires time.Time
}

var localTickets = &memoryTickets{tickets: make(map[string]memoryTicket)}

func (m *memoryTickets) put(ticket string, userID uint, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, t := range m.tickets {
		if now.After(t.expires) {
			delete(m.tickets, k)
		}
	}
	m.tickets[ticket] = memoryTicket{userID: userID, expires: now.Add(ttl)}
}

func (m *memoryTickets) take(ticket string) (uint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticket]
	delete(m.tickets, ticket)
	if !ok || time.Now().After(t.expires) {
		return 0, false
	}
	return t.userID, true
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a single-use ticket valid for 30 seconds for opening /api/ws
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	ticket := uuid.NewString()

	if s.redis == nil {
		localTickets.put(ticket, userID, cache.TicketTTL)
		return c.JSON(fiber.Map{"ticket": ticket})
	}

	key := cache.TicketKey(ticket)
	if err := s.redis.Set(c.UserContext(), key, userID, cache.TicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"ticket": ticket})
}

// consumeTicket redeems ticket exactly once.
func (s *Server) consumeTicket(ctx context.Context, ticket string) (uint, error) {
	if ticket == "" {
		return 0, errInvalidTicket
	}

	if s.redis == nil {
		userID, ok := localTickets.take(ticket)
		if !ok {
			return 0, errInvalidTicket
		}
		return userID, nil
	}

	raw, err := s.redis.GetDel(ctx, cache.TicketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, errInvalidTicket
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || userID == 0 {
		return 0, errInvalidTicket
	}
	return uint(userID), nil
}

// WebsocketHandler streams realtime events to a ticket-authenticated client.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("event stream rejected", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
