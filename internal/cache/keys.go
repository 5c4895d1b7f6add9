package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	UsernameKeyPrefix  = "user:name:%s"
	TicketKeyPrefix    = "ws_ticket:%s"
	BlacklistKeyPrefix = "blacklist:%s"
)

const (
	UserTTL   = 5 * time.Minute
	TicketTTL = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UsernameKey(username string) string {
	return fmt.Sprintf(UsernameKeyPrefix, strings.ToLower(username))
}

func TicketKey(ticket string) string {
	return fmt.Sprintf(TicketKeyPrefix, ticket)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint, username string) {
	Invalidate(ctx, UserKey(userID), UsernameKey(username))
}
