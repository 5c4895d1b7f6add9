package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestAside_FetchesOnceThenServesFromRedis(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 7, Username: "ada"}
			return nil
		}
	}

	var first profile
	require.NoError(t, Aside(ctx, UserKey(7), &first, UserTTL, fetch(&first)))
	var second profile
	require.NoError(t, Aside(ctx, UserKey(7), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "ada", second.Username)
	assert.Equal(t, UserTTL, mr.TTL("user:7"))

	Invalidate(ctx, UserKey(7))
	var third profile
	require.NoError(t, Aside(ctx, UserKey(7), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_PropagatesFetchErrorsWithoutCaching(t *testing.T) {
	mr := useMiniredis(t)

	var dest profile
	err := Aside(context.Background(), UserKey(1), &dest, UserTTL, func() error {
		return errors.New("not found")
	})
	assert.EqualError(t, err, "not found")
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	mr := useMiniredis(t)
	mr.Close()

	var dest profile
	err := Aside(context.Background(), UserKey(2), &dest, time.Minute, func() error {
		dest = profile{ID: 2}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), dest.ID)
}

func TestHelpers_NoClientIsNoop(t *testing.T) {
	SetClient(nil)
	found, err := GetJSON(context.Background(), "k", &profile{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(context.Background(), "k", profile{}, time.Minute))
	Invalidate(context.Background(), "k")
}

func TestNewClient_AcceptsURLAndAddress(t *testing.T) {
	c, err := NewClient("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	c, err = NewClient("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", c.Options().Addr)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}
