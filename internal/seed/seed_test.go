package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestParsePlan(t *testing.T) {
	t.Run("fills unset keys from defaults", func(t *testing.T) {
		plan, err := ParsePlan([]byte("users: 4\nvotes_per_post: 9\n"))
		require.NoError(t, err)
		assert.Equal(t, 4, plan.Users)
		assert.Equal(t, 9, plan.VotesPerPost)
		assert.Equal(t, DefaultPlan().PostsPerUser, plan.PostsPerUser)
		assert.Equal(t, DefaultPlan().Password, plan.Password)
	})

	t.Run("empty document is the default plan", func(t *testing.T) {
		plan, err := ParsePlan(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultPlan(), plan)
	})

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "users: 2\nlikes: 3\n"},
		{"no users", "users: 0\n"},
		{"negative count", "replies_per_post: -1\n"},
		{"bad max days", "max_days: 0\n"},
		{"not yaml", "users: [1, 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlan(t *testing.T) {
	plan, err := LoadPlan("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPlan(), plan)

	path := filepath.Join(t.TempDir(), "seed.yml")
	require.NoError(t, os.WriteFile(path, []byte("users: 2\nclean: true\n"), 0o600))
	plan, err = LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Users)
	assert.True(t, plan.Clean)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	plan := Plan{
		Users:           4,
		PostsPerUser:    2,
		RepliesPerPost:  1,
		VotesPerPost:    3,
		CommentsPerPost: 1,
		FollowsPerUser:  2,
		MaxDays:         7,
		Password:        "seed-password",
	}

	s := NewSeeder(db, plan, 42)
	s.hashCost = bcrypt.MinCost

	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Users: 4, Threads: 8, Replies: 8, Votes: 48, Comments: 16, Follows: 8}, sum)
	assert.Equal(t, int64(4), testutil.Count(t, db, &models.User{}, ""))
	assert.Equal(t, int64(8), testutil.Count(t, db, &models.Post{}, "thread_id IS NULL"))
	assert.Equal(t, int64(8), testutil.Count(t, db, &models.Post{}, "thread_id IS NOT NULL"))
	assert.Equal(t, int64(48), testutil.Count(t, db, &models.Vote{}, ""))
	assert.Equal(t, int64(16), testutil.Count(t, db, &models.Comment{}, ""))
	assert.Equal(t, int64(8), testutil.Count(t, db, &models.Follow{}, ""))

	// every user can log in with the plan password
	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("seed-password")))

	t.Run("clean run replaces the data", func(t *testing.T) {
		plan.Clean = true
		plan.Users = 2
		plan.VotesPerPost = 0
		s := NewSeeder(db, plan, 7)
		s.hashCost = bcrypt.MinCost

		sum, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Users)
		assert.Equal(t, int64(2), testutil.Count(t, db, &models.User{}, ""))
		assert.Equal(t, int64(0), testutil.Count(t, db, &models.Vote{}, ""))
	})
}
