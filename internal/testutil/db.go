// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewSQLiteDB returns a migrated in-memory database with foreign keys enforced.
// One connection keeps every statement on the same in-memory database, so code under
// test must only use the transaction handle inside a transaction.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with a unique username and email derived from name.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		FullName: name,
		Username: fmt.Sprintf("%s_%s", name, uuid.NewString()[:8]),
		Email:    fmt.Sprintf("%s_%s@example.com", name, uuid.NewString()[:8]),
		Password: "hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post by author, optionally as a reply to threadID.
func CreatePost(t *testing.T, db *gorm.DB, authorID uint, content string, threadID *uint) *models.Post {
	t.Helper()
	post := &models.Post{UserID: authorID, Content: content, ThreadID: threadID}
	require.NoError(t, db.Omit(clause.Associations).Create(post).Error)
	return post
}

// CreatePostAt inserts a post with an explicit creation time.
func CreatePostAt(t *testing.T, db *gorm.DB, authorID uint, content string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{UserID: authorID, Content: content, CreatedAt: createdAt, UpdatedAt: createdAt}
	require.NoError(t, db.Omit(clause.Associations).Create(post).Error)
	return post
}

// CreateVote inserts a vote row directly.
func CreateVote(t *testing.T, db *gorm.DB, postID, userID uint, voteType models.VoteType) *models.Vote {
	t.Helper()
	vote := &models.Vote{PostID: postID, UserID: userID, Type: voteType}
	require.NoError(t, db.Omit(clause.Associations).Create(vote).Error)
	return vote
}

// Count returns the number of rows of model matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
