package service

import (
	"context"
	"strings"
	"testing"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	svc := NewCommentService(repository.NewCommentRepository(db), repository.NewPostRepository(db))

	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, "post", nil)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: " "})
		assertValidationError(t, err)
		_, err = svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: strings.Repeat("y", MaxCommentLen+1)})
		assertValidationError(t, err)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: 999, Content: "hello"})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
		_, err = svc.ListComments(ctx, 999)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("create and list", func(t *testing.T) {
		first, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "<i>first</i>"})
		require.NoError(t, err)
		assert.Equal(t, "first", first.Content)
		assert.Equal(t, author.Username, first.Author.Username)

		second, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "second"})
		require.NoError(t, err)

		comments, err := svc.ListComments(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, second.ID, comments[0].ID)
	})
}
