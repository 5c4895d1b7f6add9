package repository

import (
	"context"
	"regexp"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 7)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first := &models.User{FullName: "Ann", Username: "ann", Email: "ann@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, first))

	dupe := &models.User{FullName: "Ann 2", Username: "ann2", Email: "ann@example.com", Password: "x"}
	assert.ErrorIs(t, repo.Create(ctx, dupe), ErrDuplicate)

	exists, err := repo.EmailExists(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.UsernameExists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "lookup")

	byEmail, err := repo.GetByEmailOrUsername(ctx, " "+user.Email+" ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := repo.GetByEmailOrUsername(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	profile, err := repo.GetByUsername(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.Email, profile.Email)

	_, err = repo.GetByUsername(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_SuggestionsAndFollows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "me")
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	suggestions, err := users.Suggestions(ctx, me.ID, 10)
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)

	require.NoError(t, follows.Follow(ctx, me.ID, a.ID))
	require.NoError(t, follows.Follow(ctx, me.ID, a.ID))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Follow{}, ""))

	following, err := follows.IsFollowing(ctx, me.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, following)

	suggestions, err = users.Suggestions(ctx, me.ID, 10)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, b.ID, suggestions[0].ID)

	require.NoError(t, follows.Unfollow(ctx, me.ID, a.ID))
	following, err = follows.IsFollowing(ctx, me.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, following)

	assert.ErrorIs(t, follows.Follow(ctx, me.ID, 31337), ErrUserNotFound)
}

func TestUserRepository_Delete_Cascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	voter := testutil.CreateUser(t, db, "voter")
	post := testutil.CreatePost(t, db, author.ID, "bye", nil)
	testutil.CreateVote(t, db, post.ID, voter.ID, models.VoteUp)

	require.NoError(t, repo.Delete(ctx, author.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Post{}, ""))
	assert.Zero(t, testutil.Count(t, db, &models.Vote{}, ""))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}, ""))
}

func TestCommentRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, "post", nil)

	first := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "first"}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, author.Username, first.User.Username)
	second := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "second"}
	require.NoError(t, repo.Create(ctx, second))

	comments, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID)

	err = repo.Create(ctx, &models.Comment{PostID: 9999, UserID: author.ID, Content: "orphan"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}
