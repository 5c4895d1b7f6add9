package repository

import (
	"context"
	"errors"
	"fmt"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostSortField is a column the post listings may be ordered by.
type PostSortField string

const (
	SortByCreatedAt  PostSortField = "created_at"
	SortByReputation PostSortField = "reputation"
	SortByReplyCount PostSortField = "reply_count"
)

// PostSort is an ordering restricted to known columns.
type PostSort struct {
	Field PostSortField
	Desc  bool
}

// PostQuery selects a page of posts. Zero-valued filters are ignored.
type PostQuery struct {
	AuthorID uint
	ThreadID uint
	ViewerID uint
	Sort     PostSort
	Limit    int
	Offset   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, media []models.Media) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	GetAuthorID(ctx context.Context, id uint) (uint, error)
	List(ctx context.Context, q PostQuery) ([]*models.Post, error)
	Delete(ctx context.Context, id uint) ([]models.Media, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and its media rows in one transaction. A thread target
// must exist and must not itself be a reply.
func (r *postRepository) Create(ctx context.Context, post *models.Post, media []models.Media) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if post.ThreadID != nil {
			if err := checkThreadTarget(tx, *post.ThreadID); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			if IsForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return err
		}

		if len(media) > 0 {
			for i := range media {
				media[i].PostID = post.ID
			}
			if err := tx.Omit(clause.Associations).Create(&media).Error; err != nil {
				return err
			}
		}
		post.Media = media
		return nil
	})
}

func checkThreadTarget(tx *gorm.DB, threadID uint) error {
	q := tx.Model(&models.Post{}).Select("id", "thread_id")
	// hold the parent until commit so it cannot be deleted under us
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}

	var thread models.Post
	err := q.Where("id = ?", threadID).Take(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrThreadNotFound
	}
	if err != nil {
		return err
	}
	if thread.IsReply() {
		return ErrReplyAsThread
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Where("posts.id = ?", id).
		Take(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetAuthorID(ctx context.Context, id uint) (uint, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Select("id", "user_id").
		Where("id = ?", id).
		Take(&post).Error
	if err != nil {
		return 0, err
	}
	return post.UserID, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, error) {
	base := r.applyPostDetails(r.db.WithContext(ctx), q.ViewerID).Preload("User")
	if q.AuthorID != 0 {
		base = base.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.ThreadID != 0 {
		base = base.Where("posts.thread_id = ?", q.ThreadID)
	}

	var posts []*models.Post
	err := applySort(base, q.Sort).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Delete removes the post; votes, media rows, comments and replies cascade.
// It returns the media rows that were removed so their blobs can be released.
func (r *postRepository) Delete(ctx context.Context, id uint) ([]models.Media, error) {
	var removed []models.Media
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("post_id = ? OR post_id IN (SELECT id FROM posts WHERE thread_id = ?)", id, id).
			Find(&removed).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

var (
	reputationExpr = fmt.Sprintf(
		"(SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.type = %d) - "+
			"(SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.type = %d)",
		int8(models.VoteUp), int8(models.VoteDown),
	)
	replyCountExpr = "CASE WHEN posts.thread_id IS NULL " +
		"THEN (SELECT COUNT(*) FROM posts AS replies WHERE replies.thread_id = posts.id) " +
		"ELSE 0 END"
)

// applyPostDetails adds subqueries for reputation, reply count and the viewer's vote
// so a page of posts is aggregated in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		reputationExpr + " AS reputation, " +
		replyCountExpr + " AS reply_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", COALESCE((SELECT votes.type FROM votes WHERE votes.post_id = posts.id AND votes.user_id = ?), 0) AS my_vote", viewerID)
	}
	return db.Select(selectQuery + ", 0 AS my_vote")
}

// applySort maps the allow-listed sort onto column expressions. Ties fall back to id
// in the same direction so pages are stable.
func applySort(db *gorm.DB, sort PostSort) *gorm.DB {
	var column string
	switch sort.Field {
	case SortByReputation:
		column = "reputation"
	case SortByReplyCount:
		column = "reply_count"
	default:
		column = "posts.created_at"
	}

	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: sort.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "posts.id", Raw: true}, Desc: sort.Desc})
}
