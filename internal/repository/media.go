package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// MediaRepository defines the interface for media data operations
type MediaRepository interface {
	ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint][]models.Media, error)
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

// ListByPostIDs loads the attachments of a whole page of posts in one query.
func (r *mediaRepository) ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint][]models.Media, error) {
	byPost := make(map[uint][]models.Media, len(postIDs))
	if len(postIDs) == 0 {
		return byPost, nil
	}

	var media []models.Media
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("id ASC").
		Find(&media).Error; err != nil {
		return nil, err
	}

	for _, m := range media {
		byPost[m.PostID] = append(byPost[m.PostID], m)
	}
	return byPost, nil
}
