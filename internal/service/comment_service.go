package service

import (
	"context"
	"errors"
	"fmt"

	"agora/internal/models"
	"agora/internal/repository"

	"gorm.io/gorm"
)

const MaxCommentLen = 255

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.CommentView, error) {
	content := sanitizeText(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment is required")
	}
	if charCount(content) > MaxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", MaxCommentLen))
	}

	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return nil, models.NewNotFoundError("Post", in.PostID)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, models.NewUnauthorizedError("Author no longer exists")
		}
		return nil, models.NewInternalError(err)
	}
	return commentView(comment), nil
}

// ListComments returns the comments of an existing post, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.CommentView, error) {
	if _, err := s.postRepo.GetAuthorID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewInternalError(err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	views := make([]*models.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c))
	}
	return views, nil
}

func commentView(c *models.Comment) *models.CommentView {
	return &models.CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Content:   c.Content,
		Author:    c.User.Summary(),
		CreatedAt: c.CreatedAt,
	}
}
