package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	MaxPostContentLen      = 500
	DefaultMaxFilesPerPost = 4
	DefaultMaxUploadMB     = 10
)

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
}

// UploadFile is one file of a multipart post submission.
type UploadFile struct {
	Name        string
	ContentType string
	Content     []byte
}

type CreatePostInput struct {
	UserID   uint
	Content  string
	ThreadID *uint
	Files    []UploadFile
}

type PostService struct {
	postRepo     repository.PostRepository
	reader       *PostReader
	blobs        storage.BlobStore
	maxFiles     int
	maxFileBytes int64
}

func NewPostService(postRepo repository.PostRepository, reader *PostReader, blobs storage.BlobStore, cfg *config.Config) *PostService {
	maxFiles := DefaultMaxFilesPerPost
	maxFileBytes := int64(DefaultMaxUploadMB) * 1024 * 1024
	if cfg != nil {
		if cfg.MediaMaxFilesPerPost > 0 {
			maxFiles = cfg.MediaMaxFilesPerPost
		}
		if cfg.MediaMaxUploadMB > 0 {
			maxFileBytes = cfg.MaxUploadBytes()
		}
	}

	return &PostService{
		postRepo:     postRepo,
		reader:       reader,
		blobs:        blobs,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
	}
}

// CreatePost stores the uploads, then writes the post and its media rows in one
// transaction. Any failure removes the blobs that were already stored.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostView, error) {
	content := sanitizeText(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if charCount(content) > MaxPostContentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", MaxPostContentLen))
	}
	if len(in.Files) > s.maxFiles {
		return nil, models.NewValidationError(fmt.Sprintf("Too many files (max %d)", s.maxFiles))
	}

	mimeTypes := make([]string, len(in.Files))
	for i, f := range in.Files {
		if len(f.Content) == 0 {
			return nil, models.NewValidationError("Empty file " + f.Name)
		}
		if int64(len(f.Content)) > s.maxFileBytes {
			return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxFileBytes/(1024*1024)))
		}
		detected := normalizeContentType(http.DetectContentType(f.Content))
		if _, ok := allowedMediaTypes[detected]; !ok {
			return nil, models.NewValidationError("Unsupported file type " + detected)
		}
		mimeTypes[i] = detected
	}

	media, err := s.upload(ctx, in.Files, mimeTypes)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:   in.UserID,
		Content:  content,
		ThreadID: in.ThreadID,
	}
	if err := s.postRepo.Create(ctx, post, media); err != nil {
		s.releaseBlobs(ctx, media)
		switch {
		case errors.Is(err, repository.ErrThreadNotFound):
			return nil, models.NewNotFoundError("Thread", *in.ThreadID)
		case errors.Is(err, repository.ErrReplyAsThread):
			return nil, &models.AppError{
				Code:    models.CodeConflict,
				Message: "Cannot create a thread for a post that is already a reply",
				Err:     err,
			}
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, models.NewUnauthorizedError("Author no longer exists")
		}
		return nil, models.NewInternalError(err)
	}

	return s.reader.GetFullPost(ctx, post.ID, in.UserID)
}

// upload stores every file concurrently. The first failure cancels the rest and
// every blob written so far is deleted.
func (s *PostService) upload(ctx context.Context, files []UploadFile, mimeTypes []string) ([]models.Media, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		written []string
	)
	track := func(key string) {
		mu.Lock()
		written = append(written, key)
		mu.Unlock()
	}

	media := make([]models.Media, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			f := files[i]
			key := path.Join("posts", uuid.NewString()+allowedMediaTypes[mimeTypes[i]])
			size, err := s.blobs.Put(gctx, key, bytes.NewReader(f.Content))
			if err != nil {
				return models.NewInternalError(fmt.Errorf("store %s: %w", f.Name, err))
			}
			track(key)

			m := models.Media{
				Name:      mediaName(f.Name, key),
				URL:       s.blobs.URL(key),
				MimeType:  mimeTypes[i],
				SizeBytes: size,
				BlobKey:   key,
			}
			if m.IsImage() {
				preview, err := storage.GeneratePreview(f.Content)
				if err != nil {
					return models.NewValidationError("Invalid image file " + f.Name)
				}
				previewKey := strings.TrimSuffix(key, path.Ext(key)) + "_preview.webp"
				if _, err := s.blobs.Put(gctx, previewKey, bytes.NewReader(preview)); err != nil {
					return models.NewInternalError(fmt.Errorf("store preview of %s: %w", f.Name, err))
				}
				track(previewKey)
				m.PreviewKey = previewKey
				m.PreviewURL = s.blobs.URL(previewKey)
			}
			media[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.deleteKeys(ctx, written)
		return nil, err
	}
	return media, nil
}

// DeletePost lets authors remove their own posts. Votes, media rows, comments and
// replies cascade in storage; blobs are released afterwards.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", postID)
		}
		return models.NewInternalError(err)
	}
	if authorID != userID {
		return models.NewForbiddenError("Only the author can delete this post")
	}

	removed, err := s.postRepo.Delete(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", postID)
		}
		return models.NewInternalError(err)
	}
	s.releaseBlobs(ctx, removed)
	return nil
}

func (s *PostService) releaseBlobs(ctx context.Context, media []models.Media) {
	keys := make([]string, 0, len(media)*2)
	for _, m := range media {
		if m.BlobKey != "" {
			keys = append(keys, m.BlobKey)
		}
		if m.PreviewKey != "" {
			keys = append(keys, m.PreviewKey)
		}
	}
	s.deleteKeys(ctx, keys)
}

func (s *PostService) deleteKeys(ctx context.Context, keys []string) {
	// cleanup must finish even when the request was cancelled
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete media blob", "key", key, "err", err)
		}
	}
}

func mediaName(name, key string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return path.Base(key)
	}
	return name
}

func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}
