package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/post
// @Summary Create a post or a reply
// @Description Multipart form with content, an optional thread id and up to four files
// @Tags post
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param content formData string true "Post text, markdown allowed"
// @Param thread formData int false "Thread to reply to"
// @Param files formData file false "Media files"
// @Success 201 {object} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 501 {object} models.ErrorResponse "thread is itself a reply"
// @Router /post [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Expected a multipart form"))
	}

	in := service.CreatePostInput{
		UserID:  userID,
		Content: firstValue(form, "content"),
	}

	if raw := strings.TrimSpace(firstValue(form, "thread")); raw != "" {
		threadID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || threadID == 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid thread ID"))
		}
		id := uint(threadID)
		in.ThreadID = &id
	}

	for _, fh := range form.File["files"] {
		file, err := readUpload(fh)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(err.Error()))
		}
		in.Files = append(in.Files, file)
	}

	view, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		// replying to a reply keeps the status clients already handle
		if models.IsCode(err, models.CodeConflict) {
			return models.RespondWithError(c, fiber.StatusNotImplemented, err)
		}
		return respondWithAppError(c, err)
	}

	s.publish(c, notifications.PostCreated(view))
	return c.Status(fiber.StatusCreated).JSON(view)
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readUpload(fh *multipart.FileHeader) (service.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return service.UploadFile{}, fmt.Errorf("cannot read %s", fh.Filename)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return service.UploadFile{}, fmt.Errorf("cannot read %s", fh.Filename)
	}
	return service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// DeletePost handles DELETE /api/post?postId=
// @Summary Delete a post
// @Tags post
// @Security BearerAuth
// @Param postId query int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.queryID(c, "postId")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), userID, postID); err != nil {
		return respondWithAppError(c, err)
	}

	s.publish(c, notifications.PostDeleted(postID))
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPosts handles GET /api/post
// @Summary List the feed
// @Tags post
// @Produce json
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, 1..100"
// @Param sortBy query string false "created_at, reputation or reply_count"
// @Param sortDir query string false "asc or desc"
// @Success 200 {array} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Router /post [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	in, err := s.parseListInput(c, service.DefaultFeedLimit)
	if err != nil {
		return nil
	}

	posts, err := s.reader.GetPosts(c.UserContext(), in)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/post/:id
// @Summary Get one post
// @Tags post
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /post/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.reader.GetFullPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetThreads handles GET /api/post/:id/threads
func (s *Server) GetThreads(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := s.parseListInput(c, service.DefaultRepliesLimit)
	if err != nil {
		return nil
	}

	replies, err := s.reader.GetReplies(c.UserContext(), id, in)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(replies)
}

// GetProfilePosts handles GET /api/post/profile?userId=
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	authorID, err := s.queryID(c, "userId")
	if err != nil {
		return nil
	}
	in, err := s.parseListInput(c, service.DefaultProfileLimit)
	if err != nil {
		return nil
	}

	posts, err := s.reader.GetPostsByAuthor(c.UserContext(), authorID, in)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(posts)
}
