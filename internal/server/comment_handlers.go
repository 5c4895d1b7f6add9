package server

import (
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/post/comment
// @Summary Comment on a post
// @Tags comment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{postId=int,comment=string} true "Comment"
// @Success 201 {object} models.CommentView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/comment [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		PostID  uint   `json:"postId"`
		Comment string `json:"comment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:  userID,
		PostID:  req.PostID,
		Content: req.Comment,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}

	s.publish(c, notifications.CommentCreated(comment))
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/post/comments?postId=
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.queryID(c, "postId")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(comments)
}
