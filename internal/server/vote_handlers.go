package server

import (
	"agora/internal/models"
	"agora/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// CastVote handles POST /api/post/vote
// @Summary Vote on a post
// @Description Repeating a vote removes it, the opposite vote switches it and NEUTRAL clears it
// @Tags vote
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{postId=int,type=string} true "UPVOTE, DOWNVOTE or NEUTRAL"
// @Success 201 {object} service.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/vote [post]
func (s *Server) CastVote(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		PostID uint             `json:"postId"`
		Type   *models.VoteType `json:"type"`
	}
	// an absent type must not fall through to NEUTRAL, which would clear the vote
	if err := c.BodyParser(&req); err != nil || req.Type == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Vote type must be UPVOTE, DOWNVOTE or NEUTRAL"))
	}

	result, err := s.ledger.CastVote(c.UserContext(), req.PostID, userID, *req.Type)
	if err != nil {
		return respondWithAppError(c, err)
	}

	if result.Action != models.VoteUnchanged {
		s.publish(c, notifications.ReputationUpdated(result.PostID, result.Reputation, result.Action))
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetVoteState handles GET /api/post/vote/state?postId=
// @Summary The caller's vote on a post
// @Tags vote
// @Produce json
// @Security BearerAuth
// @Param postId query int true "Post ID"
// @Success 200 {object} object{type=string}
// @Router /post/vote/state [get]
func (s *Server) GetVoteState(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.queryID(c, "postId")
	if err != nil {
		return nil
	}

	vote, err := s.ledger.GetVote(c.UserContext(), postID, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}

	state := models.VoteNone
	if vote != nil {
		state = vote.Type
	}
	return c.JSON(fiber.Map{"type": state})
}
