package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/user/register
// @Summary Register
// @Description Create an account; the username is generated
// @Tags user
// @Accept json
// @Produce json
// @Param request body object{fullName=string,email=string,password=string} true "Registration"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /user/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles POST /api/user/login
// @Summary Login
// @Tags user
// @Accept json
// @Produce json
// @Param request body object{emailOrUsername=string,password=string} true "Credentials"
// @Success 201 {object} service.AuthResult
// @Failure 404 {object} models.ErrorResponse
// @Router /user/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		EmailOrUsername string `json:"emailOrUsername"`
		Password        string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.userService.Login(c.UserContext(), service.LoginInput{
		EmailOrUsername: req.EmailOrUsername,
		Password:        req.Password,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Logout handles POST /api/user/logout
// @Summary Logout
// @Description Revokes the presented token
// @Tags user
// @Security BearerAuth
// @Success 204
// @Router /user/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*service.TokenClaims)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	if err := s.userService.Logout(c.UserContext(), claims); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProfile handles GET /api/user/profile?username=
// @Summary Get a user by username
// @Tags user
// @Produce json
// @Param username query string true "Username"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /user/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), c.Query("username"))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetSuggestions handles GET /api/user/suggestions?limit=
func (s *Server) GetSuggestions(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	limit, err := queryInt(c, "limit", service.DefaultSuggestionLimit)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("limit must be a number"))
	}

	users, err := s.userService.Suggestions(c.UserContext(), userID, limit)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(users)
}

type followRequest struct {
	FollowingID uint `json:"followingId"`
}

// Follow handles POST /api/user/follow
// @Summary Follow a user
// @Tags user
// @Accept json
// @Security BearerAuth
// @Param request body object{followingId=int} true "Target"
// @Success 201 {object} object{following=bool}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /user/follow [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req followRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.userService.Follow(c.UserContext(), userID, req.FollowingID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"following": true})
}

// Unfollow handles POST /api/user/unfollow
func (s *Server) Unfollow(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req followRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.userService.Unfollow(c.UserContext(), userID, req.FollowingID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": false})
}

// GetFollowState handles GET /api/user/follow/state?userId=
func (s *Server) GetFollowState(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	targetID, err := s.queryID(c, "userId")
	if err != nil {
		return nil
	}

	following, err := s.userService.IsFollowing(c.UserContext(), userID, targetID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}
