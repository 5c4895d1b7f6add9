package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	usernameAttempts       = 5
	DefaultSuggestionLimit = 10
	MaxSuggestionLimit     = 50
)

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

type LoginInput struct {
	EmailOrUsername string
	Password        string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	tokens     *TokenService
	faker      *gofakeit.Faker
	hashCost   int
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository, tokens *TokenService) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		tokens:     tokens,
		faker:      gofakeit.New(0),
		hashCost:   bcrypt.DefaultCost,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if fullName == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Full name, email and password are required")
	}
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if exists {
		return nil, models.NewConflictError("Email already in use")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		FullName: fullName,
		Email:    email,
		Password: string(hashed),
	}
	for attempt := 0; ; attempt++ {
		user.Username, err = s.pickUsername(ctx)
		if err != nil {
			return nil, err
		}
		err = s.userRepo.Create(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewInternalError(err)
		}
		// lost a race on either unique column
		if taken, _ := s.userRepo.EmailExists(ctx, email); taken {
			return nil, models.NewConflictError("Email already in use")
		}
		if attempt >= usernameAttempts {
			return nil, models.NewInternalError(errors.New("could not allocate a unique username"))
		}
	}

	return s.authenticate(user)
}

// pickUsername draws fake usernames until one is free.
func (s *UserService) pickUsername(ctx context.Context) (string, error) {
	for i := 0; i < usernameAttempts; i++ {
		candidate := NormalizeUsername(s.faker.Username())
		if i > 0 || len(candidate) < 3 {
			candidate = NormalizeUsername(fmt.Sprintf("%s%d", candidate, s.faker.Number(10, 9999)))
		}
		if validation.ValidateUsername(candidate) != nil {
			continue
		}
		taken, err := s.userRepo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return NormalizeUsername(fmt.Sprintf("user%d", s.faker.Number(100000, 999999999))), nil
}

// NormalizeUsername lowercases s, drops everything outside [a-z0-9_-], trims
// separators from both ends and caps the length at 30.
func NormalizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "_-")
	if len(out) > 30 {
		out = strings.TrimRight(out[:30], "_-")
	}
	return out
}

// Login fails with NOT_FOUND for an unknown user and for a wrong password alike.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(in.EmailOrUsername) == "" || in.Password == "" {
		return nil, models.NewValidationError("Email or username and password are required")
	}

	user, err := s.userRepo.GetByEmailOrUsername(ctx, in.EmailOrUsername)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, models.NewInternalError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, invalidCredentials()
	}
	return s.authenticate(user)
}

func invalidCredentials() *models.AppError {
	return &models.AppError{Code: models.CodeNotFound, Message: "Invalid email/username or password"}
}

func (s *UserService) authenticate(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the presented token.
func (s *UserService) Logout(ctx context.Context, claims *TokenClaims) error {
	return s.tokens.Revoke(ctx, claims)
}

func (s *UserService) GetProfile(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("username is required")
	}
	return s.userRepo.GetByUsername(ctx, username)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) Suggestions(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if limit > MaxSuggestionLimit {
		limit = MaxSuggestionLimit
	}
	users, err := s.userRepo.Suggestions(ctx, userID, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (s *UserService) Follow(ctx context.Context, followerID, followingID uint) error {
	if followingID == 0 {
		return models.NewValidationError("followingId is required")
	}
	if followerID == followingID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if err := s.followRepo.Follow(ctx, followerID, followingID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.NewNotFoundError("User", followingID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, followerID, followingID uint) error {
	if followingID == 0 {
		return models.NewValidationError("followingId is required")
	}
	if err := s.followRepo.Unfollow(ctx, followerID, followingID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *UserService) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	following, err := s.followRepo.IsFollowing(ctx, followerID, followingID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return following, nil
}
