package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/models"
	"github.com/noah-isme/gema-chat-api/internal/repository"
)

// ErrUserExists indicates the username or email is already registered.
var ErrUserExists = errors.New("username or email already registered")

// ErrEmptyFullName is returned when a profile name sanitizes to nothing.
var ErrEmptyFullName = errors.New("full name is empty after sanitizing")

// UserService manages the chat profile directory.
type UserService interface {
	Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Get(ctx context.Context, id string) (dto.UserResponse, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, payload dto.UserUpdateRequest) (dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewUserService constructs the user directory service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	exists, err := s.repo.Exists(ctx, payload.Username, payload.Email)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if exists {
		return dto.UserResponse{}, ErrUserExists
	}

	bio := strings.TrimSpace(s.sanitizer.Sanitize(payload.Bio))
	if bio == "" {
		bio = "bio"
	}

	user := models.User{
		Username:     strings.ToLower(strings.TrimSpace(payload.Username)),
		FullName:     strings.TrimSpace(s.sanitizer.Sanitize(payload.FullName)),
		Email:        strings.ToLower(strings.TrimSpace(payload.Email)),
		ProfileImage: payload.ProfileImage,
		Bio:          bio,
		Color:        payload.Color,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	return dto.NewUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, id string) (dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUnknownUser
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Search(ctx context.Context, query, excludeID string, limit int) ([]dto.UserResponse, error) {
	users, err := s.repo.Search(ctx, query, excludeID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

// UpdateProfile edits the caller's display name, bio and color. An empty
// payload returns the stored profile unchanged.
func (s *userService) UpdateProfile(ctx context.Context, userID string, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	updates := make(map[string]interface{})
	if payload.FullName != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*payload.FullName))
		if name == "" {
			return dto.UserResponse{}, ErrEmptyFullName
		}
		updates["full_name"] = name
	}
	if payload.Bio != nil {
		updates["bio"] = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Bio))
	}
	if payload.Color != nil {
		updates["color"] = *payload.Color
	}

	user, err := s.repo.Update(ctx, userID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUnknownUser
		}
		return dto.UserResponse{}, err
	}

	if len(updates) > 0 {
		s.logger.Info().Str("user_id", user.ID).Int("fields", len(updates)).Msg("profile updated")
	}

	return dto.NewUserResponse(user), nil
}
