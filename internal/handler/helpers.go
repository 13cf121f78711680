package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/service"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseQueryTime(c *fiber.Ctx, key string) (time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrMissingEventField),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrEmptyChannelName),
		errors.Is(err, service.ErrEmptyFullName),
		errors.Is(err, service.ErrSenderMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotChannelAdmin):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrHandleTaken),
		errors.Is(err, service.ErrUserExists):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(action)
		return utils.SendError(c, status, action)
	}
	return utils.SendError(c, status, err.Error())
}
