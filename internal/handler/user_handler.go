package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/service"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// UserHandler exposes the chat profile directory.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler creates a user handler instance.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds user routes under the provided router group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.search)
	router.Patch("/me", middleware.WithAuth(h.updateProfile, middleware.AuthOptions{RequireUser: true}))
	router.Get("/:id", h.get)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Create(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create user")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *UserHandler) search(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	users, err := h.service.Search(withRequestContext(c), c.Query("q"), middleware.UserID(c), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to search users")
	}

	return utils.OK(c, users, "users", utils.ListMeta{Count: len(users), Limit: limit})
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	user, err := h.service.Get(withRequestContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load user")
	}

	return utils.SendSuccess(c, "user", user)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.UpdateProfile(withRequestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update profile")
	}

	return utils.SendSuccess(c, "profile updated", user)
}
