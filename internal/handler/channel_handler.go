package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/service"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// ChannelHandler exposes channel management and channel history endpoints.
type ChannelHandler struct {
	channels     service.ChannelService
	messages     service.ChannelMessageService
	historyLimit int
	createLimit  fiber.Handler
	logger       zerolog.Logger
}

// NewChannelHandler creates a channel handler. createLimit may be nil.
func NewChannelHandler(channels service.ChannelService, messages service.ChannelMessageService, historyLimit int, createLimit fiber.Handler, logger zerolog.Logger) *ChannelHandler {
	if createLimit == nil {
		createLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &ChannelHandler{
		channels:     channels,
		messages:     messages,
		historyLimit: historyLimit,
		createLimit:  createLimit,
		logger:       logger.With().Str("component", "channel_handler").Logger(),
	}
}

// Register binds channel routes under the provided router group.
func (h *ChannelHandler) Register(router fiber.Router) {
	auth := middleware.AuthOptions{RequireUser: true}

	router.Post("/", h.createLimit, middleware.WithAuth(h.create, auth))
	router.Get("/", middleware.WithAuth(h.list, auth))
	router.Get("/:id/members", h.members)
	router.Get("/:id/messages", h.history)
	router.Post("/:id/members", middleware.WithAuth(h.addMembers, auth))
	router.Delete("/:id/members/:memberId", middleware.WithAuth(h.removeMember, auth))
	router.Post("/:id/leave", middleware.WithAuth(h.leave, auth))
	router.Patch("/:id", middleware.WithAuth(h.update, auth))
	router.Delete("/:id", middleware.WithAuth(h.delete, auth))
}

func (h *ChannelHandler) create(c *fiber.Ctx) error {
	var payload dto.ChannelCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	channel, err := h.channels.Create(withRequestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create channel")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "channel created", channel)
}

func (h *ChannelHandler) list(c *fiber.Ctx) error {
	channels, err := h.channels.List(withRequestContext(c), middleware.UserID(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list channels")
	}

	return utils.OK(c, channels, "channels", utils.ListMeta{Count: len(channels)})
}

func (h *ChannelHandler) members(c *fiber.Ctx) error {
	members, err := h.channels.Members(withRequestContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load channel members")
	}

	return utils.SendSuccess(c, "channel members", members)
}

func (h *ChannelHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit == 0 {
		limit = h.historyLimit
	}

	messages, err := h.messages.History(withRequestContext(c), c.Params("id"), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load channel history")
	}

	return utils.OK(c, messages, "channel messages", utils.ListMeta{Count: len(messages), Limit: limit})
}

func (h *ChannelHandler) addMembers(c *fiber.Ctx) error {
	var payload dto.ChannelAddMembersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	added, err := h.channels.AddMembers(withRequestContext(c), middleware.UserID(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to add channel members")
	}

	return utils.SendSuccess(c, "members added", fiber.Map{"added": added})
}

func (h *ChannelHandler) removeMember(c *fiber.Ctx) error {
	memberID := strings.TrimSpace(c.Params("memberId"))
	if err := h.channels.RemoveMember(withRequestContext(c), middleware.UserID(c), c.Params("id"), memberID); err != nil {
		return sendServiceError(c, h.logger, err, "failed to remove channel member")
	}

	return utils.SendSuccess(c, "member removed", nil)
}

func (h *ChannelHandler) leave(c *fiber.Ctx) error {
	if err := h.channels.Leave(withRequestContext(c), middleware.UserID(c), c.Params("id")); err != nil {
		return sendServiceError(c, h.logger, err, "failed to leave channel")
	}

	return utils.SendSuccess(c, "left channel", nil)
}

func (h *ChannelHandler) update(c *fiber.Ctx) error {
	var payload dto.ChannelUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	channel, err := h.channels.UpdateProfile(withRequestContext(c), middleware.UserID(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update channel")
	}

	return utils.SendSuccess(c, "channel updated", channel)
}

func (h *ChannelHandler) delete(c *fiber.Ctx) error {
	if err := h.channels.Delete(withRequestContext(c), middleware.UserID(c), c.Params("id")); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete channel")
	}

	return utils.SendSuccess(c, "channel deleted", nil)
}
