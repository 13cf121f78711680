package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/service"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// MessageHandler serves direct message history.
type MessageHandler struct {
	service      service.DirectMessageService
	historyLimit int
	logger       zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(service service.DirectMessageService, historyLimit int, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service:      service,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes under the provided router group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Get("/direct", middleware.WithAuth(h.conversation, middleware.AuthOptions{RequireUser: true}))
	router.Get("/contacts", middleware.WithAuth(h.contacts, middleware.AuthOptions{RequireUser: true}))
}

func (h *MessageHandler) conversation(c *fiber.Ctx) error {
	peerID := strings.TrimSpace(c.Query("peerId"))
	if peerID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "peerId required")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit == 0 {
		limit = h.historyLimit
	}

	before, err := parseQueryTime(c, "before")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
	}

	messages, err := h.service.Conversation(withRequestContext(c), middleware.UserID(c), peerID, before, limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load conversation")
	}

	return utils.OK(c, messages, "direct messages", utils.ListMeta{Count: len(messages), Limit: limit})
}

func (h *MessageHandler) contacts(c *fiber.Ctx) error {
	contacts, err := h.service.Contacts(withRequestContext(c), middleware.UserID(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load contacts")
	}

	return utils.OK(c, contacts, "contacts", utils.ListMeta{Count: len(contacts)})
}
