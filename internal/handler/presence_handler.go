package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// PresenceSource returns the current online-user snapshot.
type PresenceSource interface {
	UserIDs() []string
}

// PresenceHandler exposes the online-user snapshot over REST.
type PresenceHandler struct {
	source PresenceSource
}

// NewPresenceHandler creates a presence handler instance.
func NewPresenceHandler(source PresenceSource) *PresenceHandler {
	return &PresenceHandler{source: source}
}

// Register binds presence routes under the provided router group.
func (h *PresenceHandler) Register(router fiber.Router) {
	router.Get("/", h.snapshot)
}

func (h *PresenceHandler) snapshot(c *fiber.Ctx) error {
	online := h.source.UserIDs()
	return utils.SendSuccess(c, "online users", dto.PresenceResponse{Online: online, Count: len(online)})
}
