package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-api/internal/config"
	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// ConnectionCounter reports live socket state for the health endpoint.
type ConnectionCounter interface {
	Len() int
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Connections int       `json:"connections"`
	OnlineUsers int       `json:"onlineUsers"`
}

// HealthCheck returns a handler that reports application health and socket load.
func HealthCheck(cfg config.Config, connections, online ConnectionCounter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if connections != nil {
			payload.Connections = connections.Len()
		}
		if online != nil {
			payload.OnlineUsers = online.Len()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
