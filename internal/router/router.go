package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/config"
	"github.com/noah-isme/gema-chat-api/internal/handler"
	"github.com/noah-isme/gema-chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler     *handler.UserHandler
	PresenceHandler *handler.PresenceHandler
	MessageHandler  *handler.MessageHandler
	ChannelHandler  *handler.ChannelHandler
	SocketHandler   *handler.SocketHandler
	Health          fiber.Handler
	JWTMiddleware   fiber.Handler
	// SocketAuth guards the websocket upgrade; browsers pass the token as a query parameter.
	SocketAuth fiber.Handler
	Logger     zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	health := deps.Health
	if health == nil {
		health = handler.HealthCheck(cfg, nil, nil)
	}
	api.Get("/health", health)
	api.Get("/metrics", observability.MetricsHandler(observability.MetricsOptions{Logger: deps.Logger}))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	socketAuth := deps.SocketAuth
	if socketAuth == nil {
		socketAuth = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware))
	}

	if deps.PresenceHandler != nil {
		deps.PresenceHandler.Register(api.Group("/presence", jwtMiddleware))
	}

	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(api.Group("/messages", jwtMiddleware))
	}

	if deps.ChannelHandler != nil {
		deps.ChannelHandler.Register(api.Group("/channels", jwtMiddleware))
	}

	if deps.SocketHandler != nil {
		deps.SocketHandler.Register(api.Group("/socket", socketAuth))
	}
}
