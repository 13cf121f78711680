package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/config"
	"github.com/noah-isme/gema-chat-api/internal/database"
	"github.com/noah-isme/gema-chat-api/internal/handler"
	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/realtime"
	"github.com/noah-isme/gema-chat-api/internal/repository"
	"github.com/noah-isme/gema-chat-api/internal/router"
	"github.com/noah-isme/gema-chat-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(realtime.HubOptions{
		SendBuffer:   cfg.WSSendBuffer,
		PingInterval: cfg.WSPingInterval,
	}, logger)

	var presenceStore realtime.PresenceStore
	if redisClient != nil {
		presenceStore = realtime.NewRedisPresenceStore(redisClient, cfg.EventPrefix)
	}
	presence := realtime.NewPresenceBroadcaster(hub, presenceStore, logger).Attach(registry)
	defer presence.Close()

	var journals realtime.MultiJournal
	if natsConn != nil {
		journals = append(journals, realtime.NewNATSJournal(natsConn, cfg.EventPrefix, logger))
	}
	if cfg.EventsPersist {
		journals = append(journals, realtime.NewAuditJournal(repository.NewChatEventRepository(db), logger))
	}
	var journal realtime.Journal = realtime.NopJournal{}
	if len(journals) > 0 {
		journal = journals
	}
	notifier := realtime.NewNotifier(registry, hub, logger)

	userRepo := repository.NewUserRepository(db)
	directMessageRepo := repository.NewDirectMessageRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	channelMessageRepo := repository.NewChannelMessageRepository(db)

	userService := service.NewUserService(userRepo, validate, logger)
	directMessageService := service.NewDirectMessageService(directMessageRepo, notifier, journal, validate, logger)
	channelMessageService := service.NewChannelMessageService(channelMessageRepo, channelRepo, notifier, journal, validate, logger)
	channelService := service.NewChannelService(channelRepo, userRepo, notifier, journal, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.ClientOrigin,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		UserHandler:     handler.NewUserHandler(userService, logger),
		PresenceHandler: handler.NewPresenceHandler(registry),
		MessageHandler:  handler.NewMessageHandler(directMessageService, cfg.HistoryLimit, logger),
		ChannelHandler: handler.NewChannelHandler(channelService, channelMessageService, cfg.HistoryLimit,
			middleware.RateLimit("channels:create", cfg.RateLimitMax, cfg.RateLimitWindow), logger),
		SocketHandler: handler.NewSocketHandler(hub, registry, directMessageService, channelMessageService, logger),
		Health:        handler.HealthCheck(cfg, hub, registry),
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		SocketAuth:    middleware.JWTOptional(cfg.JWTSecret),
		Logger:        logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("chat server started")

	waitForShutdown(app, hub)
}

func waitForShutdown(app *fiber.App, hub *realtime.Hub) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
