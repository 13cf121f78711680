package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	EventPrefix     string
	EventsPersist   bool
	JWTSecret       string
	ClientOrigin    string
	WSSendBuffer    int
	WSPingInterval  time.Duration
	HistoryLimit    int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Chat")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("events.prefix", "chat")
	v.SetDefault("events.persist", true)
	v.SetDefault("client.origin", "*")
	v.SetDefault("ws.send_buffer", 32)
	v.SetDefault("ws.ping_interval", "30s")
	v.SetDefault("history.limit", 50)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	pingInterval, err := parseDuration(v.GetString("ws.ping_interval"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid websocket ping interval: %w", err)
	}

	rateWindow, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventPrefix:     strings.TrimSpace(v.GetString("events.prefix")),
		EventsPersist:   v.GetBool("events.persist"),
		JWTSecret:       v.GetString("jwt.secret"),
		ClientOrigin:    v.GetString("client.origin"),
		WSSendBuffer:    v.GetInt("ws.send_buffer"),
		WSPingInterval:  pingInterval,
		HistoryLimit:    v.GetInt("history.limit"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.WSSendBuffer <= 0 {
		cfg.WSSendBuffer = 32
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > 200 {
		cfg.HistoryLimit = 50
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}
