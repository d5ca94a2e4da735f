package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// GameConfig is the runtime configuration of the room service.
type GameConfig struct {
	Port         string
	RateLimit    int
	JWTSecret    string
	PostgresURL  string
	MongoURI     string
	RedisAddr    string
	NatsURL      string
	NatsToken    string
	MinPlayers   int
	WaitTimeout  time.Duration
	DrawInterval time.Duration
	Stake        decimal.Decimal
	StaleAfter   time.Duration
}

// LoadGameConfig reads the environment, applying defaults for unset variables.
func LoadGameConfig() (GameConfig, error) {
	cfg := GameConfig{
		Port:        envOr("GAME_SERVICE_PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET_KEY"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		MongoURI:    os.Getenv("MONGODB_URI"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		NatsURL:     os.Getenv("NATS_URL"),
		NatsToken:   os.Getenv("NATS_TOKEN"),
	}

	var err error
	if cfg.RateLimit, err = strconv.Atoi(envOr("RATE_LIMIT", "100")); err != nil {
		return cfg, fmt.Errorf("invalid RATE_LIMIT value: %w", err)
	}
	if cfg.MinPlayers, err = strconv.Atoi(envOr("GAME_MIN_PLAYERS", "2")); err != nil {
		return cfg, fmt.Errorf("invalid GAME_MIN_PLAYERS value: %w", err)
	}
	if cfg.WaitTimeout, err = time.ParseDuration(envOr("GAME_WAIT_TIMEOUT", "60s")); err != nil {
		return cfg, fmt.Errorf("invalid GAME_WAIT_TIMEOUT value: %w", err)
	}
	if cfg.DrawInterval, err = time.ParseDuration(envOr("GAME_DRAW_INTERVAL", "5s")); err != nil {
		return cfg, fmt.Errorf("invalid GAME_DRAW_INTERVAL value: %w", err)
	}
	if cfg.StaleAfter, err = time.ParseDuration(envOr("GAME_STALE_AFTER", "5m")); err != nil {
		return cfg, fmt.Errorf("invalid GAME_STALE_AFTER value: %w", err)
	}
	if cfg.Stake, err = decimal.NewFromString(envOr("GAME_STAKE", "10")); err != nil {
		return cfg, fmt.Errorf("invalid GAME_STAKE value: %w", err)
	}

	return cfg, cfg.validate()
}

func (c GameConfig) validate() error {
	switch {
	case c.RateLimit < 1:
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	case c.MinPlayers < 1:
		return fmt.Errorf("GAME_MIN_PLAYERS must be at least 1, got %d", c.MinPlayers)
	case c.WaitTimeout < 0:
		return fmt.Errorf("GAME_WAIT_TIMEOUT must not be negative, got %s", c.WaitTimeout)
	case c.DrawInterval <= 0:
		return fmt.Errorf("GAME_DRAW_INTERVAL must be positive, got %s", c.DrawInterval)
	case c.StaleAfter > 0 && c.StaleAfter <= c.WaitTimeout:
		return fmt.Errorf("GAME_STALE_AFTER (%s) must exceed GAME_WAIT_TIMEOUT (%s)", c.StaleAfter, c.WaitTimeout)
	case c.Stake.IsNegative():
		return fmt.Errorf("GAME_STAKE must not be negative, got %s", c.Stake)
	}
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
