package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	RedisURL     string
	JWTSecretKey string
	ServerPort   int
	LogLevel     slog.Level
	// AllowedOrigins для CORS; "*" разрешает всех.
	AllowedOrigins []string

	MatchQueueKey         string
	KillSwitchKey         string
	HeartbeatKey          string
	RandomPickProbability float64

	SweepInterval      time.Duration
	RegenerateInterval time.Duration
	AutomationInterval time.Duration
	HeartbeatInterval  time.Duration

	EnableAutomatedSeasons     bool
	EnableAutomatedTournaments bool
	AutomationFile             string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// R2Enabled reports whether rankings exports can be uploaded.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecretKey:   os.Getenv("JWT_SECRET_KEY"),
		MatchQueueKey:  getEnv("MATCH_QUEUE_KEY", "match_queue"),
		KillSwitchKey:  getEnv("KILLSWITCH_KEY", "disable_next_match_api"),
		HeartbeatKey:   getEnv("HEARTBEAT_KEY", "colosseum:heartbeat"),
		AutomationFile: os.Getenv("AUTOMATION_FILE"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if err = cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	cfg.RandomPickProbability, err = strconv.ParseFloat(getEnv("QUEUE_RANDOM_PICK_PROBABILITY", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_RANDOM_PICK_PROBABILITY environment variable: %w", err)
	}
	if cfg.RandomPickProbability < 0 || cfg.RandomPickProbability > 1 {
		return nil, fmt.Errorf("QUEUE_RANDOM_PICK_PROBABILITY must be within [0, 1], got %v", cfg.RandomPickProbability)
	}

	intervals := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"SWEEP_INTERVAL", "10s", &cfg.SweepInterval},
		{"REGENERATE_INTERVAL", "5m", &cfg.RegenerateInterval},
		{"AUTOMATION_INTERVAL", "1m", &cfg.AutomationInterval},
		{"HEARTBEAT_INTERVAL", "30s", &cfg.HeartbeatInterval},
	}
	for _, iv := range intervals {
		d, parseErr := time.ParseDuration(getEnv(iv.name, iv.def))
		if parseErr != nil {
			return nil, fmt.Errorf("invalid %s environment variable: %w", iv.name, parseErr)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", iv.name, d)
		}
		*iv.dst = d
	}

	if cfg.EnableAutomatedSeasons, err = strconv.ParseBool(getEnv("ENABLE_AUTOMATED_SEASONS", "true")); err != nil {
		return nil, fmt.Errorf("invalid ENABLE_AUTOMATED_SEASONS environment variable: %w", err)
	}
	if cfg.EnableAutomatedTournaments, err = strconv.ParseBool(getEnv("ENABLE_AUTOMATED_TOURNAMENTS", "true")); err != nil {
		return nil, fmt.Errorf("invalid ENABLE_AUTOMATED_TOURNAMENTS environment variable: %w", err)
	}

	// R2 либо настроен целиком, либо не настроен вовсе.
	r2 := []string{cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName, cfg.R2PublicBaseURL}
	set := 0
	for _, v := range r2 {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(r2) {
		return nil, fmt.Errorf("R2 storage is partially configured: set all of R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME, R2_PUBLIC_BASE_URL or none")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
