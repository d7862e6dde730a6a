package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	ContentDir string

	AttemptTTL       time.Duration
	LeaderboardLimit int

	SelectionMode string
	UpgradeOnly   bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		AttemptTTL:       24 * time.Hour,
		LeaderboardLimit: 10,
		SelectionMode:    "series",
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ContentDir = strings.TrimSpace(os.Getenv("CONTENT_DIR"))

	if v := strings.TrimSpace(os.Getenv("DRILL_ATTEMPT_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AttemptTTL = d
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 { // bare seconds
			cfg.AttemptTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardLimit = n
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("DRILL_SELECTION_MODE"))); v != "" {
		if v != "series" && v != "random" {
			return nil, errors.New("DRILL_SELECTION_MODE must be series or random")
		}
		cfg.SelectionMode = v
	}
	if v := strings.TrimSpace(os.Getenv("DRILL_UPGRADE_ONLY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UpgradeOnly = b
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
