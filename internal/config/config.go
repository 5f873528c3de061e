package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "slotline.db"
	defaultNormalMinutes = 5
	defaultComboMinutes  = 120
	defaultMaxDays       = 14

	envListenAddr    = "SLOTLINE_LISTEN_ADDR"
	envDBPath        = "SLOTLINE_DB_PATH"
	envLogLevel      = "SLOTLINE_LOG_LEVEL"
	envNormalMinutes = "SLOTLINE_NORMAL_MINUTES"
	envComboMinutes  = "SLOTLINE_COMBO_MINUTES"
	envMaxDays       = "SLOTLINE_MAX_DAYS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	LogLevel      slog.Level
	NormalMinutes float64
	ComboMinutes  float64
	MaxDays       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		NormalMinutes: defaultNormalMinutes,
		ComboMinutes:  defaultComboMinutes,
		MaxDays:       defaultMaxDays,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envNormalMinutes); v != "" {
		cfg.NormalMinutes = parsePositiveFloat(v, defaultNormalMinutes)
	}
	if v := os.Getenv(envComboMinutes); v != "" {
		cfg.ComboMinutes = parsePositiveFloat(v, defaultComboMinutes)
	}
	if v := os.Getenv(envMaxDays); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxDays = n
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parsePositiveFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
