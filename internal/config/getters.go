package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// LevelCritical is one step above slog.LevelError. The config surface keeps
// the upstream level names (CRITICAL..NOTSET) so deployments stay portable.
const LevelCritical = slog.LevelError + 4

// GetEnvStr returns a string environment variable value or a default if not set.
//
// Example:
//
//	s := GetEnvStr("HOST", "localhost")
func GetEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// GetEnvDuration returns the environment variable value or a default if not set.
//
// Example:
//
//	d := GetEnvDuration("TIMEOUT", 5*time.Minute)
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}

	return defaultValue
}

// ParseLogLevel maps a configured level name onto a slog.Level.
//
// Accepted names: CRITICAL, ERROR, WARNING, INFO, DEBUG, NOTSET
// (case-insensitive). Unknown names fall back to the default.
func ParseLogLevel(name string, defaultValue slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL":
		return LevelCritical
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "INFO", "NOTSET":
		return slog.LevelInfo
	case "DEBUG":
		return slog.LevelDebug
	}

	return defaultValue
}

// IsValidLogLevel reports whether name is one of the accepted level names.
func IsValidLogLevel(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG", "NOTSET":
		return true
	}

	return false
}
