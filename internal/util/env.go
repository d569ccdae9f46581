package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key or defaultValue when unset or blank.
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func GetEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(GetEnv(key, ""), 64); err == nil {
		return f
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return b
	}
	return defaultValue
}

// GetEnvDuration accepts Go duration strings ("90s", "24h").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}
