package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	HTTPAddr        string
	DBDSN           string
	MigrationsDir   string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	SeedFile        string
	WarningLimit    int64
	ErrorLimit      int64
	SessionTTL      time.Duration
	LogLevel        string
	LogFormat       string
}

func loadConfig() config {
	return config{
		HTTPAddr:        strEnv("TRACKHISTORY_HTTP_ADDR", ":8080"),
		DBDSN:           strEnv("TRACKHISTORY_DB_DSN", ""),
		MigrationsDir:   strEnv("TRACKHISTORY_MIGRATIONS_DIR", ""),
		UpstreamURL:     strEnv("TRACKHISTORY_UPSTREAM_URL", ""),
		UpstreamTimeout: time.Duration(intEnv("TRACKHISTORY_UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		SeedFile:        strEnv("TRACKHISTORY_SEED_FILE", ""),
		WarningLimit:    int64(intEnv("TRACKHISTORY_WARNING_LIMIT", 3000)),
		ErrorLimit:      int64(intEnv("TRACKHISTORY_ERROR_LIMIT", 15000)),
		SessionTTL:      time.Duration(intEnv("TRACKHISTORY_SESSION_TTL_SECONDS", 1800)) * time.Second,
		LogLevel:        strEnv("TRACKHISTORY_LOG_LEVEL", "info"),
		LogFormat:       strEnv("TRACKHISTORY_LOG_FORMAT", "text"),
	}
}

func strEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
