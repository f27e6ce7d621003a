package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	LogLevel  string
	LogFormat string

	// Locale used to turn timestamps into calendar days.
	Timezone string

	RedisAddr    string
	RedisChannel string

	CatalogPath string

	AnalyticsInterval time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
		Timezone:             getenv("APP_TIMEZONE", "UTC"),
		RedisAddr:            getenv("REDIS_ADDR", ""),
		RedisChannel:         getenv("REDIS_CHANNEL", "ritual.events"),
		CatalogPath:          getenv("CATALOG_PATH", ""),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	interval, err := time.ParseDuration(getenv("ANALYTICS_WORKER_INTERVAL", "800ms"))
	if err != nil || interval <= 0 {
		return cfg, fmt.Errorf("invalid ANALYTICS_WORKER_INTERVAL")
	}
	cfg.AnalyticsInterval = interval

	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
