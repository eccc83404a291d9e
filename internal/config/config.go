// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	LogLevel    string

	AdminSecret string
	JWTSecret   string
	CORSOrigins []string

	SourcesFile      string
	Location         *time.Location
	PostedDatePolicy string
	UserKeywords     []string
	PreferredStates  []string

	BackgroundSync     bool
	SyncTick           time.Duration
	BackgroundInterval time.Duration
	FetchTimeout       time.Duration
	StaleRunAfter      time.Duration

	OllamaHost  string
	OllamaModel string
}

// Load reads the environment. Unset variables take their defaults; values
// that fail to parse are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		DatabaseURL:        r.str("DATABASE_URL", ""),
		Port:               r.str("PORT", "8081"),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		AdminSecret:        r.str("ADMIN_SECRET", ""),
		JWTSecret:          r.str("JWT_SECRET", ""),
		CORSOrigins:        r.list("CORS_ORIGINS", []string{"http://localhost:4200"}),
		SourcesFile:        r.str("SOURCES_FILE", ""),
		PostedDatePolicy:   strings.ToLower(r.str("POSTED_DATE_POLICY", "today")),
		UserKeywords:       r.list("USER_KEYWORDS", nil),
		PreferredStates:    r.list("PREFERRED_STATES", nil),
		BackgroundSync:     r.boolean("BACKGROUND_SYNC", true),
		SyncTick:           r.duration("SYNC_TICK", 5*time.Minute),
		BackgroundInterval: r.duration("BACKGROUND_SYNC_INTERVAL", 30*time.Minute),
		FetchTimeout:       r.duration("FETCH_TIMEOUT", 90*time.Second),
		StaleRunAfter:      r.duration("STALE_RUN_AFTER", 2*time.Hour),
		OllamaHost:         r.str("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:        r.str("OLLAMA_MODEL", "llama3.2:latest"),
	}

	tz := r.str("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("TIMEZONE %q: %w", tz, err))
		loc = time.UTC
	}
	cfg.Location = loc

	switch cfg.PostedDatePolicy {
	case "today", "none":
	default:
		r.errs = append(r.errs, fmt.Errorf("POSTED_DATE_POLICY %q: want today or none", cfg.PostedDatePolicy))
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
