package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                string
	Port                  string
	PortraitProvider      string
	GeminiAPIKey          string
	GeminiModel           string
	GeminiBaseURL         string
	GeminiTimeout         time.Duration
	MaxUploadBytes        int64
	SessionTTL            time.Duration
	SessionMax            int
	GenerationConcurrency int
	CORSAllowedOrigins    []string
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		PortraitProvider:      strings.ToLower(strings.TrimSpace(os.Getenv("PORTRAIT_PROVIDER"))),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout:         time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 120)),
		MaxUploadBytes:        int64(getEnvInt("MAX_UPLOAD_BYTES", 20*1024*1024)),
		SessionTTL:            time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),
		SessionMax:            getEnvInt("SESSION_MAX", 1000),
		GenerationConcurrency: getEnvInt("GENERATION_CONCURRENCY", 4),
		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	switch cfg.PortraitProvider {
	case "gemini", "genai-sdk":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider %q", cfg.PortraitProvider)
		}
	case "", "synthetic":
	default:
		return nil, fmt.Errorf("PORTRAIT_PROVIDER %q is not supported", cfg.PortraitProvider)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.SessionMax <= 0 {
		cfg.SessionMax = 1000
	}
	if cfg.GenerationConcurrency <= 0 {
		cfg.GenerationConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
