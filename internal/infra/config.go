package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	GeminiAPIKey          string
	GeminiModel           string
	GeminiBaseURL         string
	GeminiMaxOutputTokens int
	PromptTimeout         time.Duration

	GoogleAPIKey        string
	VeoModel            string
	VideoPollInterval   time.Duration
	VideoPollTimeout    time.Duration
	ReferenceImageLimit time.Duration

	BFLAPIKey          string
	BFLBaseURL         string
	BFLModel           string
	ImagePollInterval  time.Duration
	ImagePollTimeout   time.Duration
	ImageConcurrency   int
	ImageSuffixEnabled bool

	EHRMaxChars    int
	MaxUploadBytes int64
	StaticDir      string

	DatabaseURL        string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Credentials are optional here; each endpoint checks the ones it needs.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "5001"),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           getEnv("GEMINI_MODEL_NAME", "gemini-pro-latest"),
		GeminiBaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiMaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
		PromptTimeout:         time.Second * time.Duration(getEnvInt("PROMPT_TIMEOUT_SECONDS", 60)),
		GoogleAPIKey:          strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		VeoModel:              getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		VideoPollInterval:     time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 10)),
		VideoPollTimeout:      time.Second * time.Duration(getEnvInt("VIDEO_POLL_TIMEOUT_SECONDS", 600)),
		ReferenceImageLimit:   time.Second * time.Duration(getEnvInt("REFERENCE_IMAGE_TIMEOUT_SECONDS", 30)),
		BFLAPIKey:             strings.TrimSpace(os.Getenv("BFL_API_KEY")),
		BFLBaseURL:            getEnv("BFL_BASE_URL", "https://api.bfl.ai/v1"),
		BFLModel:              getEnv("BFL_MODEL", "flux-kontext-pro"),
		ImagePollInterval:     time.Millisecond * time.Duration(getEnvInt("IMAGE_POLL_INTERVAL_MS", 500)),
		ImagePollTimeout:      time.Second * time.Duration(getEnvInt("IMAGE_POLL_TIMEOUT_SECONDS", 90)),
		ImageConcurrency:      getEnvInt("IMAGE_CONCURRENCY", 4),
		ImageSuffixEnabled:    getEnvBool("IMAGE_SUFFIX_ENABLED", true),
		EHRMaxChars:           getEnvInt("EHR_MAX_CHARS", 8000),
		MaxUploadBytes:        int64(getEnvInt("MAX_UPLOAD_MB", 32)) << 20,
		StaticDir:             getEnv("STATIC_DIR", "static"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.ImageConcurrency <= 0 {
		cfg.ImageConcurrency = 1
	}
	if cfg.EHRMaxChars <= 0 {
		cfg.EHRMaxChars = 8000
	}

	return cfg, nil
}

// HasDatabase reports whether case persistence is configured.
func (c *Config) HasDatabase() bool {
	return c != nil && c.DatabaseURL != ""
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
