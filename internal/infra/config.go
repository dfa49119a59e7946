package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"adforge/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	StoragePath string

	NATSURL           string
	NATSSubjectPrefix string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	ReplicateModel    string

	BannerbearAPIKey      string
	BannerbearBaseURL     string
	BannerbearSyncBaseURL string

	// Templates maps each format to its overlay template identifier. Formats
	// without a template cannot be requested.
	Templates map[domain.Format]string

	GeminiAPIKey string
	GeminiModel  string
	BrowserBin   string

	ImagePollInterval      time.Duration
	ImagePollMaxAttempts   int
	OverlayPollInterval    time.Duration
	OverlayPollMaxAttempts int
	ProviderHTTPTimeout    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	ShutdownTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBMaxConns:             int32(getEnvInt("DB_MAX_CONNS", 10)),
		StoragePath:            getEnv("STORAGE_PATH", "./storage"),
		NATSURL:                os.Getenv("NATS_URL"),
		NATSSubjectPrefix:      getEnv("NATS_SUBJECT_PREFIX", "adforge.jobs"),
		ReplicateAPIToken:      strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:       getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:         getEnv("REPLICATE_MODEL", "black-forest-labs/flux-schnell"),
		BannerbearAPIKey:       strings.TrimSpace(os.Getenv("BANNERBEAR_API_KEY")),
		BannerbearBaseURL:      getEnv("BANNERBEAR_BASE_URL", "https://api.bannerbear.com/v2"),
		BannerbearSyncBaseURL:  getEnv("BANNERBEAR_SYNC_BASE_URL", "https://sync.api.bannerbear.com/v2"),
		Templates:              map[domain.Format]string{},
		GeminiAPIKey:           strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BrowserBin:             os.Getenv("BROWSER_BIN"),
		ImagePollInterval:      time.Millisecond * time.Duration(getEnvInt("IMAGE_POLL_INTERVAL_MS", 1000)),
		ImagePollMaxAttempts:   getEnvInt("IMAGE_POLL_MAX_ATTEMPTS", 120),
		OverlayPollInterval:    time.Millisecond * time.Duration(getEnvInt("OVERLAY_POLL_INTERVAL_MS", 1000)),
		OverlayPollMaxAttempts: getEnvInt("OVERLAY_POLL_MAX_ATTEMPTS", 60),
		ProviderHTTPTimeout:    time.Second * time.Duration(getEnvInt("PROVIDER_HTTP_TIMEOUT_SECONDS", 30)),
		HTTPReadTimeout:        time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:       time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:        time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:            splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:        time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
	}
	for _, format := range domain.OrderedFormats {
		key := "TEMPLATE_" + strings.ToUpper(string(format))
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			cfg.Templates[format] = id
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.ReplicateAPIToken == "" {
		missing = append(missing, "REPLICATE_API_TOKEN")
	}
	if c.BannerbearAPIKey == "" {
		missing = append(missing, "BANNERBEAR_API_KEY")
	}
	if len(c.Templates) == 0 {
		missing = append(missing, "TEMPLATE_FEED|TEMPLATE_STORY|TEMPLATE_REEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.ImagePollMaxAttempts <= 0 || c.OverlayPollMaxAttempts <= 0 {
		return fmt.Errorf("%w: poll attempt budgets must be positive", domain.ErrConfiguration)
	}
	if c.ImagePollInterval <= 0 || c.OverlayPollInterval <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", domain.ErrConfiguration)
	}
	return nil
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
