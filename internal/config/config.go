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

// Recolor strategies selectable at runtime.
const (
	StrategyRemote = "remote"
	StrategyLocal  = "local"
	StrategyDirect = "direct"
)

// Remote job backends.
const (
	BackendDashScope = "dashscope"
	BackendProxy     = "proxy"
	BackendReplicate = "replicate"
)

// Config holds runtime configuration values.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	MaxUploadMB int64

	HTTP     HTTPConfig
	Session  SessionConfig
	Media    MediaConfig
	Supabase SupabaseConfig
	Recolor  RecolorConfig
	Gemini   GeminiConfig
	Imagen   ImagenConfig
	Accounts AccountsConfig
}

// HTTPConfig controls server timeouts and the per-IP limiter.
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimitEvery time.Duration
	RateLimitBurst int
}

// SessionConfig configures the signed admin session cookie.
type SessionConfig struct {
	Secret     string
	Duration   time.Duration
	CookieName string
	Secure     bool
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicURL       string
	KeyPrefix       string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	LocalDir        string
	LocalBaseURL    string
}

// SupabaseConfig points at a hosted Supabase project used for tables and storage.
type SupabaseConfig struct {
	URL           string
	Key           string
	StorageBucket string
}

// RecolorConfig selects and tunes the recolor strategy.
type RecolorConfig struct {
	Strategy          string
	RemoteBackend     string
	DirectEditBackend string
	PollInterval      time.Duration
	MaxAttempts       int
	DashScopeBaseURL  string
	DashScopeAPIKey   string
	DashScopeModel    string
	ProxyURL          string
	// ProxyToken authorizes machine callers of the job proxies and is sent by
	// the proxy backend.
	ProxyToken        string
	ReplicateBaseURL  string
	ReplicateToken    string
	ReplicateVersion  string
}

// GeminiConfig holds the multimodal model settings used for analysis and direct edit.
type GeminiConfig struct {
	APIKey        string
	AnalysisModel string
	EditModel     string
	Timeout       time.Duration
}

// ImagenConfig describes the optional Vertex Imagen edit backend.
type ImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// AccountsConfig seeds the default administrator of a fresh store.
type AccountsConfig struct {
	DefaultAdminUser     string
	DefaultAdminPassword string
	DefaultCredits       int
}

// Load reads .env files when present and then builds the configuration from the environment.
func Load() (Config, error) {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			if err := godotenv.Load(name); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", name, err)
			}
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() Config {
	return Config{
		AppEnv:      strings.ToLower(getenv("APP_ENV", "development")),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MaxUploadMB: int64(getenvInt("MAX_UPLOAD_MB", 10)),
		HTTP: HTTPConfig{
			ReadTimeout:    getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getenvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:    getenvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			RateLimitEvery: getenvDuration("RATE_LIMIT_EVERY", 500*time.Millisecond),
			RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 20),
		},
		Session: SessionConfig{
			Secret:     os.Getenv("SESSION_SECRET"),
			Duration:   getenvDuration("SESSION_DURATION", 7*24*time.Hour),
			CookieName: getenv("SESSION_COOKIE", "furnicolor_session"),
			Secure:     getenvBool("SESSION_SECURE_COOKIE", false),
		},
		Media: MediaConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:       strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			LocalDir:        os.Getenv("MEDIA_LOCAL_DIR"),
			LocalBaseURL:    os.Getenv("MEDIA_LOCAL_BASE_URL"),
		},
		Supabase: SupabaseConfig{
			URL:           strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			Key:           os.Getenv("SUPABASE_KEY"),
			StorageBucket: getenv("SUPABASE_STORAGE_BUCKET", "textures"),
		},
		Recolor: RecolorConfig{
			Strategy:          strings.ToLower(getenv("RECOLOR_STRATEGY", StrategyLocal)),
			RemoteBackend:     strings.ToLower(getenv("RECOLOR_REMOTE_BACKEND", BackendDashScope)),
			DirectEditBackend: strings.ToLower(getenv("DIRECT_EDIT_BACKEND", "gemini")),
			PollInterval:      getenvDuration("RECOLOR_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:       getenvInt("RECOLOR_MAX_ATTEMPTS", 30),
			DashScopeBaseURL:  os.Getenv("DASHSCOPE_BASE_URL"),
			DashScopeAPIKey:   os.Getenv("DASHSCOPE_API_KEY"),
			DashScopeModel:    os.Getenv("DASHSCOPE_MODEL"),
			ProxyURL:          os.Getenv("RECOLOR_PROXY_URL"),
			ProxyToken:        os.Getenv("RECOLOR_PROXY_TOKEN"),
			ReplicateBaseURL:  os.Getenv("REPLICATE_BASE_URL"),
			ReplicateToken:    os.Getenv("REPLICATE_API_TOKEN"),
			ReplicateVersion:  os.Getenv("REPLICATE_MODEL_VERSION"),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			AnalysisModel: os.Getenv("GEMINI_ANALYSIS_MODEL"),
			EditModel:     os.Getenv("GEMINI_EDIT_MODEL"),
			Timeout:       getenvDuration("GEMINI_TIMEOUT", 90*time.Second),
		},
		Imagen: ImagenConfig{
			ProjectID:          os.Getenv("IMAGEN_PROJECT_ID"),
			Location:           getenv("IMAGEN_LOCATION", "us-central1"),
			Model:              getenv("IMAGEN_MODEL", "imagen-3.0-capability-001"),
			APIKey:             os.Getenv("IMAGEN_API_KEY"),
			ServiceAccount:     os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			ServiceAccountJSON: os.Getenv("IMAGEN_SERVICE_ACCOUNT_JSON"),
		},
		Accounts: AccountsConfig{
			DefaultAdminUser:     getenv("DEFAULT_ADMIN_USER", "admin"),
			DefaultAdminPassword: getenv("DEFAULT_ADMIN_PASSWORD", "13142538"),
			DefaultCredits:       getenvInt("DEFAULT_CREDITS", 100),
		},
	}
}

// Development reports whether the service runs with developer conveniences.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// Validate reports configuration combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("APP_PORT cannot be empty"))
	}
	if !c.Development() && c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required outside development"))
	}
	switch c.Recolor.Strategy {
	case StrategyRemote, StrategyLocal, StrategyDirect:
	default:
		errs = append(errs, fmt.Errorf("RECOLOR_STRATEGY %q must be remote, local or direct", c.Recolor.Strategy))
	}
	if c.Recolor.Strategy == StrategyRemote {
		switch c.Recolor.RemoteBackend {
		case BackendDashScope, BackendProxy, BackendReplicate:
		default:
			errs = append(errs, fmt.Errorf("RECOLOR_REMOTE_BACKEND %q is not supported", c.Recolor.RemoteBackend))
		}
	}
	if c.Recolor.PollInterval <= 0 {
		errs = append(errs, errors.New("RECOLOR_POLL_INTERVAL must be positive"))
	}
	if c.Recolor.MaxAttempts <= 0 {
		errs = append(errs, errors.New("RECOLOR_MAX_ATTEMPTS must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if (c.Supabase.URL == "") != (c.Supabase.Key == "") {
		errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY must be set together"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
