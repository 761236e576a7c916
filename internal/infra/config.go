package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	StorageDriverS3         = "s3"
	StorageDriverFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string
	DatabaseURL string

	StorageDriver      string
	StoragePath        string
	StorageBucket      string
	StorageRegion      string
	StorageEndpoint    string
	StorageAccessKey   string
	StorageSecretKey   string
	StoragePathStyle   bool
	StorageKeyPrefix   string
	BrowserBin         string
	BrowserNoSandbox   bool
	RenderIdleWindow   time.Duration
	FailureMarkTimeout time.Duration
	WorkerPollEvery    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RunRatePerMinute int
	TrustProxy       bool
}

// LoadConfig loads configuration from environment variables and applies
// defaults. Missing connection or bucket settings are reported before any
// queue access happens.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3)),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBucket:      os.Getenv("STORAGE_BUCKET"),
		StorageRegion:      getEnv("STORAGE_REGION", "us-east-1"),
		StorageEndpoint:    os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey:   os.Getenv("STORAGE_ACCESS_KEY_ID"),
		StorageSecretKey:   os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
		StoragePathStyle:   getEnvBool("STORAGE_PATH_STYLE", false),
		StorageKeyPrefix:   strings.Trim(os.Getenv("STORAGE_KEY_PREFIX"), "/"),
		BrowserBin:         os.Getenv("BROWSER_BIN"),
		BrowserNoSandbox:   getEnvBool("BROWSER_NO_SANDBOX", true),
		RenderIdleWindow:   time.Millisecond * time.Duration(getEnvInt("RENDER_IDLE_WINDOW_MS", 500)),
		FailureMarkTimeout: time.Second * time.Duration(getEnvInt("FAILURE_MARK_TIMEOUT_SECONDS", 10)),
		WorkerPollEvery:    time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 5)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RunRatePerMinute: getEnvInt("RUN_RATE_PER_MINUTE", 30),
		TrustProxy:       getEnvBool("TRUST_PROXY_HEADERS", false),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q is not supported", cfg.StoreDriver)
	}

	switch cfg.StorageDriver {
	case StorageDriverS3:
		if cfg.StorageBucket == "" {
			return nil, fmt.Errorf("STORAGE_BUCKET is required")
		}
		if (cfg.StorageAccessKey == "") != (cfg.StorageSecretKey == "") {
			return nil, fmt.Errorf("STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY must be set together")
		}
	case StorageDriverFilesystem:
		if strings.TrimSpace(cfg.StoragePath) == "" {
			return nil, fmt.Errorf("STORAGE_PATH is required")
		}
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER %q is not supported", cfg.StorageDriver)
	}

	return cfg, nil
}

// LoadEnvFiles loads .env and then .env.local when present. Variables
// already set in the environment win; missing files are skipped.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
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
