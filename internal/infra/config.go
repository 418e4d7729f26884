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
	AppEnv            string
	Port              string
	DatabaseURL       string
	JWTSecret         string
	PublicBaseURL     string
	StoragePath       string
	StorageSignSecret string
	SignedURLTTL      time.Duration
	GeoIPDBPath       string

	PixelMuseAPIKey    string
	PixelMuseBaseURL   string
	PixelMuseModel     string
	MotionForgeAPIKey  string
	MotionForgeBaseURL string
	MotionForgeModel   string

	ImageCostCredits int64
	VideoCostCredits int64

	WorkerMaxJobs   int
	SweepInterval   time.Duration
	StuckThreshold  time.Duration
	ProviderTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
	AdminUserIDs     []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", ""),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageSignSecret: os.Getenv("STORAGE_SIGN_SECRET"),
		SignedURLTTL:      time.Minute * time.Duration(getEnvInt("SIGNED_URL_TTL_MINUTES", 60)),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),

		PixelMuseAPIKey:    os.Getenv("PIXELMUSE_API_KEY"),
		PixelMuseBaseURL:   getEnv("PIXELMUSE_BASE_URL", "https://api.pixelmuse.dev/v1"),
		PixelMuseModel:     getEnv("PIXELMUSE_MODEL", "pixelmuse-turbo"),
		MotionForgeAPIKey:  os.Getenv("MOTIONFORGE_API_KEY"),
		MotionForgeBaseURL: getEnv("MOTIONFORGE_BASE_URL", "https://api.motionforge.dev/v1"),
		MotionForgeModel:   getEnv("MOTIONFORGE_MODEL", "forge-motion-1"),

		ImageCostCredits: int64(getEnvInt("IMAGE_COST_CREDITS", 5)),
		VideoCostCredits: int64(getEnvInt("VIDEO_COST_CREDITS", 10)),

		WorkerMaxJobs:   getEnvInt("WORKER_MAX_JOBS", 10),
		SweepInterval:   time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		StuckThreshold:  time.Minute * time.Duration(getEnvInt("STUCK_THRESHOLD_MINUTES", 30)),
		ProviderTimeout: time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 600)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		AdminUserIDs:     splitList(os.Getenv("ADMIN_USER_IDS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StorageSignSecret == "" {
		cfg.StorageSignSecret = cfg.JWTSecret
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
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

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
