package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DriverR2     = "r2"
	DriverMemory = "memory"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	Region          string
	UsePathStyle    bool
}

type Config struct {
	Port          string
	AllowOrigins  string
	LogLevel      string
	StorageDriver string
	PublicURL     string
	StaticDir     string
	RateLimit     int
	R2            R2Config
}

func LoadConfig() *Config {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		AllowOrigins:  getEnv("ALLOW_ORIGINS", "*"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverR2)),
		PublicURL:     strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		StaticDir:     os.Getenv("STATIC_DIR"),
		RateLimit:     getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	// R2 config
	cfg.R2.AccountID = os.Getenv("R2_ACCOUNT_ID")
	cfg.R2.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	cfg.R2.SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	cfg.R2.Bucket = os.Getenv("R2_BUCKET")
	cfg.R2.Region = getEnv("R2_REGION", "auto")
	cfg.R2.UsePathStyle = os.Getenv("R2_USE_PATH_STYLE") == "true"
	cfg.R2.Endpoint = os.Getenv("R2_ENDPOINT")
	if cfg.R2.Endpoint == "" && cfg.R2.AccountID != "" {
		cfg.R2.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID)
	}

	return cfg
}

// Validate reports missing settings for the selected storage driver.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
		return nil
	case DriverR2:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	var missing []string
	if c.R2.Endpoint == "" {
		missing = append(missing, "R2_ACCOUNT_ID or R2_ENDPOINT")
	}
	if c.R2.AccessKeyID == "" {
		missing = append(missing, "R2_ACCESS_KEY_ID")
	}
	if c.R2.SecretAccessKey == "" {
		missing = append(missing, "R2_SECRET_ACCESS_KEY")
	}
	if c.R2.Bucket == "" {
		missing = append(missing, "R2_BUCKET")
	}
	if len(missing) > 0 {
		return errors.New("missing r2 settings: " + strings.Join(missing, ", "))
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
