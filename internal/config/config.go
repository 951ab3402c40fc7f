package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	HTTPPort          string
	LogLevel          string
	LogEncoding       string
	DatabaseURL       string
	GeminiAPIKey      string
	BypassHeader      string
	DefaultThreshold  float64
	DefaultVariations int
	DownloadDir       string
	DownloadDelay     time.Duration
	RequestTimeout    time.Duration
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment and an optional .env file.
func LoadConfig() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// FromEnv reads the configuration without touching .env or AppConfig.
func FromEnv() Config {
	return Config{
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8000"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogEncoding:       getEnv("LOG_ENCODING", "console"),
		DatabaseURL:       getEnv("DATABASE_URL", "studio_history.db"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		BypassHeader:      getEnv("BYPASS_HEADER", "ngrok-skip-browser-warning"),
		DefaultThreshold:  getEnvAsFloat("DEFAULT_THRESHOLD", 0.85),
		DefaultVariations: getEnvAsInt("DEFAULT_VARIATIONS", 2),
		DownloadDir:       getEnv("DOWNLOAD_DIR", "."),
		DownloadDelay:     getEnvAsDuration("DOWNLOAD_DELAY", 500*time.Millisecond),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 0),
	}
}

func (c Config) Validate() error {
	u, err := url.ParseRequestURI(c.APIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.DefaultVariations < 1 {
		return fmt.Errorf("DEFAULT_VARIATIONS must be at least 1, got %d", c.DefaultVariations)
	}
	if c.DefaultThreshold < 0.6 || c.DefaultThreshold > 0.95 {
		return fmt.Errorf("DEFAULT_THRESHOLD must be within 0.60-0.95, got %.2f", c.DefaultThreshold)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
