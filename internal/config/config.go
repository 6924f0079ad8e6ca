package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Extraction backends selectable through OCR_BACKEND.
const (
	BackendOllama    = "ollama"
	BackendTesseract = "tesseract"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration

	OCRBackend         string
	OllamaHost         string
	OCRModel           string
	ChatModel          string
	TesseractLanguages []string

	AzureStorageAccount string
	AzureStorageKey     string
	AllowedImageHosts   []string

	LogLevel string
	LogFile  string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob URLs can be resolved as image sources.
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 5*time.Minute),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB

		SessionTTL:             parseDurationOrDefault("SESSION_TTL", time.Hour),
		SessionCleanupInterval: parseDurationOrDefault("SESSION_CLEANUP_INTERVAL", 10*time.Minute),

		OCRBackend:         strings.ToLower(getEnvOrDefault("OCR_BACKEND", BackendOllama)),
		OllamaHost:         getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		OCRModel:           getEnvOrDefault("OCR_MODEL", "gemma3:4b"),
		ChatModel:          getEnvOrDefault("CHAT_MODEL", "gemma3:4b"),
		TesseractLanguages: parseListOrDefault("TESSERACT_LANGUAGES", []string{"eng"}),

		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
		AllowedImageHosts:   parseListOrDefault("ALLOWED_IMAGE_HOSTS", nil),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)", c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.SessionTTL <= 0 || c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("session durations must be > 0 (got ttl=%s, cleanup=%s)", c.SessionTTL, c.SessionCleanupInterval)
	}
	switch c.OCRBackend {
	case BackendOllama, BackendTesseract:
	default:
		return fmt.Errorf("unsupported OCR_BACKEND: %q", c.OCRBackend)
	}
	u, err := url.Parse(c.OllamaHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid OLLAMA_HOST: %q", c.OllamaHost)
	}
	if strings.TrimSpace(c.OCRModel) == "" || strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("OCR_MODEL and CHAT_MODEL must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
