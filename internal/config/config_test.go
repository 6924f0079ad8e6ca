package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "REQUEST_TIMEOUT", "OCR_BACKEND", "OLLAMA_HOST", "OCR_MODEL", "CHAT_MODEL", "SESSION_TTL", "ALLOWED_IMAGE_HOSTS", "TESSERACT_LANGUAGES"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, BackendOllama, cfg.OCRBackend)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaHost)
	assert.Equal(t, "gemma3:4b", cfg.OCRModel)
	assert.Equal(t, []string{"eng"}, cfg.TesseractLanguages)
	assert.Empty(t, cfg.AllowedImageHosts)
	assert.False(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OCR_BACKEND", "Tesseract")
	t.Setenv("TESSERACT_LANGUAGES", "eng, fra ,")
	t.Setenv("ALLOWED_IMAGE_HOSTS", "images.example.com")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "key")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendTesseract, cfg.OCRBackend)
	assert.Equal(t, []string{"eng", "fra"}, cfg.TesseractLanguages)
	assert.Equal(t, []string{"images.example.com"}, cfg.AllowedImageHosts)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not numeric", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"unknown backend", "OCR_BACKEND", "paddle"},
		{"ollama host without scheme", "OLLAMA_HOST", "localhost"},
		{"zero body size", "MAX_REQUEST_BODY_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
