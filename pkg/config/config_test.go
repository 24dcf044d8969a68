package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDER", "")
	t.Setenv("INFERENCE_URL", "")
	t.Setenv("PDF_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, ProviderOllama, cfg.Inference.Provider)
	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Inference.URL)
	assert.Equal(t, "llama3.2:1b", cfg.Inference.DefaultModel)
	assert.Equal(t, 120*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 1, cfg.Inference.Retries)
	assert.InDelta(t, 0.1, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, 42, cfg.Inference.Seed)
	assert.Equal(t, PDFBackendFitz, cfg.PDF.Backend)
	assert.Equal(t, 64*1024*1024, cfg.Server.BodyLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("INFERENCE_TIMEOUT", "5")
	t.Setenv("INFERENCE_RETRIES", "0")
	t.Setenv("PDF_BACKEND", "PURE")
	t.Setenv("UPLOAD_DIR", "/tmp/scratch")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 0, cfg.Inference.Retries)
	assert.Equal(t, PDFBackendPure, cfg.PDF.Backend)
	assert.Equal(t, "/tmp/scratch", cfg.Upload.Dir)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDER", "openai")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFERENCE_PROVIDER")
}

func TestLoad_GigaChatNeedsKey(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDER", "gigachat")
	t.Setenv("GIGACHAT_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GIGACHAT_API_KEY")
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := &Config{
		Inference: InferenceConfig{Provider: ProviderOllama, URL: "http://x"},
		PDF:       PDFConfig{Backend: "poppler"},
		Upload:    UploadConfig{Dir: "uploads"},
	}
	require.Error(t, cfg.Validate())
}
