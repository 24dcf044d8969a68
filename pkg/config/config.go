package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Inference InferenceConfig
	GigaChat  GigaChatConfig
	PDF       PDFConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

type UploadConfig struct {
	Dir string
}

// Provider names accepted by INFERENCE_PROVIDER.
const (
	ProviderOllama   = "ollama"
	ProviderGigaChat = "gigachat"
)

type InferenceConfig struct {
	Provider     string
	URL          string
	DefaultModel string
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
	Temperature  float64
	Seed         int
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

// PDF backend names accepted by PDF_BACKEND.
const (
	PDFBackendFitz = "fitz"
	PDFBackendPure = "pure"
)

type PDFConfig struct {
	Backend string
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work too (Docker/K8s)
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	// a batch runs inside one request, so the write deadline must cover every inference call
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "600"))
	bodyLimitMB, _ := strconv.Atoi(getEnv("SERVER_BODY_LIMIT_MB", "64"))
	inferenceTimeout, _ := strconv.Atoi(getEnv("INFERENCE_TIMEOUT", "120"))
	retries, _ := strconv.Atoi(getEnv("INFERENCE_RETRIES", "1"))
	retryDelayMS, _ := strconv.Atoi(getEnv("INFERENCE_RETRY_DELAY_MS", "1000"))
	temperature, _ := strconv.ParseFloat(getEnv("INFERENCE_TEMPERATURE", "0.1"), 64)
	seed, _ := strconv.Atoi(getEnv("INFERENCE_SEED", "42"))
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true"

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "5000"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
			BodyLimit:    bodyLimitMB * 1024 * 1024,
		},
		Upload: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "uploads"),
		},
		Inference: InferenceConfig{
			Provider:     strings.ToLower(getEnv("INFERENCE_PROVIDER", ProviderOllama)),
			URL:          getEnv("INFERENCE_URL", "http://localhost:11434/api/generate"),
			DefaultModel: getEnv("INFERENCE_MODEL", "llama3.2:1b"),
			Timeout:      time.Duration(inferenceTimeout) * time.Second,
			Retries:      retries,
			RetryDelay:   time.Duration(retryDelayMS) * time.Millisecond,
			Temperature:  temperature,
			Seed:         seed,
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: insecureSkipVerify,
		},
		PDF: PDFConfig{
			Backend: strings.ToLower(getEnv("PDF_BACKEND", PDFBackendFitz)),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Inference.Provider {
	case ProviderOllama:
		if c.Inference.URL == "" {
			return fmt.Errorf("INFERENCE_URL is required for provider %q", ProviderOllama)
		}
	case ProviderGigaChat:
		if c.GigaChat.APIKey == "" {
			return fmt.Errorf("GIGACHAT_API_KEY is required for provider %q", ProviderGigaChat)
		}
	default:
		return fmt.Errorf("unknown INFERENCE_PROVIDER %q", c.Inference.Provider)
	}

	switch c.PDF.Backend {
	case PDFBackendFitz, PDFBackendPure:
	default:
		return fmt.Errorf("unknown PDF_BACKEND %q", c.PDF.Backend)
	}

	if c.Inference.Retries < 0 {
		return fmt.Errorf("INFERENCE_RETRIES must not be negative")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
