package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"statement-parser/internal/models"
	"statement-parser/pkg/config"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Inferencer turns a prompt into the structured fields the model returned.
type Inferencer interface {
	Infer(ctx context.Context, model, prompt string) (*models.Fields, error)
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	Seed        int     `json:"seed"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// fieldsSchema accepts a flat object of scalar values.
const fieldsSchema = `{
	"type": "object",
	"additionalProperties": {"type": ["string", "number", "boolean", "null"]},
	"properties": {
		"issuer": {"type": ["string", "number", "null"]},
		"account_last_4": {"type": ["string", "number", "null"]},
		"statement_date": {"type": ["string", "null"]},
		"due_date": {"type": ["string", "null"]},
		"total_balance": {"type": ["string", "number", "null"]}
	}
}`

var compiledFieldsSchema = jsonschema.MustCompileString("fields.json", fieldsSchema)

// OllamaClient calls a local /api/generate endpoint.
type OllamaClient struct {
	url         string
	temperature float64
	seed        int
	retries     int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewOllamaClient(cfg *config.InferenceConfig, logger *zap.Logger) *OllamaClient {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Millisecond
	}
	return &OllamaClient{
		url:         cfg.URL,
		temperature: cfg.Temperature,
		seed:        cfg.Seed,
		retries:     cfg.Retries,
		retryDelay:  retryDelay,
		// bounds each attempt
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Infer sends one non-streamed generate request. Connection failures and
// 5xx responses are retried up to the configured count; 4xx and decode
// failures are returned at once.
func (c *OllamaClient) Infer(ctx context.Context, model, prompt string) (*models.Fields, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: generateOptions{
			Temperature: c.temperature,
			Seed:        c.seed,
		},
	})
	if err != nil {
		return nil, newProcessingError(KindInferenceConnection, fmt.Errorf("failed to marshal request: %w", err))
	}

	var fields *models.Fields
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.retries), retry.NewConstant(c.retryDelay))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		raw, err := c.post(ctx, body)
		if err != nil {
			var pe *ProcessingError
			if errors.As(err, &pe) && pe.Kind == KindInferenceConnection && (pe.StatusCode == 0 || pe.StatusCode >= 500) && ctx.Err() == nil {
				c.logger.Warn("Inference request failed",
					zap.String("model", model),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return retry.RetryableError(err)
			}
			return err
		}

		fields, err = decodeGenerateResponse(raw)
		return err
	})
	if err != nil {
		if _, ok := FailureKindOf(err); !ok {
			// context cancelled between attempts
			err = newProcessingError(KindInferenceConnection, err)
		}
		return nil, err
	}

	c.logger.Info("Inference response decoded",
		zap.String("model", model),
		zap.Int("attempts", attempt),
		zap.Int("fields", fields.Len()),
	)
	return fields, nil
}

func (c *OllamaClient) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, newProcessingError(KindInferenceConnection, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newProcessingError(KindInferenceConnection, fmt.Errorf("failed to reach inference server: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProcessingError(KindInferenceConnection, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode/100 != 2 {
		return nil, &ProcessingError{
			Kind:       KindInferenceConnection,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("inference server returned %s: %s", resp.Status, truncateRunes(string(raw), 200)),
		}
	}
	return raw, nil
}

func decodeGenerateResponse(raw []byte) (*models.Fields, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, newProcessingError(KindInferenceDecode, fmt.Errorf("failed to decode response body: %w", err))
	}
	if resp.Response == nil {
		return nil, newProcessingError(KindInferenceDecode, errors.New("response field missing"))
	}
	return DecodeFields(*resp.Response)
}

// DecodeFields parses the model's JSON text into ordered fields.
// Markdown code fences around the object are tolerated.
func DecodeFields(content string) (*models.Fields, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, newProcessingError(KindInferenceDecode, fmt.Errorf("model output is not JSON: %w", err))
	}
	if err := compiledFieldsSchema.Validate(doc); err != nil {
		return nil, newProcessingError(KindInferenceDecode, fmt.Errorf("model output does not match schema: %w", err))
	}

	fields := models.NewFields()
	if err := json.Unmarshal([]byte(content), fields); err != nil {
		return nil, newProcessingError(KindInferenceDecode, err)
	}
	return fields, nil
}
