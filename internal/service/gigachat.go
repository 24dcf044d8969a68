package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"statement-parser/internal/models"
	"statement-parser/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

const gigaChatSystemInstruction = `You extract structured fields from bank and credit card statements.
Answer with a single JSON object and nothing else.`

// GigaChatClient is the hosted alternative to a local Ollama server.
type GigaChatClient struct {
	client *gigago.Client
	logger *zap.Logger

	mu     sync.Mutex
	models map[string]*gigago.GenerativeModel
}

func NewGigaChatClient(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatClient, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	return &GigaChatClient{
		client: client,
		logger: logger,
		models: make(map[string]*gigago.GenerativeModel),
	}, nil
}

func (c *GigaChatClient) model(name string) *gigago.GenerativeModel {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[name]; ok {
		return m
	}
	m := c.client.GenerativeModel(name)
	m.SystemInstruction = gigaChatSystemInstruction
	m.Temperature = 0.1
	c.models[name] = m
	return m
}

// Infer asks GigaChat for the fields. There is no retry here; the SDK
// handles token refresh itself.
func (c *GigaChatClient) Infer(ctx context.Context, model, prompt string) (*models.Fields, error) {
	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	}

	resp, err := c.model(model).Generate(ctx, messages)
	if err != nil {
		return nil, newProcessingError(KindInferenceConnection, fmt.Errorf("failed to generate response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, newProcessingError(KindInferenceDecode, errors.New("no choices in response"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	fields, err := DecodeFields(content)
	if err != nil {
		c.logger.Warn("GigaChat returned unusable content",
			zap.String("model", model),
			zap.String("content", truncateRunes(content, 200)),
		)
		return nil, err
	}
	return fields, nil
}

func (c *GigaChatClient) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
