package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

var _ schemas.LLMClient = (*AnthropicClient)(nil)

// AnthropicClient serves generation requests through the Anthropic Messages
// API.
type AnthropicClient struct {
	client anthropic.Client
	logger *zap.Logger
	cfg    config.LLMModelConfig
}

// NewAnthropicClient initializes the client.
func NewAnthropicClient(cfg config.LLMModelConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		logger: logger.Named("llm_client.anthropic"),
		cfg:    cfg,
	}, nil
}

// Generate sends the request and returns concatenated text blocks, retrying
// transient API failures.
func (c *AnthropicClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	params := c.buildParams(req)

	var out string
	operation := func() error {
		start := time.Now()
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) && !retryableStatus(apiErr.StatusCode) {
				return backoff.Permanent(fmt.Errorf("anthropic API error: %w", err))
			}
			c.logger.Warn("Transient error from Anthropic, retrying...", zap.Error(err))
			return err
		}

		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		if text == "" {
			return backoff.Permanent(fmt.Errorf("anthropic returned no text content (stop reason %s)", msg.StopReason))
		}

		c.logger.Info("LLM generation complete (Anthropic)",
			zap.Duration("duration", time.Since(start)),
			zap.Int64("prompt_tokens", msg.Usage.InputTokens),
			zap.Int64("completion_tokens", msg.Usage.OutputTokens),
		)
		out = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return "", err
	}
	return out, nil
}

func (c *AnthropicClient) buildParams(req schemas.GenerationRequest) anthropic.MessageNewParams {
	maxTokens := c.cfg.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.UserPrompt)}
	if len(req.ImagePNG) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			"image/png", base64.StdEncoding.EncodeToString(req.ImagePNG)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	temp := c.cfg.Temperature
	if req.Options.Temperature > 0 {
		temp = req.Options.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}
	if req.Options.TopP > 0 {
		params.TopP = anthropic.Float(req.Options.TopP)
	}
	return params
}

func (c *AnthropicClient) Close() error { return nil }
