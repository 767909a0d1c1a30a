package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

var _ schemas.LLMClient = (*GeminiClient)(nil)

// GeminiClient serves generation requests through the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
	cfg    config.LLMModelConfig
}

// NewGeminiClient initializes the client against the public Gemini API.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
		logger: logger.Named("llm_client.gemini"),
		cfg:    cfg,
	}, nil
}

// Generate sends the request and returns the model text, retrying transient
// API failures.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	contents := c.buildContents(req)
	genCfg := c.buildGenerateConfig(req)

	var out string
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) && !retryableStatus(apiErr.Code) {
				return backoff.Permanent(fmt.Errorf("gemini API error: %w", err))
			}
			c.logger.Warn("Transient error from Gemini, retrying...", zap.Error(err))
			return err
		}

		text := resp.Text()
		if text == "" {
			return backoff.Permanent(fmt.Errorf("gemini returned no text content"))
		}

		if resp.UsageMetadata != nil {
			c.logger.Info("LLM generation complete (Gemini)",
				zap.Duration("duration", time.Since(start)),
				zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
				zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
				zap.Int32("total_tokens", resp.UsageMetadata.TotalTokenCount),
			)
		}
		out = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return "", err
	}
	return out, nil
}

func (c *GeminiClient) buildContents(req schemas.GenerationRequest) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.UserPrompt)}
	if len(req.ImagePNG) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.ImagePNG, "image/png"))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (c *GeminiClient) buildGenerateConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temp := c.cfg.Temperature
	if req.Options.Temperature > 0 {
		temp = req.Options.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.Options.TopP > 0 {
		genCfg.TopP = genai.Ptr(float32(req.Options.TopP))
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}
	return genCfg
}

// Close releases nothing; the genai client holds no persistent connection.
func (c *GeminiClient) Close() error { return nil }
