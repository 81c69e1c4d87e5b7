// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// OpenAIClient implements schemas.LLMClient for OpenAI-compatible chat
// completion endpoints. Screenshots are attached as base64 data URLs in a
// multi-content user message.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	config  config.LLMModelConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	backoffFactory func() backoff.BackOff
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient initializes the client. Endpoint overrides the default base
// URL, supporting self-hosted OpenAI-compatible gateways.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.APITimeout}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		config:  cfg,
		logger:  logger.Named("llm_client.openai"),
		limiter: limiter,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts and screenshots through the chat completions API.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	chatReq := c.buildChatRequest(req)

	var responseContent string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return c.classifyError(err)
		}

		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}

		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("images", len(req.Images)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)

		responseContent = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// Close releases client resources.
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) buildChatRequest(req schemas.GenerationRequest) openai.ChatCompletionRequest {
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		userMsg.Content = req.UserPrompt
	} else {
		parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.UserPrompt,
		})
		userMsg.MultiContent = parts
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			userMsg,
		},
		Temperature: float32(req.Options.Temperature),
		MaxTokens:   c.config.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

// classifyError decides whether an API error is worth retrying.
func (c *OpenAIClient) classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("OpenAI API returned error", zap.Int("status", apiErr.HTTPStatusCode), zap.Error(err))
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	// Transport-level failures are transient.
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}
