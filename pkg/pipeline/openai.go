package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLMClient implements LLMClient using the OpenAI chat completions API.
type OpenAILLMClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	log       *slog.Logger
}

// NewOpenAILLMClient creates a new OpenAI-based LLM client.
func NewOpenAILLMClient(log *slog.Logger, apiKey, model string, maxTokens int) (*OpenAILLMClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAILLMClient{
		client:    openai.NewClient(apiKey),
		model:     model,
		maxTokens: maxTokens,
		log:       log,
	}, nil
}

// Complete sends the system and user prompts as a two-message chat and returns the first choice.
func (c *OpenAILLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	c.log.Debug("openai: API call starting", "model", c.model, "userPromptLen", len(userPrompt))

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		c.log.Error("openai: API call failed", "duration", duration, "error", err)
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	c.log.Info("openai: API call completed", "model", c.model, "duration", duration, "finishReason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
