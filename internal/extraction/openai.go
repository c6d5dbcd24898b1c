package extraction

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemMessage = "You are an expert at reading invoices. You reply with a single JSON object and nothing else."

// OpenAI implements Generator against any OpenAI-compatible chat completion
// API. Pointing the base URL at Ollama (http://localhost:11434/v1) runs
// extraction against a local model.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates a new OpenAI-compatible generator. An empty baseURL uses
// the public OpenAI endpoint.
func NewOpenAI(apiKey string, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

// Generate sends the prompt as a single user message and asks for a JSON object reply
func (o *OpenAI) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling chat completion API: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no choices in chat completion", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the HTTP client needs no teardown
func (o *OpenAI) Close() error {
	return nil
}
