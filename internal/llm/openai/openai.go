// Package openai implements domain.Generator for OpenAI-compatible chat
// completion APIs (OpenAI, Ollama, vLLM, Groq...).
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"ambedkargpt/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

// Client sends the prompt as a single user message.
type Client struct {
	client *goopenai.Client
	model  string
}

// New creates a chat completion client. An API key is only mandatory for the
// public OpenAI endpoint; local servers such as Ollama ignore it.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && cfg.BaseURL == defaultBaseURL {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		return nil, errors.New("generator model is required")
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	return &Client{client: goopenai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature(opts.Temperature),
		Stop:        opts.Stop,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature maps 0 to the smallest positive float32. The request field is
// omitempty, so a literal 0 would be dropped and the server default used.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

var _ domain.Generator = (*Client)(nil)
