// Package openai talks to any OpenAI-compatible /chat/completions endpoint
// (OpenAI, vLLM, Ollama, LM Studio).
package openai

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

	"github.com/mind-engage/examprep/internal/llm"
)

const providerName = "openai"

// maxResponseBytes caps how much of a successful completion body is decoded.
const maxResponseBytes = 4 << 20

func init() {
	llm.RegisterProvider(providerName, func(cfg llm.Config) (llm.Gateway, error) {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

func New(cfg llm.Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "base url is required"}
	}
	if cfg.Model == "" {
		return nil, &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "model is required"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (c *Client) Name() string { return providerName }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	req := chatRequest{Model: c.model, Messages: messages, Temperature: &temperature}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		code := llm.ErrCodeServiceDown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			code = llm.ErrCodeTimeout
		}
		return "", &llm.ProviderError{Provider: providerName, Code: code, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		code := llm.ErrCodeServiceDown
		switch res.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = llm.ErrCodeAPIKey
		case http.StatusTooManyRequests:
			code = llm.ErrCodeRateLimit
		case http.StatusBadRequest:
			code = llm.ErrCodeInvalidInput
		}
		return "", &llm.ProviderError{
			Provider: providerName,
			Code:     code,
			Message:  fmt.Sprintf("chat completion: %s: %s", res.Status, strings.TrimSpace(string(snippet))),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "decode response", Err: err}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "empty response generated"}
	}
	return out.Choices[0].Message.Content, nil
}
