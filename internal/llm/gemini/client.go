package gemini

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/mind-engage/examprep/internal/llm"
)

const providerName = "gemini"

func init() {
	llm.RegisterProvider(providerName, func(cfg llm.Config) (llm.Gateway, error) {
		c, err := NewClient(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Client is a Gemini-backed Gateway.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, cfg llm.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeAPIKey, Message: "GEMINI_API_KEY is required"}
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "failed to create gemini client",
			Err:      err,
		}
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Name() string { return providerName }

// Complete flattens the transcript into one prompt. Sampling parameters are
// left to the model defaults; the vetting prompt pins the output format.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, _ float64, _ int) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(flatten(messages)), nil)
	if err != nil {
		code := llm.ErrCodeServiceDown
		if isRateLimitError(err) {
			code = llm.ErrCodeRateLimit
		} else if errors.Is(err, context.DeadlineExceeded) {
			code = llm.ErrCodeTimeout
		}
		return "", &llm.ProviderError{Provider: providerName, Code: code, Message: "generate content", Err: err}
	}
	if result == nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "no response generated"}
	}
	text, err := result.Text()
	if err != nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "extract response text", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "empty response generated"}
	}
	return text, nil
}

func flatten(messages []llm.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role == llm.RoleSystem {
			b.WriteString("Instructions:\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota")
}
