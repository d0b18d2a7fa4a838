// Package llm is the Language Model Gateway used by the AI vetting path.
// Callers must treat every response as untrusted text.
package llm

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Gateway completes a chat transcript and returns the raw model text.
type Gateway interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
	Name() string
}

// Config is shared by all providers; each reads the fields it needs.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ProviderError is returned by providers for any failed call.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
)

type ProviderFactory func(cfg Config) (Gateway, error)

var providers = map[string]ProviderFactory{}

// RegisterProvider binds a factory to a name. Providers call it from init().
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewProvider builds the named provider. "none" and "" return a nil
// Gateway and no error: the vetter then runs deterministic checks only.
func NewProvider(name string, cfg Config) (Gateway, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	factory, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported llm provider: %s (registered: %v)", name, Registered())
	}
	return factory(cfg)
}

func Registered() []string {
	out := make([]string, 0, len(providers))
	for k := range providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
