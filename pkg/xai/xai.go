// Package xai builds openai-go clients configured for the x.ai API.
package xai

import (
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type Config struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.x.ai/v1"`
	APIKey      string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	ChatModel   string        `envconfig:"CHAT_MODEL" split_words:"true" default:"grok-4-latest"`
	SearchModel string        `envconfig:"SEARCH_MODEL" split_words:"true" default:"gpt-4o-search-preview"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// NewClient creates an openai-go client for the configured endpoint.
// Returns nil when the API key is missing.
func NewClient(cfg Config) *openaisdk.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
