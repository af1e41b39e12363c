package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Provider ids as they appear in the model catalog.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Options carries the per-model settings a chat model is constructed with.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float32
}

const defaultMaxTokens = 8192

// NewChatModel builds an eino chat model for the given provider. Unknown
// providers are a configuration error, not a runtime retry case.
func NewChatModel(ctx context.Context, providerID, apiKey string, opts Options) (einomodel.BaseChatModel, error) {
	providerID = strings.TrimSpace(providerID)
	if opts.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch providerID {
	case ProviderAnthropic:
		model, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:      apiKey,
			Model:       opts.Model,
			MaxTokens:   maxTokens,
			Temperature: opts.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return model, nil
	case ProviderOpenAI:
		cfg := &openai.ChatModelConfig{
			APIKey:    apiKey,
			Model:     opts.Model,
			MaxTokens: &maxTokens,
		}
		if opts.Temperature != nil {
			cfg.Temperature = opts.Temperature
		}
		model, err := openai.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return model, nil
	case ProviderGemini:
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		model, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: genaiClient,
			Model:  opts.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}
