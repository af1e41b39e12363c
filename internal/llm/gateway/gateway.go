package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/myselfgus/vibe/internal/llm/client"
	"github.com/myselfgus/vibe/internal/models"
)

// Finish reasons normalized across providers.
const (
	FinishComplete  = "complete"
	FinishTruncated = "truncated"
	FinishRefused   = "refused"
	FinishError     = "error"
)

// Request is one inference call. Ephemeral; never persisted as-is.
type Request struct {
	System string
	Prompt string
	Images []string
}

// Result is the normalized inference output.
type Result struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ModelKey         string
	Provider         string
}

// CredentialResolver maps a provider id to its API credential.
type CredentialResolver interface {
	APIKey(providerID string) (string, error)
}

// ModelResolver looks up a model profile by catalog key.
type ModelResolver interface {
	GetModel(modelKey string) (*models.LLMModel, error)
}

// ModelFactory builds a chat model; injectable so tests can stub providers.
type ModelFactory func(ctx context.Context, providerID, apiKey string, opts client.Options) (einomodel.BaseChatModel, error)

// Gateway is the uniform entry point for all inference calls: credential
// resolution, bounded retry, and single-hop fallback live here so no call
// site duplicates them.
type Gateway struct {
	creds       CredentialResolver
	catalog     ModelResolver
	retry       RetryPolicy
	callTimeout time.Duration
	factory     ModelFactory
}

func New(creds CredentialResolver, catalog ModelResolver, retry RetryPolicy, callTimeout time.Duration) *Gateway {
	return &Gateway{
		creds:       creds,
		catalog:     catalog,
		retry:       retry,
		callTimeout: callTimeout,
		factory:     client.NewChatModel,
	}
}

// SetModelFactory replaces the chat model constructor. Test use only.
func (g *Gateway) SetModelFactory(f ModelFactory) {
	if f != nil {
		g.factory = f
	}
}

// Invoke runs the request against the model identified by modelKey,
// retrying per policy, then tries the configured fallback model exactly
// once. The returned ProviderError carries the full attempt history.
func (g *Gateway) Invoke(ctx context.Context, log *slog.Logger, req Request, modelKey string) (*Result, error) {
	profile, err := g.catalog.GetModel(modelKey)
	if err != nil {
		return nil, fmt.Errorf("resolve model %s: %w", modelKey, err)
	}

	var history []Attempt

	result, primaryErr := g.invokeWithRetry(ctx, log, req, profile)
	if primaryErr == nil {
		return result, nil
	}
	if IsCancellation(primaryErr) {
		return nil, primaryErr
	}
	history = append(history, Attempt{
		Provider: profile.ProviderID,
		Model:    profile.APIName,
		Message:  primaryErr.Error(),
	})

	if profile.FallbackKey == "" {
		return nil, &ProviderError{
			Provider:    profile.ProviderID,
			Model:       profile.APIName,
			Attempts:    history,
			Recoverable: Recoverable(primaryErr),
			Err:         primaryErr,
		}
	}

	fallback, err := g.catalog.GetModel(profile.FallbackKey)
	if err != nil {
		history = append(history, Attempt{Provider: "?", Model: profile.FallbackKey, Message: err.Error()})
		return nil, &ProviderError{
			Provider: profile.ProviderID,
			Model:    profile.APIName,
			Attempts: history,
			Err:      primaryErr,
		}
	}

	log.Warn("primary model failed, trying fallback",
		"model", profile.Key, "fallback", fallback.Key, "error", primaryErr)

	// Exactly one fallback attempt, no multi-hop chains.
	result, fallbackErr := g.invokeOnce(ctx, log, req, fallback)
	if fallbackErr == nil {
		return result, nil
	}
	if IsCancellation(fallbackErr) {
		return nil, fallbackErr
	}
	history = append(history, Attempt{
		Provider: fallback.ProviderID,
		Model:    fallback.APIName,
		Message:  fallbackErr.Error(),
	})
	return nil, &ProviderError{
		Provider:    fallback.ProviderID,
		Model:       fallback.APIName,
		Attempts:    history,
		Recoverable: Recoverable(fallbackErr),
		Err:         fallbackErr,
	}
}

func (g *Gateway) invokeWithRetry(ctx context.Context, log *slog.Logger, req Request, profile *models.LLMModel) (*Result, error) {
	var result *Result
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		res, err := g.invokeOnce(ctx, log, req, profile)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *Gateway) invokeOnce(ctx context.Context, log *slog.Logger, req Request, profile *models.LLMModel) (*Result, error) {
	apiKey, err := g.creds.APIKey(profile.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolve credential for %s: %w", profile.ProviderID, err)
	}
	if err := ValidateAPIKey(profile.ProviderID, apiKey); err != nil {
		// Fail fast: no network call with a credential we know is bad.
		return nil, err
	}

	chatModel, err := g.factory(ctx, profile.ProviderID, apiKey, client.Options{
		Model:       profile.APIName,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	started := time.Now()
	log.Info("inference call start", "provider", profile.ProviderID, "model", profile.APIName)

	msg, err := chatModel.Generate(callCtx, buildMessages(req))
	if err != nil {
		log.Error("inference call failed",
			"provider", profile.ProviderID, "model", profile.APIName,
			"duration", time.Since(started), "error", err)
		return nil, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		err := fmt.Errorf("model %s returned empty output", profile.APIName)
		log.Error("inference call failed",
			"provider", profile.ProviderID, "model", profile.APIName,
			"duration", time.Since(started), "error", err)
		return nil, err
	}

	result := &Result{
		Content:      msg.Content,
		FinishReason: normalizeFinishReason(msg),
		ModelKey:     profile.Key,
		Provider:     profile.ProviderID,
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		result.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
		result.TotalTokens = msg.ResponseMeta.Usage.TotalTokens
	}
	if result.FinishReason == FinishRefused {
		return nil, fmt.Errorf("model %s refused the request", profile.APIName)
	}

	log.Info("inference call done",
		"provider", profile.ProviderID, "model", profile.APIName,
		"duration", time.Since(started),
		"finish", result.FinishReason,
		"tokens", result.TotalTokens)
	return result, nil
}

func buildMessages(req Request) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	if len(req.Images) == 0 {
		msgs = append(msgs, schema.UserMessage(req.Prompt))
		return msgs
	}
	parts := make([]schema.ChatMessagePart, 0, len(req.Images)+1)
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: req.Prompt,
	})
	for _, url := range req.Images {
		parts = append(parts, schema.ChatMessagePart{
			Type:     schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{URL: url},
		})
	}
	msgs = append(msgs, &schema.Message{Role: schema.User, MultiContent: parts})
	return msgs
}

func normalizeFinishReason(msg *schema.Message) string {
	if msg.ResponseMeta == nil {
		return FinishComplete
	}
	switch strings.ToLower(msg.ResponseMeta.FinishReason) {
	case "stop", "end_turn", "complete", "":
		return FinishComplete
	case "length", "max_tokens":
		return FinishTruncated
	case "content_filter", "refusal", "refused":
		return FinishRefused
	default:
		return FinishComplete
	}
}

var placeholderKeys = []string{"changeme", "placeholder", "your-api-key", "your_api_key", "xxx", "test"}

// ValidateAPIKey rejects absent or obviously invalid credentials before any
// network call is attempted.
func ValidateAPIKey(providerID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key for %s is not configured", providerID)
	}
	if len(key) < 16 {
		return fmt.Errorf("API key for %s is too short to be valid", providerID)
	}
	lower := strings.ToLower(key)
	for _, p := range placeholderKeys {
		if lower == p {
			return fmt.Errorf("API key for %s looks like a placeholder", providerID)
		}
	}
	return nil
}
