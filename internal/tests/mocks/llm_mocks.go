package mocks

import (
	"context"
	"errors"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/sandbox"
)

// ChatModelMock stands in for a provider chat model behind the gateway's
// model factory.
type ChatModelMock struct {
	GenerateFunc func(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
	StreamFunc   func(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error)
}

func (m *ChatModelMock) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, input, opts...)
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *ChatModelMock) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, input, opts...)
	}
	return nil, errors.New("streaming not supported")
}

// CredentialResolverMock resolves API keys for gateway tests.
type CredentialResolverMock struct {
	APIKeyFunc func(providerID string) (string, error)
}

func (m *CredentialResolverMock) APIKey(providerID string) (string, error) {
	if m.APIKeyFunc != nil {
		return m.APIKeyFunc(providerID)
	}
	return "test-api-key-0123456789abcdef", nil
}

// ModelResolverMock serves catalog profiles for gateway tests.
type ModelResolverMock struct {
	GetModelFunc func(modelKey string) (*models.LLMModel, error)
}

func (m *ModelResolverMock) GetModel(modelKey string) (*models.LLMModel, error) {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(modelKey)
	}
	return &models.LLMModel{
		Key:        modelKey,
		APIName:    modelKey,
		ProviderID: "anthropic",
		Enabled:    true,
	}, nil
}

// SandboxRunnerMock fakes the static-check sandbox.
type SandboxRunnerMock struct {
	CheckFunc func(ctx context.Context, files map[string]string) ([]sandbox.Issue, error)
}

func (m *SandboxRunnerMock) Check(ctx context.Context, files map[string]string) ([]sandbox.Issue, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, files)
	}
	return nil, nil
}
