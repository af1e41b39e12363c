package unit_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myselfgus/vibe/internal/services"
)

func TestCredentialService_EnvWinsOverKeyring(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env-0123456789")

	svc := services.NewCredentialService()
	key, err := svc.APIKey("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-env-0123456789", key)
}

func TestCredentialService_TrimsEnvValue(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "  sk-openai-0123456789abcd  ")

	svc := services.NewCredentialService()
	key, err := svc.APIKey("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai-0123456789abcd", key)
}

func TestCredentialService_EmptyProvider(t *testing.T) {
	svc := services.NewCredentialService()
	_, err := svc.APIKey("")
	assert.Error(t, err)
	assert.Error(t, svc.StoreAPIKey("", "whatever"))
	assert.Error(t, svc.StoreAPIKey("anthropic", "   "))
	assert.Error(t, svc.DeleteAPIKey(""))
}

func TestCredentialService_ListConfiguredReflectsEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-0123456789abcdef")
	t.Setenv("GEMINI_API_KEY", "AIza0123456789abcdef")

	svc := services.NewCredentialService()
	configured := svc.ListConfigured()
	assert.Contains(t, configured, "anthropic")
	assert.Contains(t, configured, "gemini")
}
