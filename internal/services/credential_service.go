package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "vibe"

// envVarByProvider maps catalog provider ids to their conventional
// environment variables. Env always wins over the keyring so deployments
// can inject credentials without touching the OS secret store.
var envVarByProvider = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// CredentialService resolves provider API keys. Satisfies the gateway's
// credential resolver.
type CredentialService struct{}

func NewCredentialService() *CredentialService {
	return &CredentialService{}
}

// APIKey returns the credential for a provider: environment variable if
// set, OS keyring otherwise.
func (s *CredentialService) APIKey(providerID string) (string, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return "", errors.New("provider is required")
	}

	if envVar, ok := envVarByProvider[providerID]; ok {
		if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
			return key, nil
		}
	}

	key, err := keyring.Get(keyringService, providerID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("no API key configured for provider %s", providerID)
		}
		return "", fmt.Errorf("read keyring for %s: %w", providerID, err)
	}
	return key, nil
}

// StoreAPIKey persists a credential to the OS keyring.
func (s *CredentialService) StoreAPIKey(providerID, apiKey string) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("API key is empty")
	}
	return keyring.Set(keyringService, providerID, apiKey)
}

// DeleteAPIKey removes a credential from the OS keyring. Missing entries
// are not an error.
func (s *CredentialService) DeleteAPIKey(providerID string) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return errors.New("provider is required")
	}
	if err := keyring.Delete(keyringService, providerID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// ListConfigured reports which of the known providers currently resolve to
// a credential, without exposing key material.
func (s *CredentialService) ListConfigured() []string {
	configured := make([]string, 0, len(envVarByProvider))
	for providerID := range envVarByProvider {
		if key, err := s.APIKey(providerID); err == nil && key != "" {
			configured = append(configured, providerID)
		}
	}
	sort.Strings(configured)
	return configured
}
