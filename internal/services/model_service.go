package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/myselfgus/vibe/internal/assets"
	"github.com/myselfgus/vibe/internal/models"
)

// ModelConfigService owns the embedded model catalog: profile lookup for
// the gateway, fallback resolution, and the grouped listing for API
// consumers.
type ModelConfigService interface {
	Startup() error
	ListModelGroups() ([]models.LLMModelGroup, error)
	GetModel(modelKey string) (*models.LLMModel, error)
}

type modelConfigService struct {
	mu            sync.RWMutex
	providerOrder []string
	providerNames map[string]string
	models        map[string]*models.LLMModel
}

type rawModelFile struct {
	Providers []rawProvider `json:"providers"`
}

type rawProvider struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Models      []rawModel `json:"models"`
}

type rawModel struct {
	DisplayName string   `json:"displayName"`
	APIName     string   `json:"apiName"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	Fallback    string   `json:"fallback,omitempty"`
}

func NewModelConfigService() ModelConfigService {
	return &modelConfigService{
		providerNames: make(map[string]string),
		models:        make(map[string]*models.LLMModel),
	}
}

// Startup parses the embedded catalog. Fallback keys are resolved eagerly:
// a key pointing at a missing model, or at itself, is a config error we
// want at boot, not mid-generation.
func (s *modelConfigService) Startup() error {
	var parsed rawModelFile
	if err := json.Unmarshal(assets.ModelsData, &parsed); err != nil {
		return fmt.Errorf("parse models asset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.providerOrder = s.providerOrder[:0]
	for _, provider := range parsed.Providers {
		providerID := strings.TrimSpace(provider.ID)
		if providerID == "" {
			continue
		}
		providerName := strings.TrimSpace(provider.DisplayName)
		s.providerNames[providerID] = providerName
		s.providerOrder = append(s.providerOrder, providerID)
		for _, mdl := range provider.Models {
			key := computeModelKey(providerID, mdl.APIName)
			s.models[key] = &models.LLMModel{
				Key:          key,
				DisplayName:  strings.TrimSpace(mdl.DisplayName),
				APIName:      strings.TrimSpace(mdl.APIName),
				ProviderID:   providerID,
				ProviderName: providerName,
				FallbackKey:  strings.TrimSpace(mdl.Fallback),
				MaxTokens:    mdl.MaxTokens,
				Temperature:  mdl.Temperature,
				Enabled:      true,
			}
		}
	}

	if len(s.models) == 0 {
		return fmt.Errorf("model catalog is empty")
	}
	for key, mdl := range s.models {
		if mdl.FallbackKey == "" {
			continue
		}
		if mdl.FallbackKey == key {
			return fmt.Errorf("model %s falls back to itself", key)
		}
		if _, ok := s.models[mdl.FallbackKey]; !ok {
			return fmt.Errorf("model %s declares unknown fallback %s", key, mdl.FallbackKey)
		}
	}
	return nil
}

func (s *modelConfigService) ListModelGroups() ([]models.LLMModelGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.LLMModelGroup, 0, len(s.providerOrder))
	for _, providerID := range s.providerOrder {
		group := models.LLMModelGroup{
			ProviderID:   providerID,
			ProviderName: s.providerNames[providerID],
		}
		for _, mdl := range s.models {
			if mdl.ProviderID != providerID {
				continue
			}
			group.Models = append(group.Models, *mdl)
		}
		sort.SliceStable(group.Models, func(i, j int) bool {
			return strings.ToLower(group.Models[i].DisplayName) < strings.ToLower(group.Models[j].DisplayName)
		})
		groups = append(groups, group)
	}
	return groups, nil
}

// GetModel looks up a profile by catalog key. Satisfies the gateway's
// model resolver.
func (s *modelConfigService) GetModel(modelKey string) (*models.LLMModel, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mdl, ok := s.models[modelKey]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	copied := *mdl
	return &copied, nil
}

func computeModelKey(providerID, apiName string) string {
	return providerID + "|" + strings.TrimSpace(apiName)
}
