package models

// ModelDisabled is the sentinel profile key that turns a pipeline stage
// (currently only correction) into a no-op.
const ModelDisabled = "DISABLED"

// LLMModel represents a single language model option from the embedded
// catalog. FallbackKey names the model tried once when this one fails;
// chains are one hop long by configuration.
type LLMModel struct {
	Key          string   `json:"key"`
	DisplayName  string   `json:"displayName"`
	APIName      string   `json:"apiName"`
	ProviderID   string   `json:"providerId"`
	ProviderName string   `json:"providerName"`
	FallbackKey  string   `json:"fallbackKey,omitempty"`
	MaxTokens    int      `json:"maxTokens,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	Enabled      bool     `json:"enabled"`
}

// LLMModelGroup groups models by their provider for presentation.
type LLMModelGroup struct {
	ProviderID   string     `json:"providerId"`
	ProviderName string     `json:"providerName"`
	Models       []LLMModel `json:"models"`
}
