package models

import "fmt"

// Error names used across the pipeline. Every error surfaced to a caller or
// recorded on a session carries one of these.
const (
	ErrNameProvider     = "ProviderError"
	ErrNamePlanning     = "PlanningError"
	ErrNamePhase        = "PhaseGenerationError"
	ErrNamePhaseTimeout = "PhaseTimeoutError"
	ErrNameCancelled    = "CancellationError"
)

// GenerationError is the structured error record stored on a session and
// returned by synchronous entry points. Never a bare string.
type GenerationError struct {
	Name        string `json:"name"`
	Message     string `json:"message"`
	Code        string `json:"code"`
	Phase       *int   `json:"phase,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

func (e *GenerationError) Error() string {
	if e.Phase != nil {
		return fmt.Sprintf("%s (phase %d): %s", e.Name, *e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func NewGenerationError(name, code, message string, recoverable bool) *GenerationError {
	return &GenerationError{Name: name, Code: code, Message: message, Recoverable: recoverable}
}

// WithPhase returns a copy annotated with the failing phase index.
func (e *GenerationError) WithPhase(idx int) *GenerationError {
	clone := *e
	clone.Phase = &idx
	return &clone
}

// Diagnostic is a non-fatal warning attached to a session, kept separate
// from LastError so correction warnings never mask a real failure.
type Diagnostic struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Phase   int    `json:"phase"`
}
