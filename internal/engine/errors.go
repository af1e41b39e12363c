package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
)

// Error codes surfaced through the API.
const (
	CodePlanningFailed  = "PLANNING_FAILED"
	CodePhaseFailed     = "PHASE_FAILED"
	CodePhaseTimeout    = "PHASE_TIMEOUT"
	CodeCancelled       = "CANCELLED"
	CodeDependency      = "DEPENDENCY_VIOLATION"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionDone     = "SESSION_COMPLETED"
	CodeStorage         = "STORAGE_FAILURE"
)

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// toGenerationError maps any pipeline error to the structured record stored
// on the session. phaseIdx < 0 means "not tied to a phase".
func toGenerationError(err error, phaseIdx int) *models.GenerationError {
	var genErr *models.GenerationError

	var existing *models.GenerationError
	var planErr *planner.PlanningError
	var phaseErr *executor.PhaseGenerationError

	switch {
	case errors.As(err, &existing):
		genErr = existing
	case gateway.IsCancellation(err):
		genErr = models.NewGenerationError(models.ErrNameCancelled, CodeCancelled, "generation cancelled", false)
	case errors.As(err, &planErr):
		genErr = models.NewGenerationError(models.ErrNamePlanning, CodePlanningFailed, planErr.Error(), false)
	case errors.As(err, &phaseErr):
		code := CodePhaseFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = CodePhaseTimeout
		}
		genErr = models.NewGenerationError(models.ErrNamePhase, code, phaseErr.Error(), phaseErr.Recoverable)
	case errors.Is(err, context.DeadlineExceeded):
		genErr = models.NewGenerationError(models.ErrNamePhaseTimeout, CodePhaseTimeout, err.Error(), true)
	default:
		genErr = models.NewGenerationError(models.ErrNamePhase, CodePhaseFailed, fmt.Sprintf("generation failed: %v", err), false)
	}

	if phaseIdx >= 0 && genErr.Phase == nil {
		genErr = genErr.WithPhase(phaseIdx)
	}
	return genErr
}
