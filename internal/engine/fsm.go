package engine

import "github.com/myselfgus/vibe/internal/models"

// validTransitions defines the legal session status transitions.
// failed is reachable from any non-terminal status; the only way out of
// failed is an explicit resume back to bootstrapping.
var validTransitions = map[models.SessionStatus]map[models.SessionStatus]bool{
	models.StatusIdle: {
		models.StatusBootstrapping: true,
	},
	models.StatusBootstrapping: {
		models.StatusPlanning: true,
	},
	models.StatusPlanning: {
		models.StatusGenerating: true,
	},
	models.StatusGenerating: {
		models.StatusCorrecting: true,
		models.StatusCompleted:  true,
	},
	models.StatusCorrecting: {
		models.StatusGenerating: true,
		models.StatusCompleted:  true,
	},
	models.StatusFailed: {
		models.StatusBootstrapping: true, // resume
	},
}

// IsValidTransition checks if a status transition is legal.
func IsValidTransition(from, to models.SessionStatus) bool {
	if to == models.StatusFailed {
		return !from.Terminal()
	}
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
