package models

type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseRunning    PhaseStatus = "running"
	PhaseCorrecting PhaseStatus = "correcting"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// Phase is one ordered unit of generation. The plan is immutable once
// planning completes; only Status changes afterwards.
type Phase struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Status        PhaseStatus `json:"status"`
	DependsOn     []string    `json:"dependsOn,omitempty"`
	ProducedFiles []string    `json:"producedFiles"`
}

// DependenciesMet reports whether every phase this one depends on is
// completed in the given plan.
func (p Phase) DependenciesMet(plan []Phase) bool {
	if len(p.DependsOn) == 0 {
		return true
	}
	byID := make(map[string]PhaseStatus, len(plan))
	for _, other := range plan {
		byID[other.ID] = other.Status
	}
	for _, dep := range p.DependsOn {
		if byID[dep] != PhaseCompleted {
			return false
		}
	}
	return true
}
