package mocks

import (
	"context"
	"log/slog"

	"github.com/myselfgus/vibe/internal/corrector"
	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
)

// TemplateCatalogMock serves template details for engine tests.
type TemplateCatalogMock struct {
	ListTemplatesFunc      func(ctx context.Context) ([]models.TemplateDetails, error)
	GetTemplateDetailsFunc func(ctx context.Context, name string) (*models.TemplateDetails, error)
}

func (m *TemplateCatalogMock) ListTemplates(ctx context.Context) ([]models.TemplateDetails, error) {
	if m.ListTemplatesFunc != nil {
		return m.ListTemplatesFunc(ctx)
	}
	return []models.TemplateDetails{{Name: "static-site", Files: []string{"index.html"}}}, nil
}

func (m *TemplateCatalogMock) GetTemplateDetails(ctx context.Context, name string) (*models.TemplateDetails, error) {
	if m.GetTemplateDetailsFunc != nil {
		return m.GetTemplateDetailsFunc(ctx, name)
	}
	return &models.TemplateDetails{Name: name, Files: []string{"index.html"}}, nil
}

// PlannerMock fakes the blueprint stage.
type PlannerMock struct {
	PlanFunc func(ctx context.Context, log *slog.Logger, query string, tmpl *models.TemplateDetails, images []string) (*planner.Result, error)
}

func (m *PlannerMock) Plan(ctx context.Context, log *slog.Logger, query string, tmpl *models.TemplateDetails, images []string) (*planner.Result, error) {
	if m.PlanFunc != nil {
		return m.PlanFunc(ctx, log, query, tmpl, images)
	}
	return &planner.Result{
		Phases: []models.Phase{
			{ID: "phase-1", Name: "Scaffold", Status: models.PhasePending, ProducedFiles: []string{"index.html"}},
			{ID: "phase-2", Name: "Styling", Status: models.PhasePending, DependsOn: []string{"phase-1"}, ProducedFiles: []string{"style.css"}},
		},
	}, nil
}

// ExecutorMock fakes phase generation.
type ExecutorMock struct {
	ExecutePhaseFunc func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error)
}

func (m *ExecutorMock) ExecutePhase(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
	if m.ExecutePhaseFunc != nil {
		return m.ExecutePhaseFunc(ctx, log, state, phaseIdx)
	}
	phase := state.Phases[phaseIdx]
	updated := make(map[string]models.FileEntry, len(phase.ProducedFiles))
	for _, path := range phase.ProducedFiles {
		updated[path] = models.FileEntry{Content: "content of " + path, Revision: 1}
	}
	return &executor.PhaseResult{
		Updated:  updated,
		Prompt:   "prompt",
		Response: "response",
		ModelKey: "anthropic|claude-3-5-haiku-20241022",
	}, nil
}

// CorrectorMock fakes the post-phase correction pass. Disabled unless
// EnabledFunc says otherwise.
type CorrectorMock struct {
	EnabledFunc func() bool
	CorrectFunc func(ctx context.Context, log *slog.Logger, state *models.SessionState, phase models.Phase) corrector.Outcome
}

func (m *CorrectorMock) Enabled() bool {
	if m.EnabledFunc != nil {
		return m.EnabledFunc()
	}
	return false
}

func (m *CorrectorMock) Correct(ctx context.Context, log *slog.Logger, state *models.SessionState, phase models.Phase) corrector.Outcome {
	if m.CorrectFunc != nil {
		return m.CorrectFunc(ctx, log, state, phase)
	}
	return corrector.Outcome{}
}
