package services

import (
	"context"
	"fmt"
	"time"

	"github.com/myselfgus/vibe/internal/engine"
	"github.com/myselfgus/vibe/internal/models"
)

// SessionSummary is the list-view shape of a persisted session.
type SessionSummary struct {
	ID           string               `json:"id"`
	Query        string               `json:"query"`
	TemplateName string               `json:"templateName,omitempty"`
	Status       models.SessionStatus `json:"status"`
	CreatedAt    string               `json:"createdAt"`
	UpdatedAt    string               `json:"updatedAt"`
}

// GenerationSessionService is the API-facing facade over the engine. It
// owns nothing itself; every call routes to the engine's actor-backed
// state.
type GenerationSessionService interface {
	Start(ctx context.Context, req engine.StartRequest) (string, error)
	Get(sessionID string) (*models.SessionView, error)
	State(sessionID string) (models.SessionState, error)
	List() ([]SessionSummary, error)
	Cancel(sessionID string) error
	Delete(sessionID string) error
	Export(sessionID string) (*ExportResult, error)
}

type generationSessionService struct {
	engine    *engine.Engine
	workspace *WorkspaceService
}

func NewGenerationSessionService(eng *engine.Engine, workspace *WorkspaceService) GenerationSessionService {
	return &generationSessionService{engine: eng, workspace: workspace}
}

func (s *generationSessionService) Start(ctx context.Context, req engine.StartRequest) (string, error) {
	return s.engine.StartGeneration(ctx, req)
}

func (s *generationSessionService) Get(sessionID string) (*models.SessionView, error) {
	state, err := s.engine.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	view := state.View()
	return &view, nil
}

func (s *generationSessionService) State(sessionID string) (models.SessionState, error) {
	return s.engine.GetState(sessionID)
}

func (s *generationSessionService) List() ([]SessionSummary, error) {
	rows, err := s.engine.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	summaries := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, SessionSummary{
			ID:           row.ID,
			Query:        row.Query,
			TemplateName: row.TemplateName,
			Status:       models.SessionStatus(row.Status),
			CreatedAt:    row.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return summaries, nil
}

func (s *generationSessionService) Cancel(sessionID string) error {
	return s.engine.Cancel(sessionID)
}

func (s *generationSessionService) Delete(sessionID string) error {
	return s.engine.DeleteSession(sessionID)
}

// Export writes the session's current file tree to the workspace directory
// and commits it.
func (s *generationSessionService) Export(sessionID string) (*ExportResult, error) {
	state, err := s.engine.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	return s.workspace.Export(&state)
}
