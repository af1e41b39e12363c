package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *SessionState {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &SessionState{
		ID:                "sess-1",
		Query:             "build a landing page",
		TemplateName:      "static-site",
		Status:            StatusGenerating,
		CurrentPhaseIndex: 1,
		Phases: []Phase{
			{ID: "phase-1", Name: "Scaffold", Status: PhaseCompleted, ProducedFiles: []string{"index.html"}},
			{ID: "phase-2", Name: "Styling", Status: PhaseRunning, DependsOn: []string{"phase-1"}, ProducedFiles: []string{"style.css"}},
		},
		Files: map[string]FileEntry{
			"index.html": {Content: "<html></html>", Revision: 2},
			"style.css":  {Content: "body {}", Revision: 1},
		},
		Transcript: []TranscriptEntry{
			{Phase: 0, Stage: "generate", Model: "anthropic|claude-sonnet-4-20250514", Prompt: "p", Response: "r"},
		},
		Diagnostics: []Diagnostic{{Source: "planner", Message: "overlap", Phase: -1}},
		LastError:   NewGenerationError(ErrNamePhase, "PHASE_FAILED", "boom", true).WithPhase(1),
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Minute),
	}
}

func TestStateRecordRoundTrip(t *testing.T) {
	state := sampleState()

	rec, err := state.ToRecord()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.ID)
	assert.Equal(t, string(StatusGenerating), rec.Status)
	assert.Equal(t, 1, rec.CurrentPhaseIndex)
	assert.NotEmpty(t, rec.PhasesJSON)
	assert.NotEmpty(t, rec.LastErrorJSON)

	files := []SessionFile{
		{SessionID: "sess-1", Path: "index.html", Content: "<html></html>", Revision: 2},
		{SessionID: "sess-1", Path: "style.css", Content: "body {}", Revision: 1},
	}
	decoded, err := StateFromRecord(rec, files)
	require.NoError(t, err)

	assert.Equal(t, state.ID, decoded.ID)
	assert.Equal(t, state.Status, decoded.Status)
	assert.Equal(t, state.Phases, decoded.Phases)
	assert.Equal(t, state.Transcript, decoded.Transcript)
	assert.Equal(t, state.Diagnostics, decoded.Diagnostics)
	require.NotNil(t, decoded.LastError)
	assert.Equal(t, state.LastError, decoded.LastError)
	assert.Equal(t, state.Files, decoded.Files)
}

func TestStateFromRecordEmptyColumns(t *testing.T) {
	rec := &GenerationSession{ID: "sess-2", Status: string(StatusIdle)}

	decoded, err := StateFromRecord(rec, nil)
	require.NoError(t, err)

	assert.Empty(t, decoded.Phases)
	assert.Empty(t, decoded.Transcript)
	assert.Nil(t, decoded.LastError)
	assert.Empty(t, decoded.Files)
}

func TestStateFromRecordRejectsCorruptPhases(t *testing.T) {
	rec := &GenerationSession{ID: "sess-3", PhasesJSON: "{not json"}

	_, err := StateFromRecord(rec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sess-3")
}

func TestCloneIsIndependent(t *testing.T) {
	state := sampleState()
	clone := state.Clone()

	clone.Phases[0].Status = PhaseFailed
	clone.Phases[1].DependsOn[0] = "phase-9"
	clone.Files["index.html"] = FileEntry{Content: "changed", Revision: 3}
	clone.LastError.Message = "changed"

	assert.Equal(t, PhaseCompleted, state.Phases[0].Status)
	assert.Equal(t, "phase-1", state.Phases[1].DependsOn[0])
	assert.Equal(t, "<html></html>", state.Files["index.html"].Content)
	assert.Equal(t, "boom", state.LastError.Message)
}

func TestViewOrdersFilesByPath(t *testing.T) {
	state := sampleState()
	state.Files["app.js"] = FileEntry{Content: "console.log(1)", Revision: 1}

	view := state.View()

	require.Len(t, view.Files, 3)
	assert.Equal(t, "app.js", view.Files[0].Path)
	assert.Equal(t, "index.html", view.Files[1].Path)
	assert.Equal(t, "style.css", view.Files[2].Path)
	assert.Equal(t, 2, view.Files[1].Revision)
}

func TestViewNeverReturnsNilSlices(t *testing.T) {
	state := &SessionState{ID: "bare", Status: StatusIdle, Files: map[string]FileEntry{}}

	view := state.View()

	assert.NotNil(t, view.Phases)
	assert.NotNil(t, view.Files)
}

func TestDependenciesMet(t *testing.T) {
	plan := []Phase{
		{ID: "phase-1", Status: PhaseCompleted},
		{ID: "phase-2", Status: PhaseRunning},
	}

	assert.True(t, Phase{ID: "phase-3"}.DependenciesMet(plan))
	assert.True(t, Phase{ID: "phase-3", DependsOn: []string{"phase-1"}}.DependenciesMet(plan))
	assert.False(t, Phase{ID: "phase-3", DependsOn: []string{"phase-2"}}.DependenciesMet(plan))
	assert.False(t, Phase{ID: "phase-3", DependsOn: []string{"missing"}}.DependenciesMet(plan))
}

func TestGenerationErrorFormatting(t *testing.T) {
	err := NewGenerationError(ErrNameProvider, "PROVIDER_FAILED", "rate limited", true)
	assert.Equal(t, "ProviderError: rate limited", err.Error())

	withPhase := err.WithPhase(2)
	assert.Equal(t, "ProviderError (phase 2): rate limited", withPhase.Error())
	assert.Nil(t, err.Phase, "WithPhase must not mutate the original")
}
