package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myselfgus/vibe/internal/corrector"
	"github.com/myselfgus/vibe/internal/engine"
	"github.com/myselfgus/vibe/internal/events"
	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
	"github.com/myselfgus/vibe/internal/tests/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type engineFixture struct {
	engine   *engine.Engine
	sessions *mocks.GenerationSessionRepositoryMock
	files    *mocks.SessionFileRepositoryMock
	planner  *mocks.PlannerMock
	executor *mocks.ExecutorMock
	correct  *mocks.CorrectorMock
}

func newFixture() *engineFixture {
	f := &engineFixture{
		sessions: &mocks.GenerationSessionRepositoryMock{},
		files:    &mocks.SessionFileRepositoryMock{},
		planner:  &mocks.PlannerMock{},
		executor: &mocks.ExecutorMock{},
		correct:  &mocks.CorrectorMock{},
	}
	f.engine = engine.New(discardLogger(), f.sessions, f.files, &mocks.TemplateCatalogMock{}, f.planner, f.executor, f.correct)
	return f
}

func waitForTerminal(t *testing.T, eng *engine.Engine, id string) models.SessionState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state, err := eng.GetState(id)
		require.NoError(t, err)
		if state.Status.Terminal() {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	state, _ := eng.GetState(id)
	t.Fatalf("session %s never reached a terminal status, stuck at %s", id, state.Status)
	return state
}

func TestStartGenerationRunsAllPhases(t *testing.T) {
	f := newFixture()

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "build a landing page"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusCompleted, state.Status)
	assert.Equal(t, 2, state.CurrentPhaseIndex)
	for _, phase := range state.Phases {
		assert.Equal(t, models.PhaseCompleted, phase.Status)
	}
	assert.Contains(t, state.Files, "index.html")
	assert.Contains(t, state.Files, "style.css")
	assert.Len(t, state.Transcript, 2)

	// Write-through: the persisted row reflects the terminal state.
	rec, err := f.sessions.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(models.StatusCompleted), rec.Status)
}

func TestPhaseFailureFailsSessionAndKeepsEarlierFiles(t *testing.T) {
	f := newFixture()
	f.executor.ExecutePhaseFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
		if phaseIdx == 1 {
			return nil, &executor.PhaseGenerationError{
				PhaseID: state.Phases[phaseIdx].ID,
				Err:     errors.New("model refused"),
			}
		}
		return &executor.PhaseResult{
			Updated: map[string]models.FileEntry{"index.html": {Content: "<html></html>", Revision: 1}},
		}, nil
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusFailed, state.Status)
	require.NotNil(t, state.LastError)
	assert.Equal(t, models.ErrNamePhase, state.LastError.Name)
	require.NotNil(t, state.LastError.Phase)
	assert.Equal(t, 1, *state.LastError.Phase)

	assert.Equal(t, models.PhaseCompleted, state.Phases[0].Status)
	assert.Equal(t, models.PhaseFailed, state.Phases[1].Status)
	assert.Contains(t, state.Files, "index.html", "completed phase output survives the failure")
}

func TestResumeSkipsCompletedPhases(t *testing.T) {
	f := newFixture()
	var calls int32
	var failSecond atomic.Bool
	failSecond.Store(true)
	f.executor.ExecutePhaseFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
		atomic.AddInt32(&calls, 1)
		if phaseIdx == 1 && failSecond.Load() {
			return nil, errors.New("transient provider outage")
		}
		updated := make(map[string]models.FileEntry)
		for _, path := range state.Phases[phaseIdx].ProducedFiles {
			updated[path] = models.FileEntry{Content: "v", Revision: 1}
		}
		return &executor.PhaseResult{Updated: updated}, nil
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)
	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusFailed, state.Status)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))

	failSecond.Store(false)
	resumedID, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{SessionID: id})
	require.NoError(t, err)
	require.Equal(t, id, resumedID)

	state = waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusCompleted, state.Status)
	assert.Nil(t, state.LastError, "resume clears the previous error")
	// Phase one completed on the first run and must not re-execute.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDependencyViolationFailsWithoutExecuting(t *testing.T) {
	f := newFixture()
	f.planner.PlanFunc = func(ctx context.Context, log *slog.Logger, query string, tmpl *models.TemplateDetails, images []string) (*planner.Result, error) {
		// First phase depends on the second: impossible to satisfy.
		return &planner.Result{Phases: []models.Phase{
			{ID: "phase-1", Name: "App", Status: models.PhasePending, DependsOn: []string{"phase-2"}},
			{ID: "phase-2", Name: "Styles", Status: models.PhasePending},
		}}, nil
	}
	var calls int32
	f.executor.ExecutePhaseFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
		atomic.AddInt32(&calls, 1)
		return &executor.PhaseResult{}, nil
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusFailed, state.Status)
	require.NotNil(t, state.LastError)
	assert.Equal(t, engine.CodeDependency, state.LastError.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no phase may run on a broken plan")
}

func TestCancellationMarksSessionCancelled(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	var once sync.Once
	f.executor.ExecutePhaseFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	<-started
	require.NoError(t, f.engine.Cancel(id))

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusFailed, state.Status)
	require.NotNil(t, state.LastError)
	assert.Equal(t, models.ErrNameCancelled, state.LastError.Name)
	assert.Equal(t, models.PhaseFailed, state.Phases[0].Status)
}

func TestDeleteSessionDuringActiveRun(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	var once sync.Once
	f.executor.ExecutePhaseFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	// Delete while the executor is blocked mid-phase: the run's cancelled
	// cleanup still needs the actor mailbox, so delete must wait for it.
	<-started
	require.NoError(t, f.engine.DeleteSession(id))

	_, err = f.engine.GetState(id)
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)
	rec, err := f.sessions.GetByID(id)
	require.NoError(t, err)
	assert.Nil(t, rec, "persisted row removed")

	// Give any stray mailbox send time to surface as a panic.
	time.Sleep(50 * time.Millisecond)
}

func TestPersistFailureFailsSession(t *testing.T) {
	f := newFixture()
	f.sessions.SaveFunc = func(rec *models.GenerationSession) error {
		if rec.Status == string(models.StatusGenerating) {
			return errors.New("disk full")
		}
		return nil
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusFailed, state.Status)
	require.NotNil(t, state.LastError)
	assert.Equal(t, engine.CodeStorage, state.LastError.Code)
	assert.True(t, state.LastError.Recoverable, "a storage failure is retryable on resume")
}

func TestStartOnCompletedSessionIsRejected(t *testing.T) {
	f := newFixture()

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)
	waitForTerminal(t, f.engine, id)

	_, err = f.engine.StartGeneration(context.Background(), engine.StartRequest{SessionID: id})
	require.Error(t, err)
	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, engine.CodeSessionDone, genErr.Code)
}

func TestGetStateUnknownSession(t *testing.T) {
	f := newFixture()
	_, err := f.engine.GetState("no-such-session")
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)
}

func TestDeleteSessionRemovesPersistedRows(t *testing.T) {
	f := newFixture()

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)
	waitForTerminal(t, f.engine, id)

	require.NoError(t, f.engine.DeleteSession(id))

	rec, err := f.sessions.GetByID(id)
	require.NoError(t, err)
	assert.Nil(t, rec)
	rows, err := f.files.ListBySession(id)
	require.NoError(t, err)
	assert.Empty(t, rows)
	_, err = f.engine.GetState(id)
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)
}

func TestCorrectorOutputMergedIntoState(t *testing.T) {
	f := newFixture()
	f.correct.EnabledFunc = func() bool { return true }
	f.correct.CorrectFunc = func(ctx context.Context, log *slog.Logger, state *models.SessionState, phase models.Phase) corrector.Outcome {
		if phase.ID != "phase-1" {
			return corrector.Outcome{}
		}
		return corrector.Outcome{
			Files:    map[string]models.FileEntry{"index.html": {Content: "<html>fixed</html>", Revision: 2}},
			Warnings: []string{"repaired unclosed tag"},
		}
	}

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)

	state := waitForTerminal(t, f.engine, id)
	require.Equal(t, models.StatusCompleted, state.Status)
	require.Contains(t, state.Files, "index.html")
	assert.Equal(t, "<html>fixed</html>", state.Files["index.html"].Content)
	assert.Equal(t, 2, state.Files["index.html"].Revision)

	require.Len(t, state.Diagnostics, 1)
	assert.Equal(t, "corrector", state.Diagnostics[0].Source)
	assert.Equal(t, 0, state.Diagnostics[0].Phase)
}

func TestEventsEmittedInOrder(t *testing.T) {
	f := newFixture()

	var mu sync.Mutex
	var names []string
	events.SetEmitter(func(ctx context.Context, evt events.Event) {
		mu.Lock()
		names = append(names, evt.Name)
		mu.Unlock()
	})
	defer events.SetEmitter(nil)

	id, err := f.engine.StartGeneration(context.Background(), engine.StartRequest{Query: "q"})
	require.NoError(t, err)
	waitForTerminal(t, f.engine, id)

	// Emission is synchronous with the run loop, but give the final events
	// a moment to land.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, names)
	assert.Equal(t, events.EventStatus, names[0])
	completed := 0
	for _, name := range names {
		if name == events.EventPhaseCompleted {
			completed++
		}
	}
	assert.Equal(t, 2, completed)
}
