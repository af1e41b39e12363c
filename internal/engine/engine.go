package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/myselfgus/vibe/internal/corrector"
	"github.com/myselfgus/vibe/internal/events"
	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
	"github.com/myselfgus/vibe/internal/repositories"
)

// TemplateCatalog is the template collaborator boundary. An empty catalog
// is a fatal planning precondition.
type TemplateCatalog interface {
	ListTemplates(ctx context.Context) ([]models.TemplateDetails, error)
	GetTemplateDetails(ctx context.Context, name string) (*models.TemplateDetails, error)
}

// PhasePlanner produces the phase plan. Satisfied by *planner.Planner.
type PhasePlanner interface {
	Plan(ctx context.Context, log *slog.Logger, query string, tmpl *models.TemplateDetails, images []string) (*planner.Result, error)
}

// PhaseExecutor runs one phase. Satisfied by *executor.Executor.
type PhaseExecutor interface {
	ExecutePhase(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*executor.PhaseResult, error)
}

// PhaseCorrector runs the best-effort post-phase pass. Satisfied by
// *corrector.Corrector.
type PhaseCorrector interface {
	Enabled() bool
	Correct(ctx context.Context, log *slog.Logger, state *models.SessionState, phase models.Phase) corrector.Outcome
}

// Engine is the generation state machine. Every session is owned by one
// actor; all mutations funnel through that actor and are written through
// to storage, so a GetState after any update sees the update.
type Engine struct {
	log       *slog.Logger
	sessions  repositories.GenerationSessionRepository
	files     repositories.SessionFileRepository
	templates TemplateCatalog
	planner   PhasePlanner
	executor  PhaseExecutor
	corrector PhaseCorrector

	mu     sync.Mutex
	actors map[string]*actor
}

func New(log *slog.Logger, sessions repositories.GenerationSessionRepository, files repositories.SessionFileRepository, templates TemplateCatalog, phasePlanner PhasePlanner, phaseExecutor PhaseExecutor, phaseCorrector PhaseCorrector) *Engine {
	return &Engine{
		log:       log,
		sessions:  sessions,
		files:     files,
		templates: templates,
		planner:   phasePlanner,
		executor:  phaseExecutor,
		corrector: phaseCorrector,
		actors:    make(map[string]*actor),
	}
}

// StartRequest begins or resumes a generation run.
type StartRequest struct {
	SessionID    string
	Query        string
	TemplateName string
	Images       []string
}

// StartGeneration creates a session (or resumes an existing one from its
// last completed phase) and kicks off the asynchronous run. Returns the
// session id immediately.
func (e *Engine) StartGeneration(ctx context.Context, req StartRequest) (string, error) {
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	a, err := e.ensureActor(id, true)
	if err != nil {
		return "", err
	}

	var startErr error
	a.do(func() {
		state := a.state
		if a.running {
			// Already generating; a second start for the same session
			// is a no-op.
			return
		}
		if state.Status == models.StatusCompleted {
			startErr = models.NewGenerationError(models.ErrNamePhase, CodeSessionDone,
				fmt.Sprintf("session %s is already completed; clone it to regenerate", id), false)
			return
		}

		if state.Status == models.StatusIdle {
			if req.Query == "" {
				startErr = models.NewGenerationError(models.ErrNamePlanning, CodePlanningFailed, "query is required", false)
				return
			}
			state.Query = req.Query
			state.TemplateName = req.TemplateName
		}
		// Resume keeps completed phases; a previously failed phase gets
		// retried and overwrites only its own produced files.
		state.LastError = nil
		for i := range state.Phases {
			if state.Phases[i].Status != models.PhaseCompleted {
				state.Phases[i].Status = models.PhasePending
			}
		}
		state.Status = models.StatusBootstrapping
		state.UpdatedAt = time.Now()
		if err := e.persist(state, false); err != nil {
			startErr = fmt.Errorf("persist session %s: %w", id, err)
			return
		}

		runCtx, cancel := context.WithCancel(events.WithSession(context.Background(), id))
		a.running = true
		a.cancelRun = cancel
		a.runDone = make(chan struct{})
		e.emitStatus(runCtx, state)
		go e.run(runCtx, a, req.Images, a.runDone)
	})

	if startErr != nil {
		return "", startErr
	}
	return id, nil
}

// GetState returns a read-only snapshot of the session.
func (e *Engine) GetState(sessionID string) (models.SessionState, error) {
	a, err := e.ensureActor(sessionID, false)
	if err != nil {
		return models.SessionState{}, err
	}
	return a.snapshot(), nil
}

// AdvancePhase moves the cursor past completed phases and finalizes the
// session when the last phase is done. A no-op once the session is
// terminal: the returned state is unchanged and status never regresses.
func (e *Engine) AdvancePhase(sessionID string) (models.SessionState, error) {
	a, err := e.ensureActor(sessionID, false)
	if err != nil {
		return models.SessionState{}, err
	}
	var snap models.SessionState
	var persistErr error
	a.do(func() {
		if advanceSession(a.state) {
			a.state.UpdatedAt = time.Now()
			persistErr = e.persist(a.state, false)
		}
		snap = a.state.Clone()
	})
	return snap, persistErr
}

// FailGeneration transitions the session to failed with the given error.
// Idempotent at terminal status.
func (e *Engine) FailGeneration(sessionID string, genErr *models.GenerationError) (models.SessionState, error) {
	a, err := e.ensureActor(sessionID, false)
	if err != nil {
		return models.SessionState{}, err
	}
	var snap models.SessionState
	a.do(func() {
		e.failLocked(events.WithSession(context.Background(), sessionID), a.state, genErr)
		snap = a.state.Clone()
	})
	return snap, nil
}

// Cancel requests cooperative cancellation of the in-flight run. Safe to
// call at any time; a session with no run in flight is untouched.
func (e *Engine) Cancel(sessionID string) error {
	a, err := e.ensureActor(sessionID, false)
	if err != nil {
		return err
	}
	a.do(func() {
		if a.cancelRun != nil {
			a.cancelRun()
		}
	})
	return nil
}

// DeleteSession removes the session and its files. Sessions are destroyed
// only through this explicit call, never implicitly.
func (e *Engine) DeleteSession(sessionID string) error {
	e.mu.Lock()
	a, ok := e.actors[sessionID]
	if ok {
		delete(e.actors, sessionID)
	}
	e.mu.Unlock()

	if ok {
		var runDone chan struct{}
		a.do(func() {
			if a.cancelRun != nil {
				a.cancelRun()
			}
			runDone = a.runDone
		})
		if runDone != nil {
			// The cancelled run goroutine still posts its cleanup to the
			// mailbox; wait for it before closing the mailbox.
			<-runDone
		}
		a.stop()
	}
	if err := e.files.DeleteBySession(sessionID); err != nil {
		return fmt.Errorf("delete session files: %w", err)
	}
	return e.sessions.DeleteByID(sessionID)
}

// ListSessions returns the persisted session rows, newest first.
func (e *Engine) ListSessions() ([]models.GenerationSession, error) {
	return e.sessions.List()
}

// ensureActor returns the actor for a session id, loading persisted state
// on first access in this process (read-through cache). With create=false
// an unknown id is ErrSessionNotFound.
func (e *Engine) ensureActor(id string, create bool) (*actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.actors[id]; ok {
		return a, nil
	}

	rec, err := e.sessions.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var state *models.SessionState
	if rec != nil {
		fileRows, err := e.files.ListBySession(id)
		if err != nil {
			return nil, fmt.Errorf("load session files %s: %w", id, err)
		}
		state, err = models.StateFromRecord(rec, fileRows)
		if err != nil {
			return nil, err
		}
	} else {
		if !create {
			return nil, ErrSessionNotFound
		}
		now := time.Now()
		state = &models.SessionState{
			ID:        id,
			Status:    models.StatusIdle,
			Files:     make(map[string]models.FileEntry),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	a := newActor(id, state)
	e.actors[id] = a
	return a, nil
}

// persist writes the session row (and optionally the file rows) through to
// storage. Runs on the actor goroutine only.
func (e *Engine) persist(state *models.SessionState, withFiles bool) error {
	rec, err := state.ToRecord()
	if err != nil {
		return err
	}
	if err := e.sessions.Save(rec); err != nil {
		return err
	}
	if !withFiles {
		return nil
	}
	rows := make([]models.SessionFile, 0, len(state.Files))
	for _, path := range state.SortedFilePaths() {
		entry := state.Files[path]
		rows = append(rows, models.SessionFile{
			SessionID: state.ID,
			Path:      path,
			Content:   entry.Content,
			Revision:  entry.Revision,
		})
	}
	return e.files.ReplaceAll(state.ID, rows)
}

// update applies a mutation on the actor goroutine, bumps UpdatedAt and
// writes through. This is the single place session state changes.
func (e *Engine) update(a *actor, withFiles bool, mutate func(*models.SessionState)) error {
	var err error
	a.do(func() {
		mutate(a.state)
		a.state.UpdatedAt = time.Now()
		err = e.persist(a.state, withFiles)
	})
	if err != nil {
		e.log.Error("persist session failed", "session", a.id, "error", err)
	}
	return err
}

func (e *Engine) setStatus(state *models.SessionState, to models.SessionStatus) {
	if state.Status == to {
		return
	}
	if !IsValidTransition(state.Status, to) {
		e.log.Error("illegal status transition ignored", "session", state.ID, "from", state.Status, "to", to)
		return
	}
	state.Status = to
}

func (e *Engine) emitStatus(ctx context.Context, state *models.SessionState) {
	events.Emit(ctx, events.New(events.EventStatus, state.ID, state.View()))
}

// failLocked records the error, transitions to failed and emits the
// terminal events. Runs on the actor goroutine. No-op at terminal status.
func (e *Engine) failLocked(ctx context.Context, state *models.SessionState, genErr *models.GenerationError) {
	if state.Status.Terminal() {
		return
	}
	state.LastError = genErr
	state.Status = models.StatusFailed
	state.UpdatedAt = time.Now()
	if err := e.persist(state, false); err != nil {
		e.log.Error("persist failed session", "session", state.ID, "error", err)
	}
	events.Emit(ctx, events.New(events.EventError, state.ID, genErr))
	e.emitStatus(ctx, state)
}

// advanceSession moves the cursor past completed phases; monotonically
// non-decreasing, never past len(phases).
func advanceSession(s *models.SessionState) bool {
	if s.Status.Terminal() {
		return false
	}
	changed := false
	for s.CurrentPhaseIndex < len(s.Phases) && s.Phases[s.CurrentPhaseIndex].Status == models.PhaseCompleted {
		s.CurrentPhaseIndex++
		changed = true
	}
	if len(s.Phases) > 0 && s.CurrentPhaseIndex == len(s.Phases) &&
		s.Phases[len(s.Phases)-1].Status == models.PhaseCompleted &&
		IsValidTransition(s.Status, models.StatusCompleted) {
		s.Status = models.StatusCompleted
		changed = true
	}
	return changed
}
