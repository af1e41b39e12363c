package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myselfgus/vibe/internal/events"
	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
)

// run is the asynchronous generation loop for one session. It only ever
// mutates state through the actor, so concurrent GetState calls always see
// a consistent snapshot.
func (e *Engine) run(ctx context.Context, a *actor, images []string, done chan struct{}) {
	log := e.log.With("session", a.id)
	defer close(done)
	defer a.do(func() {
		a.running = false
		a.cancelRun = nil
	})

	if err := e.prepare(ctx, log, a, images); err != nil {
		e.failPhase(ctx, a, -1, err)
		return
	}

	for {
		if ctx.Err() != nil {
			e.failPhase(ctx, a, e.currentIndex(a), &gateway.CancellationError{Err: ctx.Err()})
			return
		}

		snap := a.snapshot()
		if snap.Status.Terminal() {
			return
		}
		if snap.CurrentPhaseIndex >= len(snap.Phases) {
			if err := e.update(a, false, func(s *models.SessionState) { advanceSession(s) }); err != nil {
				e.failPhase(ctx, a, -1, storageError(err))
				return
			}
			e.emitStatusSnap(ctx, a)
			log.Info("generation completed", "phases", len(snap.Phases))
			return
		}

		idx := snap.CurrentPhaseIndex
		phase := snap.Phases[idx]
		if phase.Status == models.PhaseCompleted {
			if err := e.update(a, false, func(s *models.SessionState) { advanceSession(s) }); err != nil {
				e.failPhase(ctx, a, -1, storageError(err))
				return
			}
			continue
		}
		if !phase.DependenciesMet(snap.Phases) {
			// Planner bug, not a transient failure: the phase never enters
			// running.
			e.failPhase(ctx, a, idx, models.NewGenerationError(
				models.ErrNamePhase, CodeDependency,
				fmt.Sprintf("phase %s has incomplete dependencies %v", phase.Name, phase.DependsOn), false))
			return
		}

		plog := log.With("phase", idx)
		if err := e.update(a, false, func(s *models.SessionState) {
			s.Phases[idx].Status = models.PhaseRunning
			e.setStatus(s, models.StatusGenerating)
		}); err != nil {
			e.failPhase(ctx, a, idx, storageError(err))
			return
		}
		e.emitStatusSnap(ctx, a)

		res, err := e.executor.ExecutePhase(ctx, plog, &snap, idx)
		if err != nil {
			e.failPhase(ctx, a, idx, err)
			return
		}

		if err := e.update(a, true, func(s *models.SessionState) {
			for path, entry := range res.Updated {
				s.Files[path] = entry
			}
			s.Transcript = append(s.Transcript, models.TranscriptEntry{
				Phase:    idx,
				Stage:    "generate",
				Model:    res.ModelKey,
				Prompt:   res.Prompt,
				Response: res.Response,
			})
		}); err != nil {
			e.failPhase(ctx, a, idx, storageError(err))
			return
		}

		if e.corrector.Enabled() {
			if err := e.update(a, false, func(s *models.SessionState) {
				s.Phases[idx].Status = models.PhaseCorrecting
				e.setStatus(s, models.StatusCorrecting)
			}); err != nil {
				e.failPhase(ctx, a, idx, storageError(err))
				return
			}
			e.emitStatusSnap(ctx, a)

			snapAfter := a.snapshot()
			outcome := e.corrector.Correct(ctx, plog, &snapAfter, snapAfter.Phases[idx])
			if len(outcome.Files) > 0 || len(outcome.Warnings) > 0 {
				if err := e.update(a, len(outcome.Files) > 0, func(s *models.SessionState) {
					for path, entry := range outcome.Files {
						s.Files[path] = entry
					}
					for _, w := range outcome.Warnings {
						s.Diagnostics = append(s.Diagnostics, models.Diagnostic{
							Source:  "corrector",
							Message: w,
							Phase:   idx,
						})
					}
				}); err != nil {
					e.failPhase(ctx, a, idx, storageError(err))
					return
				}
			}
		}

		if ctx.Err() != nil {
			e.failPhase(ctx, a, idx, &gateway.CancellationError{Err: ctx.Err()})
			return
		}

		if err := e.update(a, false, func(s *models.SessionState) {
			s.Phases[idx].Status = models.PhaseCompleted
			if s.Status == models.StatusCorrecting {
				e.setStatus(s, models.StatusGenerating)
			}
			advanceSession(s)
		}); err != nil {
			e.failPhase(ctx, a, idx, storageError(err))
			return
		}
		events.Emit(ctx, events.New(events.EventPhaseCompleted, a.id, map[string]any{
			"phase": idx,
			"name":  phase.Name,
			"files": phase.ProducedFiles,
		}))
		e.emitStatusSnap(ctx, a)
		plog.Info("phase completed", "name", phase.Name)
	}
}

// prepare transitions through bootstrapping and planning. On resume the
// existing plan is kept: plans are immutable once planning completes.
func (e *Engine) prepare(ctx context.Context, log *slog.Logger, a *actor, images []string) error {
	snap := a.snapshot()

	if len(snap.Phases) > 0 {
		if err := e.update(a, false, func(s *models.SessionState) {
			e.setStatus(s, models.StatusPlanning)
			e.setStatus(s, models.StatusGenerating)
		}); err != nil {
			return storageError(err)
		}
		e.emitStatusSnap(ctx, a)
		log.Info("resuming session", "fromPhase", snap.CurrentPhaseIndex, "phases", len(snap.Phases))
		return nil
	}

	if err := e.update(a, false, func(s *models.SessionState) {
		e.setStatus(s, models.StatusPlanning)
	}); err != nil {
		return storageError(err)
	}
	e.emitStatusSnap(ctx, a)

	tmpl, err := e.resolveTemplate(ctx, snap.TemplateName)
	if err != nil {
		return err
	}

	res, err := e.planner.Plan(ctx, log, snap.Query, tmpl, images)
	if err != nil {
		return err
	}
	log.Info("plan ready", "template", tmpl.Name, "phases", len(res.Phases))

	if err := e.update(a, false, func(s *models.SessionState) {
		s.TemplateName = tmpl.Name
		s.Phases = res.Phases
		s.CurrentPhaseIndex = 0
		for _, w := range res.Warnings {
			s.Diagnostics = append(s.Diagnostics, models.Diagnostic{Source: "planner", Message: w, Phase: -1})
		}
		e.setStatus(s, models.StatusGenerating)
	}); err != nil {
		return storageError(err)
	}
	e.emitStatusSnap(ctx, a)
	return nil
}

// storageError wraps a failed write-through. In-memory and stored state
// must never diverge silently, so the run fails instead of continuing on
// memory alone. Recoverable: resume retries from the last completed phase.
func storageError(err error) *models.GenerationError {
	return models.NewGenerationError(models.ErrNamePhase, CodeStorage,
		fmt.Sprintf("persist session state: %v", err), true)
}

// resolveTemplate picks the requested template, or the first catalog entry
// when none was named. An empty catalog is fatal to planning.
func (e *Engine) resolveTemplate(ctx context.Context, name string) (*models.TemplateDetails, error) {
	if name == "" {
		all, err := e.templates.ListTemplates(ctx)
		if err != nil {
			return nil, &planner.PlanningError{Reason: "template catalog unavailable", Err: err}
		}
		if len(all) == 0 {
			return nil, &planner.PlanningError{Reason: "template catalog is empty"}
		}
		tmpl := all[0]
		return &tmpl, nil
	}
	tmpl, err := e.templates.GetTemplateDetails(ctx, name)
	if err != nil {
		return nil, &planner.PlanningError{Reason: fmt.Sprintf("load template %s", name), Err: err}
	}
	if tmpl == nil {
		return nil, &planner.PlanningError{Reason: fmt.Sprintf("template %s not found", name)}
	}
	return tmpl, nil
}

// failPhase marks the phase (if any) failed, records the structured error
// and transitions the session to failed.
func (e *Engine) failPhase(ctx context.Context, a *actor, idx int, err error) {
	genErr := toGenerationError(err, idx)
	if idx >= 0 {
		e.update(a, false, func(s *models.SessionState) {
			if idx < len(s.Phases) && s.Phases[idx].Status != models.PhaseCompleted {
				s.Phases[idx].Status = models.PhaseFailed
			}
		})
		events.Emit(ctx, events.New(events.EventPhaseFailed, a.id, map[string]any{
			"phase": idx,
			"error": genErr,
		}))
	}
	a.do(func() {
		e.failLocked(ctx, a.state, genErr)
	})
	e.log.Error("generation failed", "session", a.id, "phase", idx, "error", genErr)
}

func (e *Engine) emitStatusSnap(ctx context.Context, a *actor) {
	snap := a.snapshot()
	events.Emit(ctx, events.New(events.EventStatus, a.id, snap.View()))
}

func (e *Engine) currentIndex(a *actor) int {
	snap := a.snapshot()
	if snap.CurrentPhaseIndex < len(snap.Phases) {
		return snap.CurrentPhaseIndex
	}
	return -1
}
