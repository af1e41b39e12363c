package executor

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
)

//go:embed phase_prompt.txt
var phasePrompt string

// PhaseGenerationError means one phase failed after the gateway exhausted
// its retry and fallback budget. Non-recoverable instances (dependency
// violations, unparseable output) indicate a planner or model bug.
type PhaseGenerationError struct {
	PhaseID     string
	Recoverable bool
	Err         error
}

func (e *PhaseGenerationError) Error() string {
	return fmt.Sprintf("phase %s generation failed: %v", e.PhaseID, e.Err)
}

func (e *PhaseGenerationError) Unwrap() error { return e.Err }

// PhaseResult is the outcome of one executed phase: replacement content for
// every touched path with revisions already bumped, plus the transcript.
type PhaseResult struct {
	Updated  map[string]models.FileEntry
	Prompt   string
	Response string
	ModelKey string
	Tokens   int
}

// Executor runs single phases against the inference gateway. It never
// mutates session state itself; the engine applies the returned updates
// under the session actor.
type Executor struct {
	gw            *gateway.Gateway
	firstPhaseKey string
	phaseKey      string
}

func New(gw *gateway.Gateway, firstPhaseKey, phaseKey string) *Executor {
	return &Executor{gw: gw, firstPhaseKey: firstPhaseKey, phaseKey: phaseKey}
}

// ExecutePhase generates the files for plan index phaseIdx from a state
// snapshot. Dependency preconditions are re-checked here; a violation is a
// non-recoverable error, not a retry case.
func (e *Executor) ExecutePhase(ctx context.Context, log *slog.Logger, state *models.SessionState, phaseIdx int) (*PhaseResult, error) {
	if phaseIdx < 0 || phaseIdx >= len(state.Phases) {
		return nil, &PhaseGenerationError{
			PhaseID: fmt.Sprintf("index-%d", phaseIdx),
			Err:     fmt.Errorf("phase index %d out of range (plan has %d phases)", phaseIdx, len(state.Phases)),
		}
	}
	phase := state.Phases[phaseIdx]

	if !phase.DependenciesMet(state.Phases) {
		return nil, &PhaseGenerationError{
			PhaseID: phase.ID,
			Err:     fmt.Errorf("dependencies %v not completed", phase.DependsOn),
		}
	}

	modelKey := e.phaseKey
	if phaseIdx == 0 {
		// The first phase establishes the scaffold and may use a bigger
		// model budget than the rest of the plan.
		modelKey = e.firstPhaseKey
	}

	prompt := buildPhasePrompt(state, phase)
	res, err := e.gw.Invoke(ctx, log, gateway.Request{
		System: phasePrompt,
		Prompt: prompt,
	}, modelKey)
	if err != nil {
		if gateway.IsCancellation(err) {
			return nil, err
		}
		return nil, &PhaseGenerationError{PhaseID: phase.ID, Recoverable: false, Err: err}
	}

	updated, err := applyBlocks(state, res.Content)
	if err != nil {
		return nil, &PhaseGenerationError{PhaseID: phase.ID, Err: err}
	}
	if len(updated) == 0 {
		return nil, &PhaseGenerationError{
			PhaseID: phase.ID,
			Err:     fmt.Errorf("model output contained no file blocks"),
		}
	}

	log.Info("phase generated", "phase", phase.Name, "files", len(updated), "model", res.ModelKey)
	return &PhaseResult{
		Updated:  updated,
		Prompt:   prompt,
		Response: res.Content,
		ModelKey: res.ModelKey,
		Tokens:   res.TotalTokens,
	}, nil
}

// buildPhasePrompt assembles the phase description, the current content of
// dependency files for continuity, and the list of files to produce.
func buildPhasePrompt(state *models.SessionState, phase models.Phase) string {
	var b strings.Builder
	b.WriteString("Application request:\n")
	b.WriteString(state.Query)
	b.WriteString("\n\nCurrent phase: ")
	b.WriteString(phase.Name)
	b.WriteString("\n")
	b.WriteString(phase.Description)
	b.WriteString("\n\nFiles this phase must produce:\n")
	for _, f := range phase.ProducedFiles {
		b.WriteString("  ")
		b.WriteString(f)
		b.WriteString("\n")
	}

	ctxFiles := dependencyFiles(state, phase)
	if len(ctxFiles) > 0 {
		b.WriteString("\nExisting files for context:\n")
		for _, path := range ctxFiles {
			entry := state.Files[path]
			b.WriteString("\n--- ")
			b.WriteString(path)
			b.WriteString(" ---\n")
			b.WriteString(entry.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// dependencyFiles returns the paths produced by this phase's dependencies
// that already exist, in deterministic order.
func dependencyFiles(state *models.SessionState, phase models.Phase) []string {
	deps := make(map[string]bool, len(phase.DependsOn))
	for _, d := range phase.DependsOn {
		deps[d] = true
	}
	var paths []string
	for _, other := range state.Phases {
		if !deps[other.ID] {
			continue
		}
		for _, p := range other.ProducedFiles {
			if _, ok := state.Files[p]; ok {
				paths = append(paths, p)
			}
		}
	}
	// Files this phase already produced on a previous (retried) run also
	// provide continuity.
	for _, p := range phase.ProducedFiles {
		if _, ok := state.Files[p]; ok {
			paths = append(paths, p)
		}
	}
	return dedupe(paths)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// applyBlocks turns parsed file blocks into replacement entries with
// incremented revisions. Paths not mentioned by the model are untouched.
func applyBlocks(state *models.SessionState, output string) (map[string]models.FileEntry, error) {
	blocks := ParseFileBlocks(output)
	updated := make(map[string]models.FileEntry, len(blocks))
	for _, block := range blocks {
		current, exists := state.Files[block.Path]
		if prev, ok := updated[block.Path]; ok {
			current, exists = prev, true
		}

		content := block.Content
		if block.Patch {
			if !exists {
				return nil, fmt.Errorf("patch block for unknown file %s", block.Path)
			}
			applied, err := ApplyPatch(current.Content, block.Content)
			if err != nil {
				return nil, fmt.Errorf("apply patch to %s: %w", block.Path, err)
			}
			content = applied
		}

		revision := 1
		if exists {
			revision = current.Revision + 1
		}
		updated[block.Path] = models.FileEntry{Content: content, Revision: revision}
	}
	return updated, nil
}
