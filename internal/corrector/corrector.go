package corrector

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/sandbox"
)

//go:embed correction_prompt.txt
var correctionPrompt string

// Corrector runs best-effort post-phase fixes: a sandbox check followed by
// at most MaxAttempts bounded inference calls patching the flagged files.
// It never fails a phase; on any error the pre-correction files are kept.
type Corrector struct {
	gw          *gateway.Gateway
	runner      sandbox.Runner
	modelKey    string
	maxAttempts int
}

func New(gw *gateway.Gateway, runner sandbox.Runner, modelKey string, maxAttempts int) *Corrector {
	return &Corrector{gw: gw, runner: runner, modelKey: modelKey, maxAttempts: maxAttempts}
}

// Enabled reports whether correction runs at all. The DISABLED model
// sentinel turns the whole stage into a pass-through.
func (c *Corrector) Enabled() bool {
	return c != nil && c.modelKey != "" && c.modelKey != models.ModelDisabled && c.maxAttempts > 0
}

// Outcome reports what correction did. Files holds corrected replacements
// (revision already bumped) for flagged paths only; Warnings are the
// non-fatal diagnostics to attach to the session.
type Outcome struct {
	Files    map[string]models.FileEntry
	Warnings []string
}

// Correct checks the freshly produced phase files and tries to repair any
// reported issues. All failure paths degrade to "keep what we have" with a
// logged warning.
func (c *Corrector) Correct(ctx context.Context, log *slog.Logger, state *models.SessionState, phase models.Phase) Outcome {
	if !c.Enabled() {
		return Outcome{}
	}

	tree := make(map[string]string, len(state.Files))
	for path, entry := range state.Files {
		tree[path] = entry.Content
	}

	outcome := Outcome{Files: make(map[string]models.FileEntry)}
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		issues, err := c.runner.Check(ctx, tree)
		if err != nil {
			log.Warn("correction check failed, keeping files as-is", "phase", phase.Name, "error", err)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("static check unavailable: %v", err))
			return outcome
		}
		issues = filterToPhase(issues, phase)
		if len(issues) == 0 {
			return outcome
		}

		log.Info("correction pass", "phase", phase.Name, "attempt", attempt, "issues", len(issues))

		fixed, err := c.requestFixes(ctx, log, state, tree, phase, issues, outcome.Files)
		if err != nil {
			log.Warn("correction call failed, keeping files as-is", "phase", phase.Name, "error", err)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("correction attempt %d failed: %v", attempt, err))
			return outcome
		}
		for path, entry := range fixed {
			tree[path] = entry.Content
			outcome.Files[path] = entry
		}
	}

	// Attempts exhausted with issues possibly remaining; the phase still
	// completes, flagged with a diagnostic.
	if issues, err := c.runner.Check(ctx, tree); err == nil {
		if remaining := filterToPhase(issues, phase); len(remaining) > 0 {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("%d issue(s) remain after %d correction attempt(s)", len(remaining), c.maxAttempts))
		}
	}
	return outcome
}

// requestFixes issues one bounded inference call asking the model to patch
// only the flagged files.
func (c *Corrector) requestFixes(ctx context.Context, log *slog.Logger, state *models.SessionState, tree map[string]string, phase models.Phase, issues []sandbox.Issue, already map[string]models.FileEntry) (map[string]models.FileEntry, error) {
	flagged := make(map[string]bool)
	var b strings.Builder
	b.WriteString("Reported problems:\n")
	for _, issue := range issues {
		flagged[issue.Path] = true
		if issue.Line > 0 {
			fmt.Fprintf(&b, "  %s:%d [%s] %s\n", issue.Path, issue.Line, issue.Kind, issue.Message)
		} else {
			fmt.Fprintf(&b, "  %s [%s] %s\n", issue.Path, issue.Kind, issue.Message)
		}
	}
	b.WriteString("\nFlagged file contents:\n")
	for path := range flagged {
		content, ok := tree[path]
		if !ok {
			continue
		}
		b.WriteString("\n--- ")
		b.WriteString(path)
		b.WriteString(" ---\n")
		b.WriteString(content)
		b.WriteString("\n")
	}

	res, err := c.gw.Invoke(ctx, log, gateway.Request{
		System: correctionPrompt,
		Prompt: b.String(),
	}, c.modelKey)
	if err != nil {
		return nil, err
	}

	blocks := executor.ParseFileBlocks(res.Content)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("correction output contained no file blocks")
	}

	fixed := make(map[string]models.FileEntry, len(blocks))
	for _, block := range blocks {
		if !flagged[block.Path] {
			// The model tried to touch an unflagged file; ignore it.
			log.Warn("correction touched unflagged file, ignoring", "path", block.Path)
			continue
		}
		content := block.Content
		if block.Patch {
			applied, err := executor.ApplyPatch(tree[block.Path], block.Content)
			if err != nil {
				return nil, fmt.Errorf("apply correction patch to %s: %w", block.Path, err)
			}
			content = applied
		}
		revision := 1
		if entry, ok := already[block.Path]; ok {
			revision = entry.Revision + 1
		} else if entry, ok := state.Files[block.Path]; ok {
			revision = entry.Revision + 1
		}
		fixed[block.Path] = models.FileEntry{Content: content, Revision: revision}
	}
	return fixed, nil
}

// filterToPhase keeps only issues in files this phase is responsible for.
func filterToPhase(issues []sandbox.Issue, phase models.Phase) []sandbox.Issue {
	owned := make(map[string]bool, len(phase.ProducedFiles))
	for _, f := range phase.ProducedFiles {
		owned[f] = true
	}
	var out []sandbox.Issue
	for _, issue := range issues {
		if owned[issue.Path] {
			out = append(out, issue)
		}
	}
	return out
}
