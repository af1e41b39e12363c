package planner

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
)

// blueprintPrompt is the built-in system prompt for the planning stage so
// packaged executables need no access to the source tree.
//
//go:embed blueprint_prompt.txt
var blueprintPrompt string

// PlanningError means no usable plan could be produced. Always fatal to
// the session.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Planner turns a user request plus a template manifest into an ordered
// phase list with a single blueprint-model inference call.
type Planner struct {
	gw            *gateway.Gateway
	blueprintKey  string
	strictOverlap bool
}

func New(gw *gateway.Gateway, blueprintKey string, strictOverlap bool) *Planner {
	return &Planner{gw: gw, blueprintKey: blueprintKey, strictOverlap: strictOverlap}
}

// Result carries the parsed plan plus any non-fatal validation warnings.
type Result struct {
	Phases   []models.Phase
	Warnings []string
	Raw      string
}

// Plan runs the blueprint call and validates its output. Overlapping file
// sets across phases are a warning by default (last writer wins) and a
// hard failure in strict mode.
func (p *Planner) Plan(ctx context.Context, log *slog.Logger, query string, tmpl *models.TemplateDetails, images []string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &PlanningError{Reason: "empty user query"}
	}
	if tmpl == nil {
		return nil, &PlanningError{Reason: "no template selected"}
	}

	prompt := buildPlanPrompt(query, tmpl)
	res, err := p.gw.Invoke(ctx, log, gateway.Request{
		System: blueprintPrompt,
		Prompt: prompt,
		Images: images,
	}, p.blueprintKey)
	if err != nil {
		return nil, &PlanningError{Reason: "blueprint model call failed", Err: err}
	}

	phases, err := parsePlan(res.Content)
	if err != nil {
		return nil, &PlanningError{Reason: "model output is not a valid plan", Err: err}
	}
	if len(phases) == 0 {
		return nil, &PlanningError{Reason: "model produced an empty plan"}
	}

	warnings := validateOverlap(phases)
	if len(warnings) > 0 && p.strictOverlap {
		return nil, &PlanningError{Reason: strings.Join(warnings, "; ")}
	}
	for _, w := range warnings {
		log.Warn("plan validation", "warning", w)
	}

	return &Result{Phases: phases, Warnings: warnings, Raw: res.Content}, nil
}

func buildPlanPrompt(query string, tmpl *models.TemplateDetails) string {
	var b strings.Builder
	b.WriteString("User request:\n")
	b.WriteString(query)
	b.WriteString("\n\nProject template: ")
	b.WriteString(tmpl.Name)
	if tmpl.Description != "" {
		b.WriteString(" - ")
		b.WriteString(tmpl.Description)
	}
	b.WriteString("\n\nTemplate file manifest:\n")
	for _, f := range tmpl.Files {
		b.WriteString("  ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nProduce the phase plan now.")
	return b.String()
}

type rawPlan struct {
	Phases []rawPhase `json:"phases"`
}

type rawPhase struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	DependsOn   []string `json:"dependsOn"`
}

// parsePlan accepts either a top-level object with a "phases" array or a
// bare array, with or without a markdown fence around the JSON.
func parsePlan(content string) ([]models.Phase, error) {
	payload := extractJSON(content)

	var wrapped rawPlan
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil || len(wrapped.Phases) == 0 {
		var bare []rawPhase
		if bareErr := json.Unmarshal([]byte(payload), &bare); bareErr != nil {
			if err == nil {
				err = bareErr
			}
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		wrapped.Phases = bare
	}

	nameToID := make(map[string]string, len(wrapped.Phases))
	phases := make([]models.Phase, 0, len(wrapped.Phases))
	for i, rp := range wrapped.Phases {
		name := strings.TrimSpace(rp.Name)
		if name == "" {
			return nil, fmt.Errorf("phase %d has no name", i+1)
		}
		id := fmt.Sprintf("phase-%d", i+1)
		nameToID[strings.ToLower(name)] = id
		phase := models.Phase{
			ID:            id,
			Name:          name,
			Description:   strings.TrimSpace(rp.Description),
			Status:        models.PhasePending,
			ProducedFiles: cleanPaths(rp.Files),
		}
		if len(rp.DependsOn) > 0 {
			for _, dep := range rp.DependsOn {
				depID, ok := nameToID[strings.ToLower(strings.TrimSpace(dep))]
				if !ok {
					return nil, fmt.Errorf("phase %q depends on unknown phase %q", name, dep)
				}
				phase.DependsOn = append(phase.DependsOn, depID)
			}
		} else if i > 0 {
			// Default to a linear plan: depend on the immediate predecessor.
			phase.DependsOn = []string{fmt.Sprintf("phase-%d", i)}
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

// extractJSON strips an optional markdown code fence around the payload.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "./"))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func validateOverlap(phases []models.Phase) []string {
	owner := make(map[string]string)
	var warnings []string
	for _, phase := range phases {
		for _, f := range phase.ProducedFiles {
			if prev, ok := owner[f]; ok {
				warnings = append(warnings, fmt.Sprintf("file %s produced by both %s and %s (last writer wins)", f, prev, phase.Name))
				continue
			}
			owner[f] = phase.Name
		}
	}
	return warnings
}
