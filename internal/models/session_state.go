package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// FileEntry is the in-memory form of one generated file.
type FileEntry struct {
	Content  string `json:"content"`
	Revision int    `json:"revision"`
}

// TranscriptEntry records one prompt/response exchange so a resumed session
// keeps its generation context.
type TranscriptEntry struct {
	Phase    int    `json:"phase"`
	Stage    string `json:"stage"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// SessionState is the decoded in-memory aggregate owned by a session actor.
// All mutation happens inside the actor; everyone else gets copies.
type SessionState struct {
	ID                string
	Query             string
	TemplateName      string
	Status            SessionStatus
	CurrentPhaseIndex int
	Phases            []Phase
	Files             map[string]FileEntry
	Transcript        []TranscriptEntry
	Diagnostics       []Diagnostic
	LastError         *GenerationError
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy safe to hand to readers.
func (s *SessionState) Clone() SessionState {
	out := *s
	out.Phases = append([]Phase(nil), s.Phases...)
	for i, p := range out.Phases {
		out.Phases[i].DependsOn = append([]string(nil), p.DependsOn...)
		out.Phases[i].ProducedFiles = append([]string(nil), p.ProducedFiles...)
	}
	out.Files = make(map[string]FileEntry, len(s.Files))
	for k, v := range s.Files {
		out.Files[k] = v
	}
	out.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	out.Diagnostics = append([]Diagnostic(nil), s.Diagnostics...)
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}

// SortedFilePaths returns the file paths in deterministic order.
func (s *SessionState) SortedFilePaths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ToRecord serializes the state back into its persisted row form. Files are
// persisted separately.
func (s *SessionState) ToRecord() (*GenerationSession, error) {
	phases, err := json.Marshal(s.Phases)
	if err != nil {
		return nil, fmt.Errorf("marshal phases: %w", err)
	}
	transcript, err := json.Marshal(s.Transcript)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}
	diags, err := json.Marshal(s.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("marshal diagnostics: %w", err)
	}
	lastErr := ""
	if s.LastError != nil {
		raw, err := json.Marshal(s.LastError)
		if err != nil {
			return nil, fmt.Errorf("marshal last error: %w", err)
		}
		lastErr = string(raw)
	}
	return &GenerationSession{
		ID:                s.ID,
		Query:             s.Query,
		TemplateName:      s.TemplateName,
		Status:            string(s.Status),
		CurrentPhaseIndex: s.CurrentPhaseIndex,
		PhasesJSON:        string(phases),
		TranscriptJSON:    string(transcript),
		DiagnosticsJSON:   string(diags),
		LastErrorJSON:     lastErr,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}, nil
}

// StateFromRecord decodes a persisted session row plus its file rows.
func StateFromRecord(rec *GenerationSession, files []SessionFile) (*SessionState, error) {
	state := &SessionState{
		ID:                rec.ID,
		Query:             rec.Query,
		TemplateName:      rec.TemplateName,
		Status:            SessionStatus(rec.Status),
		CurrentPhaseIndex: rec.CurrentPhaseIndex,
		Files:             make(map[string]FileEntry, len(files)),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	if rec.PhasesJSON != "" {
		if err := json.Unmarshal([]byte(rec.PhasesJSON), &state.Phases); err != nil {
			return nil, fmt.Errorf("decode phases for session %s: %w", rec.ID, err)
		}
	}
	if rec.TranscriptJSON != "" {
		if err := json.Unmarshal([]byte(rec.TranscriptJSON), &state.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript for session %s: %w", rec.ID, err)
		}
	}
	if rec.DiagnosticsJSON != "" {
		if err := json.Unmarshal([]byte(rec.DiagnosticsJSON), &state.Diagnostics); err != nil {
			return nil, fmt.Errorf("decode diagnostics for session %s: %w", rec.ID, err)
		}
	}
	if rec.LastErrorJSON != "" {
		var genErr GenerationError
		if err := json.Unmarshal([]byte(rec.LastErrorJSON), &genErr); err != nil {
			return nil, fmt.Errorf("decode last error for session %s: %w", rec.ID, err)
		}
		state.LastError = &genErr
	}
	for _, f := range files {
		state.Files[f.Path] = FileEntry{Content: f.Content, Revision: f.Revision}
	}
	return state, nil
}
