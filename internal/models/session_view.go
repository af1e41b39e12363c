package models

import "time"

// FileView is the API shape of one generated file.
type FileView struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Revision int    `json:"revision"`
}

// SessionView is the JSON snapshot of a session handed to API callers and
// stream subscribers.
type SessionView struct {
	ID                string           `json:"id"`
	Query             string           `json:"query"`
	TemplateName      string           `json:"templateName,omitempty"`
	Status            SessionStatus    `json:"status"`
	CurrentPhaseIndex int              `json:"currentPhaseIndex"`
	Phases            []Phase          `json:"phases"`
	Files             []FileView       `json:"files"`
	Diagnostics       []Diagnostic     `json:"diagnostics,omitempty"`
	LastError         *GenerationError `json:"lastError,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// View converts the in-memory state into its API snapshot. Files come out
// in deterministic path order.
func (s *SessionState) View() SessionView {
	view := SessionView{
		ID:                s.ID,
		Query:             s.Query,
		TemplateName:      s.TemplateName,
		Status:            s.Status,
		CurrentPhaseIndex: s.CurrentPhaseIndex,
		Phases:            append([]Phase(nil), s.Phases...),
		Diagnostics:       append([]Diagnostic(nil), s.Diagnostics...),
		LastError:         s.LastError,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if view.Phases == nil {
		view.Phases = []Phase{}
	}
	view.Files = make([]FileView, 0, len(s.Files))
	for _, path := range s.SortedFilePaths() {
		entry := s.Files[path]
		view.Files = append(view.Files, FileView{Path: path, Content: entry.Content, Revision: entry.Revision})
	}
	return view
}
