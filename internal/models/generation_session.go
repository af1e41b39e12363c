package models

import "time"

type SessionStatus string

const (
	StatusIdle          SessionStatus = "idle"
	StatusBootstrapping SessionStatus = "bootstrapping"
	StatusPlanning      SessionStatus = "planning"
	StatusGenerating    SessionStatus = "generating"
	StatusCorrecting    SessionStatus = "correcting"
	StatusCompleted     SessionStatus = "completed"
	StatusFailed        SessionStatus = "failed"
)

// Terminal reports whether a session status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationSession is the persisted root aggregate for one generation run.
// Phases, diagnostics and the last error are serialized as JSON columns;
// generated files live in their own table (see SessionFile).
type GenerationSession struct {
	ID                string `gorm:"primaryKey;size:64"`
	Query             string `gorm:"type:text"`
	TemplateName      string `gorm:"size:255;index"`
	Status            string `gorm:"size:32;not null;default:idle"`
	CurrentPhaseIndex int    `gorm:"not null;default:0"`
	PhasesJSON        string `gorm:"type:text"`
	TranscriptJSON    string `gorm:"type:text"`
	DiagnosticsJSON   string `gorm:"type:text"`
	LastErrorJSON     string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SessionFile is one generated file. Revision increments every time the
// content is replaced; untouched files keep their revision.
type SessionFile struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"size:64;not null;index:idx_session_file_path,unique"`
	Path      string `gorm:"size:512;not null;index:idx_session_file_path,unique"`
	Content   string `gorm:"type:text"`
	Revision  int    `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
