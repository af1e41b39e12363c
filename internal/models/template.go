package models

import "time"

// Template is a project scaffold the planner builds on. ManifestJSON holds
// the template's file list; the planner feeds it to the blueprint prompt.
type Template struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:255;not null;uniqueIndex"`
	Description  string `gorm:"type:text"`
	ManifestJSON string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TemplateDetails is the API/planner view of a template with the manifest
// decoded.
type TemplateDetails struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}
