package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/myselfgus/vibe/internal/assets"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/repositories"
)

// TemplateService exposes the template catalog to the planner and the API.
// Satisfies the engine's template catalog boundary.
type TemplateService interface {
	Startup(ctx context.Context) error
	ListTemplates(ctx context.Context) ([]models.TemplateDetails, error)
	GetTemplateDetails(ctx context.Context, name string) (*models.TemplateDetails, error)
}

type templateService struct {
	repo repositories.TemplateRepository
}

type rawTemplateFile struct {
	Templates []rawTemplate `json:"templates"`
}

type rawTemplate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

func NewTemplateService(repo repositories.TemplateRepository) TemplateService {
	return &templateService{repo: repo}
}

// Startup seeds the database from the embedded catalog. Upserts, so asset
// updates flow through on restart while user edits to descriptions of
// unknown templates survive.
func (s *templateService) Startup(ctx context.Context) error {
	var parsed rawTemplateFile
	if err := json.Unmarshal(assets.TemplatesData, &parsed); err != nil {
		return fmt.Errorf("parse templates asset: %w", err)
	}
	if len(parsed.Templates) == 0 {
		return fmt.Errorf("template asset has no templates")
	}

	for _, tmpl := range parsed.Templates {
		name := strings.TrimSpace(tmpl.Name)
		if name == "" {
			continue
		}
		manifest, err := json.Marshal(tmpl.Files)
		if err != nil {
			return fmt.Errorf("encode manifest for %s: %w", name, err)
		}
		if err := s.repo.Upsert(ctx, &models.Template{
			Name:         name,
			Description:  strings.TrimSpace(tmpl.Description),
			ManifestJSON: string(manifest),
		}); err != nil {
			return fmt.Errorf("seed template %s: %w", name, err)
		}
	}
	return nil
}

func (s *templateService) ListTemplates(ctx context.Context) ([]models.TemplateDetails, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	details := make([]models.TemplateDetails, 0, len(rows))
	for _, row := range rows {
		d, err := decodeTemplate(row)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

func (s *templateService) GetTemplateDetails(ctx context.Context, name string) (*models.TemplateDetails, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	row, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	if row == nil {
		return nil, nil
	}
	return decodeTemplate(row)
}

func decodeTemplate(row *models.Template) (*models.TemplateDetails, error) {
	details := &models.TemplateDetails{
		Name:        row.Name,
		Description: row.Description,
	}
	if row.ManifestJSON != "" {
		if err := json.Unmarshal([]byte(row.ManifestJSON), &details.Files); err != nil {
			return nil, fmt.Errorf("decode manifest for %s: %w", row.Name, err)
		}
	}
	return details, nil
}
