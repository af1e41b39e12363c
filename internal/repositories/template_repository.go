package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/myselfgus/vibe/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateRepository interface {
	GetAll(ctx context.Context) ([]*models.Template, error)
	GetByName(ctx context.Context, name string) (*models.Template, error)
	Upsert(ctx context.Context, t *models.Template) error
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetAll(ctx context.Context) ([]*models.Template, error) {
	var templates []*models.Template
	res := r.db.WithContext(ctx).Order("name asc").Find(&templates)
	if res.Error != nil {
		return nil, res.Error
	}
	return templates, nil
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*models.Template, error) {
	var tmpl models.Template
	res := r.db.WithContext(ctx).Where("name = ?", name).Take(&tmpl)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &tmpl, nil
}

func (r *templateRepository) Upsert(ctx context.Context, t *models.Template) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "manifest_json", "updated_at"}),
	}).Create(t).Error
}
