package mocks

import (
	"context"

	"github.com/myselfgus/vibe/internal/models"
)

type TemplateRepositoryMock struct {
	GetAllFunc    func(ctx context.Context) ([]*models.Template, error)
	GetByNameFunc func(ctx context.Context, name string) (*models.Template, error)
	UpsertFunc    func(ctx context.Context, t *models.Template) error
}

func (m *TemplateRepositoryMock) GetAll(ctx context.Context) ([]*models.Template, error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}
	return nil, nil
}

func (m *TemplateRepositoryMock) GetByName(ctx context.Context, name string) (*models.Template, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, nil
}

func (m *TemplateRepositoryMock) Upsert(ctx context.Context, t *models.Template) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, t)
	}
	return nil
}
