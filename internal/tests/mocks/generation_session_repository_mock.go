package mocks

import (
	"sort"
	"sync"

	"github.com/myselfgus/vibe/internal/models"
)

// GenerationSessionRepositoryMock is an in-memory session store. Func
// fields override individual methods when set.
type GenerationSessionRepositoryMock struct {
	ListFunc       func() ([]models.GenerationSession, error)
	GetByIDFunc    func(id string) (*models.GenerationSession, error)
	SaveFunc       func(session *models.GenerationSession) error
	DeleteByIDFunc func(id string) error

	mu   sync.Mutex
	rows map[string]models.GenerationSession
}

func (m *GenerationSessionRepositoryMock) List() ([]models.GenerationSession, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GenerationSession, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *GenerationSessionRepositoryMock) GetByID(id string) (*models.GenerationSession, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (m *GenerationSessionRepositoryMock) Save(session *models.GenerationSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[string]models.GenerationSession)
	}
	m.rows[session.ID] = *session
	return nil
}

func (m *GenerationSessionRepositoryMock) DeleteByID(id string) error {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}
