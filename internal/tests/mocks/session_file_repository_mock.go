package mocks

import (
	"sort"
	"sync"

	"github.com/myselfgus/vibe/internal/models"
)

// SessionFileRepositoryMock is an in-memory file store keyed by session id.
type SessionFileRepositoryMock struct {
	ListBySessionFunc   func(sessionID string) ([]models.SessionFile, error)
	ReplaceAllFunc      func(sessionID string, files []models.SessionFile) error
	DeleteBySessionFunc func(sessionID string) error

	mu   sync.Mutex
	rows map[string][]models.SessionFile
}

func (m *SessionFileRepositoryMock) ListBySession(sessionID string) ([]models.SessionFile, error) {
	if m.ListBySessionFunc != nil {
		return m.ListBySessionFunc(sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.SessionFile(nil), m.rows[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *SessionFileRepositoryMock) ReplaceAll(sessionID string, files []models.SessionFile) error {
	if m.ReplaceAllFunc != nil {
		return m.ReplaceAllFunc(sessionID, files)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[string][]models.SessionFile)
	}
	m.rows[sessionID] = append([]models.SessionFile(nil), files...)
	return nil
}

func (m *SessionFileRepositoryMock) DeleteBySession(sessionID string) error {
	if m.DeleteBySessionFunc != nil {
		return m.DeleteBySessionFunc(sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, sessionID)
	return nil
}
