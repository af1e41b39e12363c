package repositories

import (
	"errors"
	"fmt"

	"github.com/myselfgus/vibe/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GenerationSessionRepository interface {
	List() ([]models.GenerationSession, error)
	GetByID(id string) (*models.GenerationSession, error)
	Save(session *models.GenerationSession) error
	DeleteByID(id string) error
}

type generationSessionRepository struct {
	db *gorm.DB
}

func NewGenerationSessionRepository(db *gorm.DB) GenerationSessionRepository {
	return &generationSessionRepository{db: db}
}

func (r *generationSessionRepository) List() ([]models.GenerationSession, error) {
	var sessions []models.GenerationSession
	res := r.db.Order("updated_at desc").Find(&sessions)
	if res.Error != nil {
		return nil, res.Error
	}
	return sessions, nil
}

func (r *generationSessionRepository) GetByID(id string) (*models.GenerationSession, error) {
	var sess models.GenerationSession
	res := r.db.Where("id = ?", id).Take(&sess)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &sess, nil
}

// Save upserts the full session row keyed by id.
func (r *generationSessionRepository) Save(session *models.GenerationSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(session).Error
}

func (r *generationSessionRepository) DeleteByID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	return r.db.Where("id = ?", id).Delete(&models.GenerationSession{}).Error
}
