package repositories

import (
	"fmt"

	"github.com/myselfgus/vibe/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionFileRepository interface {
	ListBySession(sessionID string) ([]models.SessionFile, error)
	ReplaceAll(sessionID string, files []models.SessionFile) error
	DeleteBySession(sessionID string) error
}

type sessionFileRepository struct {
	db *gorm.DB
}

func NewSessionFileRepository(db *gorm.DB) SessionFileRepository {
	return &sessionFileRepository{db: db}
}

func (r *sessionFileRepository) ListBySession(sessionID string) ([]models.SessionFile, error) {
	var files []models.SessionFile
	res := r.db.Where("session_id = ?", sessionID).Order("path asc").Find(&files)
	if res.Error != nil {
		return nil, res.Error
	}
	return files, nil
}

// ReplaceAll writes the session's complete file set in one transaction.
// Upserting on (session_id, path) keeps row ids stable for unchanged paths.
func (r *sessionFileRepository) ReplaceAll(sessionID string, files []models.SessionFile) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(files))
		for i := range files {
			files[i].SessionID = sessionID
			keep = append(keep, files[i].Path)
		}
		if len(files) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "path"}},
				DoUpdates: clause.AssignmentColumns([]string{"content", "revision", "updated_at"}),
			}).Create(&files).Error; err != nil {
				return err
			}
		}
		del := tx.Where("session_id = ?", sessionID)
		if len(keep) > 0 {
			del = del.Where("path NOT IN ?", keep)
		}
		return del.Delete(&models.SessionFile{}).Error
	})
}

func (r *sessionFileRepository) DeleteBySession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	return r.db.Where("session_id = ?", sessionID).Delete(&models.SessionFile{}).Error
}
