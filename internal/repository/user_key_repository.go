package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cortex-rag/internal/model"
)

type UserKeyRepository struct {
	db *gorm.DB
}

func NewUserKeyRepository(db *gorm.DB) *UserKeyRepository {
	return &UserKeyRepository{db: db}
}

// Upsert stores or replaces the user's encrypted credential.
func (r *UserKeyRepository) Upsert(key *model.UserKey) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "updated_at"}),
	}).Create(key).Error; err != nil {
		return fmt.Errorf("upsert user key failed: %w", err)
	}
	return nil
}

// GetByUserID returns nil when the user has no stored credential.
func (r *UserKeyRepository) GetByUserID(userID string) (*model.UserKey, error) {
	var key model.UserKey
	if err := r.db.Where("user_id = ?", userID).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user key failed: %w", err)
	}
	return &key, nil
}

func (r *UserKeyRepository) DeleteByUserID(userID string) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&model.UserKey{}).Error; err != nil {
		return fmt.Errorf("delete user key failed: %w", err)
	}
	return nil
}
