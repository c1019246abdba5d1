package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cortex-rag/internal/model"
)

type NotebookRepository struct {
	db *gorm.DB
}

func NewNotebookRepository(db *gorm.DB) *NotebookRepository {
	return &NotebookRepository{db: db}
}

func (r *NotebookRepository) Create(notebook *model.Notebook) error {
	if err := r.db.Create(notebook).Error; err != nil {
		return fmt.Errorf("create notebook failed: %w", err)
	}
	return nil
}

// ListByUserID returns the user's notebooks, newest first.
func (r *NotebookRepository) ListByUserID(userID string) ([]model.Notebook, error) {
	var list []model.Notebook
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list notebooks failed: %w", err)
	}
	return list, nil
}

// GetByIDAndUserID returns nil when the notebook does not exist or belongs to
// another user; the two cases are indistinguishable on purpose.
func (r *NotebookRepository) GetByIDAndUserID(id, userID string) (*model.Notebook, error) {
	var notebook model.Notebook
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&notebook).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query notebook failed: %w", err)
	}
	return &notebook, nil
}

func (r *NotebookRepository) Rename(id, userID, name string) error {
	if err := r.db.Model(&model.Notebook{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("name", name).Error; err != nil {
		return fmt.Errorf("rename notebook failed: %w", err)
	}
	return nil
}

func (r *NotebookRepository) DeleteByIDAndUserID(id, userID string) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Notebook{}).Error; err != nil {
		return fmt.Errorf("delete notebook failed: %w", err)
	}
	return nil
}
