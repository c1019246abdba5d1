package repository

import (
	"fmt"

	"gorm.io/gorm"

	"cortex-rag/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListByNotebookID returns messages in conversation replay order.
func (r *MessageRepository) ListByNotebookID(notebookID string) ([]model.Message, error) {
	var list []model.Message
	if err := r.db.Where("notebook_id = ?", notebookID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return list, nil
}

func (r *MessageRepository) DeleteByNotebookID(notebookID string) error {
	if err := r.db.Where("notebook_id = ?", notebookID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete notebook messages failed: %w", err)
	}
	return nil
}
