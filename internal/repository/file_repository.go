package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cortex-rag/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Add records a file name under a notebook; uploading the same name twice is
// a no-op so re-ingests do not grow the file list.
func (r *FileRepository) Add(file *model.File) error {
	var existing model.File
	err := r.db.Where("notebook_id = ? AND name = ?", file.NotebookID, file.Name).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("query file failed: %w", err)
	}
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) ListNamesByNotebookID(notebookID string) ([]string, error) {
	var names []string
	if err := r.db.Model(&model.File{}).
		Where("notebook_id = ?", notebookID).
		Order("created_at ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list file names failed: %w", err)
	}
	return names, nil
}

func (r *FileRepository) DeleteByNotebookIDAndName(notebookID, name string) error {
	if err := r.db.Where("notebook_id = ? AND name = ?", notebookID, name).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteByNotebookID(notebookID string) error {
	if err := r.db.Where("notebook_id = ?", notebookID).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete notebook files failed: %w", err)
	}
	return nil
}
