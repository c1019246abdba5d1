package model

import "time"

// File is a named source attached to a notebook. Raw content is not stored;
// it lives as vectors in the notebook's namespace.
type File struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	NotebookID string    `gorm:"type:char(36);not null;index" json:"notebook_id"`
	Name       string    `gorm:"size:512;not null" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}
