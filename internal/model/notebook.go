package model

import "time"

// Notebook is the root of the user's document space. Its id doubles as the
// vector store namespace for everything ingested into it.
type Notebook struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:char(36);not null;index" json:"user_id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Files    []string  `gorm:"-" json:"files"`
	Messages []Message `gorm:"-" json:"messages,omitempty"`
}
