package model

import "time"

// UserKey holds one encrypted model credential per user.
type UserKey struct {
	UserID       string    `gorm:"type:char(36);primaryKey" json:"user_id"`
	EncryptedKey string    `gorm:"size:512;not null" json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}
