package model

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Source points at the chunk a message cited.
type Source struct {
	Origin string `json:"origin"`
	Page   int    `json:"page"`
	Kind   string `json:"kind,omitempty"`
}

// Message is one turn of a notebook conversation. Append-only; replay order
// is creation order. Sources is stored as a JSON array for portability.
type Message struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	NotebookID string    `gorm:"type:char(36);not null;index" json:"notebook_id"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Sources    string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// SourceList returns the parsed citations; empty on parse error.
func (m *Message) SourceList() []Source {
	if m.Sources == "" {
		return nil
	}
	var list []Source
	_ = json.Unmarshal([]byte(m.Sources), &list)
	return list
}

// SetSources stores the citations as JSON.
func (m *Message) SetSources(list []Source) {
	if len(list) == 0 {
		m.Sources = "[]"
		return
	}
	b, _ := json.Marshal(list)
	m.Sources = string(b)
}

// MarshalJSON inlines the parsed sources under a "sources" key.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		alias
		SourceList []Source `json:"sources"`
	}{
		alias:      alias(m),
		SourceList: m.SourceList(),
	})
}
