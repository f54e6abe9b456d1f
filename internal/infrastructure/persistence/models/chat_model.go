package models

import (
	"time"
)

// ChatModel is one viewer chat message sent over the WebSocket surface.
type ChatModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgentID   string `gorm:"index;size:64"`
	Sender    string `gorm:"size:64"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName names the chat table.
func (ChatModel) TableName() string {
	return "stream_messages"
}
