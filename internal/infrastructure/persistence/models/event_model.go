package models

import (
	"time"
)

// EventModel is one persisted thought. Thoughts are the only per-event data
// worth replaying: the server hydrates a restarted agent's thought feed from
// the most recent rows.
type EventModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	AgentID     string `gorm:"index;size:64"`
	ThoughtID   string `gorm:"size:64"`
	ThoughtType string `gorm:"size:16"`
	Content     string `gorm:"type:text"`
	Priority    string `gorm:"size:16"`
	Metadata    string `gorm:"type:text"` // JSON encoded
	CreatedAt   time.Time
}

// TableName names the events table.
func (EventModel) TableName() string {
	return "stream_events"
}
