package models

import (
	"time"
)

// SessionModel is the persisted row for one agent session. The full snapshot
// is stored as JSON; the extracted columns exist so dashboards can query
// without decoding it.
type SessionModel struct {
	AgentID   string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:64"`
	Avatar    string `gorm:"size:16"`
	Status    string `gorm:"size:16"`
	TaskTitle string `gorm:"size:255"`
	Snapshot  string `gorm:"type:text"`
	Files     int
	Commands  int
	StartTime int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName names the sessions table.
func (SessionModel) TableName() string {
	return "agent_sessions"
}
