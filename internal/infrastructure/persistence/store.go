package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/persistence/models"
	"github.com/ga1ien/kulti-stream/internal/state"
	domainErrors "github.com/ga1ien/kulti-stream/pkg/errors"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// hydrateThoughts is how many recent thoughts a restarted server replays into
// a fresh agent state.
const hydrateThoughts = 20

// StreamStore persists sessions, thought events, and chat messages.
type StreamStore struct {
	db *gorm.DB
}

// NewStreamStore creates a store over an open database.
func NewStreamStore(db *gorm.DB) *StreamStore {
	return &StreamStore{db: db}
}

// UpsertSession writes the latest snapshot for an agent, replacing any prior
// row.
func (s *StreamStore) UpsertSession(ctx context.Context, snap *state.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to encode snapshot", err)
	}

	model := models.SessionModel{
		AgentID:   snap.AgentID,
		Name:      snap.Agent.Name,
		Avatar:    snap.Agent.Avatar,
		Status:    string(snap.Status),
		TaskTitle: snap.Task.Title,
		Snapshot:  string(raw),
		Files:     snap.Stats.Files,
		Commands:  snap.Stats.Commands,
		StartTime: snap.Stats.StartTime,
	}
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save session: " + err.Error())
	}
	return nil
}

// FindSession loads the persisted session for an agent.
func (s *StreamStore) FindSession(ctx context.Context, agentID string) (*models.SessionModel, error) {
	var model models.SessionModel
	if err := s.db.WithContext(ctx).First(&model, "agent_id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("session not found")
		}
		return nil, domainErrors.NewInternalError("failed to find session: " + err.Error())
	}
	return &model, nil
}

// InsertThought appends one thought event to the log.
func (s *StreamStore) InsertThought(ctx context.Context, agentID string, thought *stream.Thought) error {
	metadata := ""
	if len(thought.Metadata) > 0 {
		if raw, err := json.Marshal(thought.Metadata); err == nil {
			metadata = string(raw)
		}
	}
	model := models.EventModel{
		AgentID:     agentID,
		ThoughtID:   thought.ID,
		ThoughtType: string(thought.Type),
		Content:     thought.Content,
		Priority:    string(thought.Priority),
		Metadata:    metadata,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to insert thought: " + err.Error())
	}
	return nil
}

// RecentThoughts returns the newest thoughts for an agent in chronological
// order, capped at hydrateThoughts.
func (s *StreamStore) RecentThoughts(ctx context.Context, agentID string) ([]stream.Thought, error) {
	var rows []models.EventModel
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("id DESC").
		Limit(hydrateThoughts).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to load thoughts: " + err.Error())
	}

	thoughts := make([]stream.Thought, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		thought := stream.Thought{
			ID:        row.ThoughtID,
			Type:      stream.ThoughtType(row.ThoughtType),
			Content:   row.Content,
			Priority:  stream.ThoughtPriority(row.Priority),
			Timestamp: row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if row.Metadata != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(row.Metadata), &meta); err == nil {
				thought.Metadata = meta
			}
		}
		thoughts = append(thoughts, thought)
	}
	return thoughts, nil
}

// InsertChat appends one viewer chat message.
func (s *StreamStore) InsertChat(ctx context.Context, agentID, sender, content string) error {
	model := models.ChatModel{
		AgentID: agentID,
		Sender:  sender,
		Content: content,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to insert chat: " + err.Error())
	}
	return nil
}
