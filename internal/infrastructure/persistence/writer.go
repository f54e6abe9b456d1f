package persistence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/state"
	"github.com/ga1ien/kulti-stream/pkg/safego"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// defaultDebounce is how long a snapshot sits before being flushed. An agent
// mid-task posts several times a second; only the last snapshot in a burst is
// worth a row.
const defaultDebounce = 1 * time.Second

// Writer persists state asynchronously. Snapshots are debounced per agent;
// thoughts are appended immediately since they are the replay log. Nothing
// here ever blocks or fails the ingestion path: database errors are logged
// and dropped.
type Writer struct {
	store    *StreamStore
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*state.Snapshot
	timers  map[string]*time.Timer
	closed  bool
}

// NewWriter creates a writer over the store.
func NewWriter(store *StreamStore, logger *zap.Logger) *Writer {
	return &Writer{
		store:    store,
		logger:   logger,
		debounce: defaultDebounce,
		pending:  make(map[string]*state.Snapshot),
		timers:   make(map[string]*time.Timer),
	}
}

// EnqueueSnapshot schedules a session upsert. Bursts within the debounce
// window collapse to the newest snapshot.
func (w *Writer) EnqueueSnapshot(snap *state.Snapshot) {
	if snap == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending[snap.AgentID] = snap
	if _, armed := w.timers[snap.AgentID]; armed {
		return
	}
	agentID := snap.AgentID
	w.timers[agentID] = time.AfterFunc(w.debounce, func() {
		w.flushAgent(agentID)
	})
}

// EnqueueThought appends a thought row without blocking the caller.
func (w *Writer) EnqueueThought(agentID string, thought *stream.Thought) {
	if thought == nil {
		return
	}
	copied := *thought
	safego.Go(w.logger, "persist-thought", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.store.InsertThought(ctx, agentID, &copied); err != nil {
			w.logger.Warn("Thought persist failed",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	})
}

// EnqueueChat appends a chat row without blocking the caller.
func (w *Writer) EnqueueChat(agentID, sender, content string) {
	safego.Go(w.logger, "persist-chat", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.store.InsertChat(ctx, agentID, sender, content); err != nil {
			w.logger.Warn("Chat persist failed",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	})
}

func (w *Writer) flushAgent(agentID string) {
	w.mu.Lock()
	snap := w.pending[agentID]
	delete(w.pending, agentID)
	delete(w.timers, agentID)
	w.mu.Unlock()

	if snap == nil {
		return
	}
	w.write(snap)
}

func (w *Writer) write(snap *state.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.store.UpsertSession(ctx, snap); err != nil {
		w.logger.Warn("Session persist failed",
			zap.String("agent_id", snap.AgentID), zap.Error(err))
	}
}

// Close flushes everything still pending and stops accepting work. Called on
// server shutdown so the last burst of a session is not lost.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	remaining := make([]*state.Snapshot, 0, len(w.pending))
	for agentID, snap := range w.pending {
		if timer, ok := w.timers[agentID]; ok {
			timer.Stop()
		}
		remaining = append(remaining, snap)
	}
	w.pending = make(map[string]*state.Snapshot)
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	for _, snap := range remaining {
		w.write(snap)
	}
}
