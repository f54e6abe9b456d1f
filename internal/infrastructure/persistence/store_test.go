package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/internal/state"
	domainErrors "github.com/ga1ien/kulti-stream/pkg/errors"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func testStore(t *testing.T) *StreamStore {
	t.Helper()
	db, err := NewDBConnection(&config.DatabaseConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	return NewStreamStore(db)
}

func testSnapshot(agentID string) *state.Snapshot {
	return &state.Snapshot{
		AgentID: agentID,
		Agent:   state.AgentMeta{Name: "Nex", Avatar: "🦊"},
		Task:    stream.Task{Title: "Refactoring"},
		Status:  stream.StatusWorking,
		Stats:   state.SessionStats{Files: 2, Commands: 5, StartTime: time.Now().UnixMilli()},
	}
}

// === Sessions ===

func TestStore_UpsertAndFindSession(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.UpsertSession(ctx, testSnapshot("nex")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	row, err := store.FindSession(ctx, "nex")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.Name != "Nex" || row.Status != "working" || row.TaskTitle != "Refactoring" {
		t.Errorf("row = %+v", row)
	}
	if row.Files != 2 || row.Commands != 5 {
		t.Errorf("stats columns = %d/%d", row.Files, row.Commands)
	}

	// Second upsert replaces, not duplicates.
	snap := testSnapshot("nex")
	snap.Status = stream.StatusDone
	if err := store.UpsertSession(ctx, snap); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	row, err = store.FindSession(ctx, "nex")
	if err != nil {
		t.Fatalf("refind: %v", err)
	}
	if row.Status != "done" {
		t.Errorf("status = %q, want done", row.Status)
	}
}

func TestStore_FindSessionNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.FindSession(context.Background(), "ghost")
	if !domainErrors.IsNotFound(err) {
		t.Errorf("want NOT_FOUND, got %v", err)
	}
}

// === Thought log ===

func TestStore_RecentThoughtsChronological(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		thought := &stream.Thought{
			ID:      fmt.Sprintf("t-%d", i),
			Type:    stream.ThoughtReasoning,
			Content: fmt.Sprintf("thought %d", i),
			Metadata: map[string]any{
				"step": i,
			},
		}
		if err := store.InsertThought(ctx, "nex", thought); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	// Another agent's thoughts must not leak in.
	if err := store.InsertThought(ctx, "scout", &stream.Thought{Type: stream.ThoughtGeneral, Content: "other"}); err != nil {
		t.Fatal(err)
	}

	thoughts, err := store.RecentThoughts(ctx, "nex")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(thoughts) != hydrateThoughts {
		t.Fatalf("len = %d, want %d", len(thoughts), hydrateThoughts)
	}
	// Oldest of the kept window first, newest last.
	if thoughts[0].Content != "thought 10" {
		t.Errorf("first = %q, want thought 10", thoughts[0].Content)
	}
	if thoughts[len(thoughts)-1].Content != "thought 29" {
		t.Errorf("last = %q, want thought 29", thoughts[len(thoughts)-1].Content)
	}
	if thoughts[0].Metadata["step"] == nil {
		t.Error("metadata not round-tripped")
	}
}

// === Chat ===

func TestStore_InsertChat(t *testing.T) {
	store := testStore(t)
	if err := store.InsertChat(context.Background(), "nex", "viewer-1", "hello agent"); err != nil {
		t.Fatalf("insert chat: %v", err)
	}
}

// === Writer ===

func TestWriter_DebouncesBursts(t *testing.T) {
	store := testStore(t)
	w := NewWriter(store, testLogger())
	w.debounce = 30 * time.Millisecond

	// A burst of snapshots; only the last should land.
	for i := 0; i < 10; i++ {
		snap := testSnapshot("nex")
		snap.Task.Title = fmt.Sprintf("step %d", i)
		w.EnqueueSnapshot(snap)
	}

	time.Sleep(150 * time.Millisecond)

	row, err := store.FindSession(context.Background(), "nex")
	if err != nil {
		t.Fatalf("find after flush: %v", err)
	}
	if row.TaskTitle != "step 9" {
		t.Errorf("persisted task = %q, want step 9", row.TaskTitle)
	}
}

func TestWriter_CloseFlushesPending(t *testing.T) {
	store := testStore(t)
	w := NewWriter(store, testLogger())
	w.debounce = 10 * time.Second // far away; Close must not wait for it

	w.EnqueueSnapshot(testSnapshot("nex"))
	w.Close()

	if _, err := store.FindSession(context.Background(), "nex"); err != nil {
		t.Errorf("pending snapshot lost on close: %v", err)
	}

	// After close, enqueues are dropped silently.
	w.EnqueueSnapshot(testSnapshot("scout"))
	if _, err := store.FindSession(context.Background(), "scout"); !domainErrors.IsNotFound(err) {
		t.Errorf("writer accepted work after close: %v", err)
	}
}

func TestWriter_ThoughtsLandWithoutDebounce(t *testing.T) {
	store := testStore(t)
	w := NewWriter(store, testLogger())

	w.EnqueueThought("nex", &stream.Thought{ID: "t-1", Type: stream.ThoughtDecision, Content: "ship it"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		thoughts, err := store.RecentThoughts(context.Background(), "nex")
		if err == nil && len(thoughts) == 1 {
			if thoughts[0].Content != "ship it" {
				t.Errorf("content = %q", thoughts[0].Content)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("thought never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
