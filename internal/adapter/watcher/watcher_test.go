package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type fakeSender struct {
	mu       sync.Mutex
	payloads []*stream.Payload
}

func (f *fakeSender) Send(p *stream.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
}

func (f *fakeSender) find(match func(*stream.Payload) bool) *stream.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payloads {
		if match(p) {
			return p
		}
	}
	return nil
}

func (f *fakeSender) waitFor(t *testing.T, what string, match func(*stream.Payload) bool) *stream.Payload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p := f.find(match); p != nil {
			return p
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("never saw %s", what)
	return nil
}

// === Ignore rules ===

func TestShouldIgnore(t *testing.T) {
	w, err := New(config.Settings{WatchPath: t.TempDir(), WatchIgnore: "coverage, tmp"}, &fakeSender{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"src/main.go", false},
		{"node_modules/lodash/index.js", true},
		{".git/HEAD", true},
		{"dist/bundle.js", true},
		{"app/.env.local", true},
		{"logo.PNG", true},
		{"docs/report.pdf", true},
		{"coverage/lcov.info", true}, // from KULTI_WATCH_IGNORE
		{"tmp/scratch.go", true},
		{"internal/state/state.go", false},
	}
	for _, tc := range cases {
		if got := w.ShouldIgnore(tc.path); got != tc.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

// === Live watching ===

func TestRun_StreamsFileChanges(t *testing.T) {
	dir := t.TempDir()
	sender := &fakeSender{}
	w, err := New(config.Settings{WatchPath: dir}, sender, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Startup announces the goal.
	sender.waitFor(t, "goal payload", func(p *stream.Payload) bool {
		return p.Goal != nil && p.Goal.Title == "Watching filesystem for changes"
	})

	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sender.waitFor(t, "file observation", func(p *stream.Payload) bool {
		return p.Thought != nil && p.Thought.Type == stream.ThoughtObservation &&
			strings.Contains(p.Thought.Content, "main.go")
	})
	code := sender.waitFor(t, "code payload", func(p *stream.Payload) bool {
		return p.Code != nil
	})
	if code.Code.Filename != "main.go" || code.Code.Language != "go" {
		t.Errorf("code = %+v", code.Code)
	}
	if code.Code.Content != "package main\n" {
		t.Errorf("content = %q", code.Code.Content)
	}
	if code.Stats == nil || code.Stats.Files != 1 {
		t.Errorf("stats = %+v", code.Stats)
	}
}

func TestRun_DeleteStreamsObservationOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.go")
	if err := os.WriteFile(path, []byte("package gone\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sender := &fakeSender{}
	w, err := New(config.Settings{WatchPath: dir}, sender, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sender.waitFor(t, "goal payload", func(p *stream.Payload) bool { return p.Goal != nil })
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	p := sender.waitFor(t, "delete observation", func(p *stream.Payload) bool {
		return p.Thought != nil && strings.Contains(p.Thought.Content, "File deleted: gone.go")
	})
	if p.Code != nil {
		t.Errorf("delete must not carry code: %+v", p.Code)
	}
}

func TestRun_IgnoredFileStaysSilent(t *testing.T) {
	dir := t.TempDir()
	sender := &fakeSender{}
	w, err := New(config.Settings{WatchPath: dir}, sender, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sender.waitFor(t, "goal payload", func(p *stream.Payload) bool { return p.Goal != nil })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "icon.png"), []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatal(err)
	}

	// Give the debounce window time to fire if it was going to.
	time.Sleep(debounceInterval + 300*time.Millisecond)

	if p := sender.find(func(p *stream.Payload) bool { return p.Code != nil || (p.Thought != nil && p.Thought.Type == stream.ThoughtObservation) }); p != nil {
		t.Errorf("ignored file leaked: %+v", p)
	}
}
