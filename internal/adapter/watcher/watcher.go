// Package watcher streams filesystem changes to the state server. It covers
// agents without a hook system (Aider and friends) and supplements agents
// whose hooks miss file activity.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// DefaultAgentID is used when KULTI_AGENT_ID is unset.
const DefaultAgentID = "watcher"

const (
	// debounceInterval collapses editor write bursts per file.
	debounceInterval = 500 * time.Millisecond
	// maxFileSize skips anything too large to be worth streaming.
	maxFileSize = 100_000
)

var defaultIgnore = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	".next",
	"__pycache__",
	".env",
	".DS_Store",
	".swp",
	".swo",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"vendor",
}

var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".br": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".webm": {},
	".pdf": {}, ".doc": {}, ".xls": {},
}

// Sender is the outbound side of the watcher; *kulti.Client satisfies it.
type Sender interface {
	Send(payload *stream.Payload)
}

// Watcher streams file changes under one directory tree.
type Watcher struct {
	sender    Sender
	watchPath string
	ignore    map[string]struct{}
	logger    *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New builds a watcher from environment settings. The watch path defaults to
// the working directory; KULTI_WATCH_IGNORE adds comma-separated names to the
// built-in ignore list.
func New(settings config.Settings, sender Sender, logger *zap.Logger) (*Watcher, error) {
	watchPath := settings.WatchPath
	if watchPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		watchPath = cwd
	}
	watchPath, err := filepath.Abs(watchPath)
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]struct{}, len(defaultIgnore))
	for _, name := range defaultIgnore {
		ignore[name] = struct{}{}
	}
	for _, name := range strings.Split(settings.WatchIgnore, ",") {
		if name = strings.TrimSpace(name); name != "" {
			ignore[name] = struct{}{}
		}
	}

	return &Watcher{
		sender:    sender,
		watchPath: watchPath,
		ignore:    ignore,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.watchPath); err != nil {
		return err
	}

	w.sender.Send(&stream.Payload{
		Goal:   &stream.Goal{Title: "Watching filesystem for changes"},
		Status: stream.StatusWorking,
	})
	w.logger.Info("Watching", zap.String("path", w.watchPath))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(w.watchPath, event.Name)
			if err != nil || w.ShouldIgnore(rel) {
				continue
			}
			// New directories join the watch set immediately; their debounced
			// first events would otherwise be lost.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(fsw, event.Name)
					continue
				}
			}
			w.debounce(rel, event.Op)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error", zap.Error(err))
		}
	}
}

// ShouldIgnore reports whether a relative path is excluded: any ignored path
// segment, anything .env-prefixed, or a binary extension.
func (w *Watcher) ShouldIgnore(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if _, ok := w.ignore[part]; ok {
			return true
		}
		if strings.HasPrefix(part, ".env") {
			return true
		}
	}
	_, binary := binaryExtensions[strings.ToLower(filepath.Ext(relPath))]
	return binary
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.watchPath, path)
		if relErr == nil && rel != "." && w.ShouldIgnore(rel) {
			return filepath.SkipDir
		}
		if addErr := fsw.Add(path); addErr != nil {
			w.logger.Debug("Watch add failed", zap.String("path", path), zap.Error(addErr))
		}
		return nil
	})
}

func (w *Watcher) debounce(relPath string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[relPath]; ok {
		timer.Stop()
	}
	w.timers[relPath] = time.AfterFunc(debounceInterval, func() {
		w.mu.Lock()
		delete(w.timers, relPath)
		w.mu.Unlock()
		w.handleChange(relPath, op)
	})
}

func (w *Watcher) handleChange(relPath string, op fsnotify.Op) {
	fname := stream.ShortPath(relPath)
	fullPath := filepath.Join(w.watchPath, relPath)

	content, exists := readFileContent(fullPath)
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) || !exists {
		w.observe("File deleted: " + fname)
		return
	}

	verb := "File changed: "
	if op.Has(fsnotify.Create) {
		verb = "File created: "
	}
	w.observe(verb + fname)

	if content == "" {
		return
	}
	w.sender.Send(&stream.Payload{
		Code: &stream.Code{
			Filename: fname,
			Language: stream.Language(filepath.Base(relPath)),
			Content:  stream.Truncate(content, stream.MaxCodeLen),
			Action:   "write",
		},
		Stats: &stream.Stats{Files: 1},
	})
}

func (w *Watcher) observe(content string) {
	w.sender.Send(&stream.Payload{
		Thought: &stream.Thought{
			Type:     stream.ThoughtObservation,
			Content:  content,
			Priority: stream.PriorityDetail,
			Metadata: map[string]any{},
		},
	})
}

// readFileContent returns the file's text and whether the file exists.
// Oversized files and directories read as empty.
func readFileContent(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if !info.Mode().IsRegular() || info.Size() > maxFileSize {
		return "", true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", true
	}
	return string(data), true
}
