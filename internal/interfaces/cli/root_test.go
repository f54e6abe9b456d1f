package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// captureServer stands in for the state server and records every payload
// the CLI posts.
type captureServer struct {
	*httptest.Server
	mu       sync.Mutex
	payloads []stream.Payload
	keys     []string
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p stream.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		cs.mu.Lock()
		cs.payloads = append(cs.payloads, p)
		cs.keys = append(cs.keys, r.Header.Get("X-Kulti-Key"))
		cs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *captureServer) received() []stream.Payload {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]stream.Payload(nil), cs.payloads...)
}

// runCmd executes the CLI against the capture server. Commands flush before
// returning, so every POST has landed by the time this returns.
func runCmd(t *testing.T, cs *captureServer, args ...string) error {
	t.Helper()
	root := NewRootCmd("test")
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--server", cs.URL, "--agent", "tester"))
	return root.Execute()
}

// === Thought commands ===

func TestThink_PostsThought(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "think", "checking", "the", "logs"); err != nil {
		t.Fatal(err)
	}

	got := cs.received()
	if len(got) != 1 {
		t.Fatalf("posts = %d, want 1", len(got))
	}
	p := got[0]
	if p.AgentID != "tester" {
		t.Errorf("agent_id = %q", p.AgentID)
	}
	if p.Thought == nil || p.Thought.Type != stream.ThoughtGeneral || p.Thought.Content != "checking the logs" {
		t.Errorf("thought = %+v", p.Thought)
	}
}

func TestEvaluate_ParsesOptionsAndChosen(t *testing.T) {
	cs := newCaptureServer(t)
	err := runCmd(t, cs, "evaluate", "picking an auth scheme",
		"--options", "JWT| Session |OAuth2", "--chosen", "JWT")
	if err != nil {
		t.Fatal(err)
	}

	got := cs.received()
	if len(got) != 1 {
		t.Fatalf("posts = %d", len(got))
	}
	p := got[0]
	if p.Thought == nil || p.Thought.Type != stream.ThoughtEvaluation {
		t.Fatalf("thought = %+v", p.Thought)
	}
	opts, _ := p.Thought.Metadata["options"].([]any)
	if len(opts) != 3 || opts[1] != "Session" {
		t.Errorf("options = %v", p.Thought.Metadata["options"])
	}
	if p.Thought.Metadata["chosen"] != "JWT" {
		t.Errorf("chosen = %v", p.Thought.Metadata["chosen"])
	}
}

// === State commands ===

func TestStatus_Valid(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "status", "live"); err != nil {
		t.Fatal(err)
	}
	got := cs.received()
	if len(got) != 1 || got[0].Status != stream.StatusLive {
		t.Errorf("payloads = %+v", got)
	}
}

func TestStatus_InvalidRejectedLocally(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "status", "sleeping"); err == nil {
		t.Error("expected an error for an invalid status")
	}
	if len(cs.received()) != 0 {
		t.Error("invalid status must not reach the server")
	}
}

func TestCmd_StreamsInputAndOutputLines(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "cmd", "go test ./...", "ok  	kulti	0.3s"); err != nil {
		t.Fatal(err)
	}

	got := cs.received()
	if len(got) != 1 {
		t.Fatalf("posts = %d", len(got))
	}
	p := got[0]
	if !p.TerminalAppend || len(p.Terminal) != 2 {
		t.Fatalf("terminal = %+v", p.Terminal)
	}
	if p.Terminal[0].Type != "input" || p.Terminal[0].Content != "$ go test ./..." {
		t.Errorf("input line = %+v", p.Terminal[0])
	}
	if p.Terminal[1].Type != "output" {
		t.Errorf("output line = %+v", p.Terminal[1])
	}
	if p.Stats == nil || p.Stats.Commands != 1 {
		t.Errorf("stats = %+v", p.Stats)
	}
}

// === Code commands ===

func TestCode_ReadsFileFromDisk(t *testing.T) {
	cs := newCaptureServer(t)
	path := filepath.Join(t.TempDir(), "demo.go")
	if err := os.WriteFile(path, []byte("package demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCmd(t, cs, "code", path, "edit"); err != nil {
		t.Fatal(err)
	}

	got := cs.received()
	if len(got) != 1 {
		t.Fatalf("posts = %d", len(got))
	}
	code := got[0].Code
	if code == nil || code.Filename != "demo.go" || code.Language != "go" || code.Action != "edit" {
		t.Errorf("code = %+v", code)
	}
	if code.Content != "package demo\n" {
		t.Errorf("content = %q", code.Content)
	}
	if got[0].Stats == nil || got[0].Stats.Files != 1 {
		t.Errorf("stats = %+v", got[0].Stats)
	}
}

func TestCode_MissingFileFails(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "code", "/no/such/file.go"); err == nil {
		t.Error("expected an error for an unreadable file")
	}
	if len(cs.received()) != 0 {
		t.Error("nothing should be streamed for an unreadable file")
	}
}

func TestFile_StreamsObservationThenCode(t *testing.T) {
	cs := newCaptureServer(t)
	path := filepath.Join(t.TempDir(), "handler.go")
	if err := os.WriteFile(path, []byte("package web\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCmd(t, cs, "file", path); err != nil {
		t.Fatal(err)
	}

	got := cs.received()
	if len(got) != 2 {
		t.Fatalf("posts = %d, want 2", len(got))
	}
	var sawObservation, sawCode bool
	for _, p := range got {
		if p.Thought != nil && p.Thought.Type == stream.ThoughtObservation {
			sawObservation = true
		}
		if p.Code != nil && p.Code.Filename == "handler.go" {
			sawCode = true
		}
	}
	if !sawObservation || !sawCode {
		t.Errorf("observation=%v code=%v", sawObservation, sawCode)
	}
}

// === Auth ===

func TestKeyFlag_SetsHeader(t *testing.T) {
	cs := newCaptureServer(t)
	if err := runCmd(t, cs, "task", "Shipping", "--key", "sk-test"); err != nil {
		t.Fatal(err)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.keys) != 1 || cs.keys[0] != "sk-test" {
		t.Errorf("keys = %v", cs.keys)
	}
}
