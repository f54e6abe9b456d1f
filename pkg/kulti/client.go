// Package kulti is the Go SDK for streaming agent activity to a Kulti state
// server. It wraps the wire types from pkg/stream with typed helpers so an
// agent (or an adapter running inside one) can narrate what it is doing:
//
//	client := kulti.NewClient("http://localhost:8766", kulti.WithAgentID("nex"))
//	client.Reason("Checking the error logs because the deploy failed")
//	client.Decide("Pinning the driver version; the latest release is broken")
//	defer client.Flush()
//
// Every send is fire-and-forget: it never blocks the caller, never returns an
// error, and abandons the request after a short timeout. Dropped telemetry is
// an acceptable failure mode; a stalled agent is not.
package kulti

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/pkg/safego"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// DefaultServerURL is where a locally running state server listens.
const DefaultServerURL = "http://localhost:8766"

// DefaultAgentID is used when neither the caller nor the environment names an
// agent.
const DefaultAgentID = "nex"

const defaultTimeout = 2 * time.Second

// Client posts sparse state patches to a Kulti state server.
type Client struct {
	baseURL    string
	agentID    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	inflight   sync.WaitGroup
}

// Option configures the client.
type Option func(*Client)

// WithAgentID sets the agent id injected into payloads that lack one.
func WithAgentID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.agentID = id
		}
	}
}

// WithAPIKey sets the key sent in the X-Kulti-Key header. An empty key means
// unauthenticated posts, which the server accepts for local deployments.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given state server base URL. An empty
// URL falls back to DefaultServerURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentID:    DefaultAgentID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgentID returns the client's default agent id.
func (c *Client) AgentID() string {
	return c.agentID
}

// Send fires a payload at the state server without blocking the caller.
// Network errors, non-2xx responses, and serialization failures are logged
// and swallowed — streaming must never break agent execution.
func (c *Client) Send(payload *stream.Payload) {
	if payload == nil {
		return
	}
	if payload.AgentID == "" {
		payload.AgentID = c.agentID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Debug("Payload marshal failed", zap.Error(err))
		return
	}

	c.inflight.Add(1)
	safego.Go(c.logger, "kulti-send", func() {
		defer c.inflight.Done()
		c.post(body)
	})
}

// Flush waits for in-flight sends to finish. Short-lived hook processes call
// this before exiting so their single POST is not lost; the wait is bounded
// by the request timeout.
func (c *Client) Flush() {
	c.inflight.Wait()
}

func (c *Client) post(body []byte) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/hook", bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("Request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Kulti-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("State server unreachable", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("State server rejected payload", zap.Int("status", resp.StatusCode))
	}
}

// ─── Typed thought helpers ───

// Think streams a general thought.
func (c *Client) Think(content string, metadata map[string]any) {
	c.thought(stream.ThoughtGeneral, content, metadata)
}

// Reason streams why the agent is doing something.
func (c *Client) Reason(content string) {
	c.thought(stream.ThoughtReasoning, content, nil)
}

// Decide streams a choice the agent has made.
func (c *Client) Decide(content string) {
	c.thought(stream.ThoughtDecision, content, nil)
}

// Observe streams something the agent noticed.
func (c *Client) Observe(content string) {
	c.thought(stream.ThoughtObservation, content, nil)
}

// Evaluate streams a weighing of options, optionally naming the chosen one.
func (c *Client) Evaluate(content string, options []string, chosen string) {
	meta := map[string]any{}
	if len(options) > 0 {
		meta["options"] = options
	}
	if chosen != "" {
		meta["chosen"] = chosen
	}
	c.thought(stream.ThoughtEvaluation, content, meta)
}

// Context streams context loading, optionally naming the source file.
func (c *Client) Context(content, file string) {
	meta := map[string]any{}
	if file != "" {
		meta["file"] = file
	}
	c.thought(stream.ThoughtContext, content, meta)
}

// Tool streams tool usage, optionally naming the tool.
func (c *Client) Tool(content, toolName string) {
	meta := map[string]any{}
	if toolName != "" {
		meta["tool"] = toolName
	}
	c.thought(stream.ThoughtTool, content, meta)
}

// Confused streams a confusion thought — the agent hit something it does not
// understand.
func (c *Client) Confused(content string) {
	c.thought(stream.ThoughtConfusion, content, nil)
}

// Prompt streams a prompt the agent is crafting or received.
func (c *Client) Prompt(content, promptFor string) {
	meta := map[string]any{}
	if promptFor != "" {
		meta["promptFor"] = promptFor
	}
	c.thought(stream.ThoughtPrompt, stream.Truncate(content, stream.MaxPromptLen), meta)
}

func (c *Client) thought(thoughtType stream.ThoughtType, content string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	c.Send(&stream.Payload{
		Thought: &stream.Thought{
			Type:     thoughtType,
			Content:  stream.Truncate(content, stream.MaxPromptLen),
			Metadata: metadata,
		},
	})
}

// ─── State helpers ───

// Task sets the agent's current task headline.
func (c *Client) Task(title string) {
	c.Send(&stream.Payload{Task: &stream.Task{Title: title}})
}

// Status sets the agent's lifecycle status.
func (c *Client) Status(status stream.Status) {
	c.Send(&stream.Payload{Status: status})
}

// Goal declares the session goal.
func (c *Client) Goal(title, description string) {
	c.Send(&stream.Payload{Goal: &stream.Goal{Title: title, Description: description}})
}

// Milestone records a progress milestone.
func (c *Client) Milestone(label string, completed bool) {
	c.Send(&stream.Payload{Milestone: &stream.Milestone{Label: label, Completed: completed}})
}

// Terminal appends terminal lines, carrying the given counter deltas (nil
// defaults to one command).
func (c *Client) Terminal(lines []stream.TerminalLine, deltas *stream.Stats) {
	if deltas == nil {
		deltas = &stream.Stats{Commands: 1}
	}
	c.Send(&stream.Payload{Terminal: lines, TerminalAppend: true, Stats: deltas})
}

// Code streams a file write or edit, counting one file touched.
func (c *Client) Code(code *stream.Code) {
	if code.Language == "" {
		code.Language = stream.Language(code.Filename)
	}
	c.Send(&stream.Payload{Code: code, Stats: &stream.Stats{Files: 1}})
}

// CodeFile reads a file from disk and streams its content.
func (c *Client) CodeFile(path, action string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c.Code(&stream.Code{
		Filename: stream.ShortPath(path),
		Language: stream.Language(path),
		Content:  stream.Truncate(string(data), stream.MaxCodeLen),
		Action:   action,
	})
	return nil
}
