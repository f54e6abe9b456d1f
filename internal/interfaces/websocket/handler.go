// Package websocket is the viewer surface of the state server: browsers
// connect here, receive full-state snapshots on every change, and can send
// chat messages back to the agent's audience.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/application/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard origins vary; same policy as the CORS layer
	},
}

// inbound is what viewers may send: chat, or a ping keepalive.
type inbound struct {
	Type    string `json:"type"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
}

// Client is one connected viewer. It satisfies state.Viewer through Deliver.
type Client struct {
	agentID string
	conn    *websocket.Conn
	send    chan []byte
	logger  *zap.Logger
}

// Deliver queues a message for the viewer. A viewer that cannot keep up has
// its messages dropped rather than stalling the broadcast; the next snapshot
// supersedes anything missed.
func (c *Client) Deliver(message []byte) {
	select {
	case c.send <- message:
	default:
	}
}

// Server is the WebSocket viewer server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the listener.
type Config struct {
	Host string
	Port int
}

// NewServer builds the viewer server.
func NewServer(cfg Config, uc *usecase.StreamUseCase, logger *zap.Logger) *Server {
	handler := &wsHandler{uc: uc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler.serveWS)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting viewer server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Viewer server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping viewer server")
	return s.server.Shutdown(ctx)
}

type wsHandler struct {
	uc     *usecase.StreamUseCase
	logger *zap.Logger
}

func (h *wsHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		agentID = h.uc.DefaultAgentID()
	}

	client := &Client{
		agentID: agentID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		logger:  h.logger,
	}

	agent := h.uc.ResolveAgent(agentID)
	agent.AddViewer(client)
	h.logger.Info("Viewer connected",
		zap.String("agent_id", agentID),
		zap.Int("viewers", agent.ViewerCount()))

	go client.writePump()
	go client.readPump(h.uc)
}

func (c *Client) readPump(uc *usecase.StreamUseCase) {
	defer func() {
		uc.ResolveAgent(c.agentID).RemoveViewer(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			// Garbage from a viewer never takes the connection down.
			c.logger.Debug("Malformed viewer message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "chat":
			uc.Chat(c.agentID, msg.Sender, msg.Content)
		case "ping":
			c.Deliver([]byte(`{"type":"pong"}`))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
