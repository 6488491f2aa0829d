// Package ws is the streaming gateway: one WebSocket connection can drive
// revisions and watch the resulting build events in order. Every client
// attached to a session sees the same event sequence, so two browsers on
// one session stay in sync.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/domain/build"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/shared/validate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // previews open from arbitrary local origins
	},
}

// Message is the client-to-server frame.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Delta     json.RawMessage `json:"delta,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
}

// Gateway upgrades connections and bridges them to the build event stream.
type Gateway struct {
	store   *session.Store
	orch    *build.Orchestrator
	stream  config.StreamConfig
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewGateway creates the streaming gateway.
func NewGateway(store *session.Store, orch *build.Orchestrator, stream config.StreamConfig, metrics *monitoring.Metrics, log *logging.Logger) *Gateway {
	return &Gateway{store: store, orch: orch, stream: stream, metrics: metrics, log: log}
}

// clientConn serializes all writes through a single goroutine; gorilla
// connections do not allow concurrent writers.
type clientConn struct {
	conn *websocket.Conn
	out  chan interface{}
	done chan struct{}
}

func (cl *clientConn) send(v interface{}) {
	select {
	case cl.out <- v:
	case <-cl.done:
	}
}

func (cl *clientConn) writeLoop() {
	for {
		select {
		case v := <-cl.out:
			if err := cl.conn.WriteJSON(v); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

// HandleConnection runs one client's session: upgrade, welcome, then a read
// loop dispatching revise/attach/ping frames until the peer goes away.
func (g *Gateway) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := g.log.With(zap.String("conn_id", connID))
	log.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	g.metrics.WSConnections.Inc()
	defer g.metrics.WSConnections.Dec()

	cl := &clientConn{
		conn: conn,
		out:  make(chan interface{}, 64),
		done: make(chan struct{}),
	}
	go cl.writeLoop()
	defer close(cl.done)

	var detach func()
	defer func() {
		if detach != nil {
			detach()
		}
	}()

	attach := func(sessionID string) {
		if detach != nil {
			detach()
		}
		ch, cancel := g.orch.Broadcaster().Subscribe(sessionID)
		detach = cancel
		go g.forward(cl, ch)
	}

	g.sendTyped(cl, map[string]interface{}{
		"type":    "system",
		"message": "connected",
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		g.metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()

		switch msg.Type {
		case "revise":
			g.handleRevise(cl, msg, attach)
		case "attach":
			g.handleAttach(cl, msg, attach)
		case "ping":
			g.sendTyped(cl, map[string]interface{}{"type": "pong"})
		default:
			g.sendError(cl, "unknown message type: "+msg.Type)
		}
	}
}

// handleRevise validates the frame, attaches the client to the session's
// event stream, and kicks off the build. Progress arrives via the stream;
// the read loop keeps serving pings meanwhile.
func (g *Gateway) handleRevise(cl *clientConn, msg Message, attach func(string)) {
	if err := validate.SessionID(msg.SessionID); err != nil {
		g.sendError(cl, err.Error())
		return
	}

	var delta *blueprint.Delta
	if len(msg.Delta) > 0 {
		if err := validate.Delta(msg.Delta); err != nil {
			g.sendError(cl, err.Error())
			return
		}
		parsed, err := blueprint.ParseDelta(msg.Delta)
		if err != nil {
			g.sendError(cl, err.Error())
			return
		}
		delta = &parsed
	} else if msg.Prompt == "" {
		g.sendError(cl, "either delta or prompt is required")
		return
	}

	// The session must exist before attaching so no event is missed.
	snap, created := g.store.GetOrCreate(msg.SessionID)
	if created || msg.SessionID == "" {
		g.sendTyped(cl, map[string]interface{}{
			"type":       "session",
			"session_id": snap.ID,
		})
	}
	attach(snap.ID)

	go func() {
		var err error
		if delta != nil {
			_, err = g.orch.Revise(context.Background(), snap.ID, *delta)
		} else {
			_, err = g.orch.ReviseText(context.Background(), snap.ID, msg.Prompt)
		}
		// Build failures already reach the client through the event
		// stream; queue rejections never enter the pipeline, so they
		// are reported directly.
		if errors.Is(err, build.ErrBusy) || errors.Is(err, build.ErrClosed) {
			g.sendError(cl, err.Error())
		}
	}()
}

func (g *Gateway) handleAttach(cl *clientConn, msg Message, attach func(string)) {
	snap, err := g.store.Get(msg.SessionID)
	if err != nil {
		g.sendError(cl, err.Error())
		return
	}
	attach(snap.ID)
	g.sendTyped(cl, map[string]interface{}{
		"type":       "session",
		"session_id": snap.ID,
		"status":     snap.Status,
	})
}

// forward translates build events into wire frames. File events expand into
// the typing sequence: file_start, a paced typing_line per content line,
// file_complete.
func (g *Gateway) forward(cl *clientConn, ch <-chan build.Event) {
	for ev := range ch {
		switch ev.Type {
		case build.EventStatus:
			g.sendTyped(cl, map[string]interface{}{
				"type":       "status",
				"session_id": ev.SessionID,
				"build_id":   ev.BuildID,
				"phase":      ev.Status,
				"message":    ev.Message,
				"timestamp":  ev.At.Unix(),
			})
		case build.EventFile:
			g.streamFile(cl, ev)
		case build.EventPreviewReady:
			frame := artifactFrame("preview_ready", ev)
			if ev.File != nil {
				frame["html_content"] = string(ev.File.Content)
			}
			g.sendTyped(cl, frame)
		case build.EventBuildComplete:
			g.sendTyped(cl, artifactFrame("build_complete", ev))
		case build.EventError:
			g.sendTyped(cl, map[string]interface{}{
				"type":       "error",
				"session_id": ev.SessionID,
				"build_id":   ev.BuildID,
				"message":    ev.Message,
			})
		}
	}
}

func (g *Gateway) streamFile(cl *clientConn, ev build.Event) {
	g.sendTyped(cl, map[string]interface{}{
		"type":       "file_start",
		"session_id": ev.SessionID,
		"build_id":   ev.BuildID,
		"path":       ev.File.Path,
	})

	lines := splitLines(string(ev.File.Content))
	shown := lines
	if max := g.stream.MaxTypingLines; max > 0 && len(shown) > max {
		shown = shown[:max]
	}
	for i, line := range shown {
		g.sendTyped(cl, map[string]interface{}{
			"type":     "typing_line",
			"path":     ev.File.Path,
			"line_no":  i + 1,
			"content":  line,
			"build_id": ev.BuildID,
		})
		if g.stream.TypingDelay > 0 {
			time.Sleep(g.stream.TypingDelay)
		}
	}

	g.sendTyped(cl, map[string]interface{}{
		"type":        "file_complete",
		"session_id":  ev.SessionID,
		"build_id":    ev.BuildID,
		"path":        ev.File.Path,
		"total_lines": len(lines),
	})
}

func artifactFrame(typ string, ev build.Event) map[string]interface{} {
	frame := map[string]interface{}{
		"type":       typ,
		"session_id": ev.SessionID,
		"build_id":   ev.BuildID,
	}
	if ev.Artifacts != nil {
		frame["app_url"] = ev.Artifacts.AppURL
		frame["http_url"] = ev.Artifacts.HTTPURL
		frame["download_url"] = ev.Artifacts.DownloadURL
	}
	return frame
}

func (g *Gateway) sendTyped(cl *clientConn, frame map[string]interface{}) {
	if typ, ok := frame["type"].(string); ok {
		g.metrics.WSMessages.WithLabelValues("out", typ).Inc()
	}
	cl.send(frame)
}

func (g *Gateway) sendError(cl *clientConn, message string) {
	g.sendTyped(cl, map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
