package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/appforge/internal/domain/build"
	"github.com/forgeworks/appforge/internal/domain/renderer"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/generator"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/publisher"
)

var testMetrics = monitoring.NewMetrics()

type env struct {
	store *session.Store
	srv   *httptest.Server
}

func newEnv(t *testing.T, stream config.StreamConfig) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pub, err := publisher.New(
		config.WorkspaceConfig{Dir: t.TempDir()},
		config.ServerConfig{BaseURL: "http://localhost:8000"},
		logging.NewNop(),
	)
	require.NoError(t, err)

	store := session.NewStore()
	orch := build.New(build.Options{
		Store:       store,
		Renderer:    renderer.New(),
		Scaffolder:  generator.NewLocalScaffolder(),
		Publisher:   pub,
		Broadcaster: build.NewBroadcaster(),
		Metrics:     testMetrics,
		Logger:      logging.NewNop(),
		Timeout:     5 * time.Second,
	})
	t.Cleanup(orch.Close)

	gateway := NewGateway(store, orch, stream, testMetrics, logging.NewNop())
	router := gin.New()
	router.GET("/stream", gateway.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{store: store, srv: srv}
}

func (e *env) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// welcome frame
	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "system", welcome["type"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// collect reads frames until the terminal type arrives.
func collect(t *testing.T, conn *websocket.Conn, terminal string) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for i := 0; i < 10000; i++ {
		frame := readFrame(t, conn)
		frames = append(frames, frame)
		if frame["type"] == terminal {
			return frames
		}
	}
	t.Fatal("terminal frame never arrived")
	return nil
}

func TestGatewayPingPong(t *testing.T) {
	e := newEnv(t, config.StreamConfig{})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestGatewayUnknownType(t *testing.T) {
	e := newEnv(t, config.StreamConfig{})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "reboot"}))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["message"], "unknown message type")
}

func TestGatewayReviseStreamsBuild(t *testing.T) {
	e := newEnv(t, config.StreamConfig{TypingDelay: 0, MaxTypingLines: 5})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{
		Type:  "revise",
		Delta: json.RawMessage(`{"appName":"Hello","routes":[{"path":"#/","components":[{"type":"text","value":"hi"}]}]}`),
	}))

	frames := collect(t, conn, "build_complete")

	// first frame announces the allocated session
	require.Equal(t, "session", frames[0]["type"])
	assert.True(t, strings.HasPrefix(frames[0]["session_id"].(string), "sess_"))

	var phases []string
	var preview map[string]interface{}
	counts := map[string]int{}
	for _, f := range frames[1:] {
		typ := f["type"].(string)
		counts[typ]++
		switch typ {
		case "status":
			phases = append(phases, f["phase"].(string))
			assert.NotEmpty(t, f["message"], "status frames carry a progress message")
		case "preview_ready":
			preview = f
		}
	}
	assert.Equal(t, []string{"planning", "generating", "rendering"}, phases)
	assert.Equal(t, 4, counts["file_start"], "one per bundle file")
	assert.Equal(t, counts["file_start"], counts["file_complete"])
	assert.Greater(t, counts["typing_line"], 0)
	assert.Equal(t, 1, counts["preview_ready"])
	assert.Equal(t, 1, counts["build_complete"])

	// the preview is renderable on its own, ahead of any published URL
	require.NotNil(t, preview)
	assert.Contains(t, preview["html_content"], "<!DOCTYPE html>")

	last := frames[len(frames)-1]
	assert.Contains(t, last["http_url"], "/apps/")
	assert.Contains(t, last["download_url"], ".zip")
}

func TestGatewayTypingLinesCapped(t *testing.T) {
	e := newEnv(t, config.StreamConfig{TypingDelay: 0, MaxTypingLines: 3})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{
		Type:  "revise",
		Delta: json.RawMessage(`{"routes":[{"path":"#/","components":[{"type":"text","value":"hi"}]}]}`),
	}))

	frames := collect(t, conn, "build_complete")
	perFile := map[string]int{}
	for _, f := range frames {
		if f["type"] == "typing_line" {
			perFile[f["path"].(string)]++
		}
	}
	for path, n := range perFile {
		assert.LessOrEqual(t, n, 3, "file %s exceeded the typing cap", path)
	}
}

func TestGatewayBroadcastToSecondClient(t *testing.T) {
	e := newEnv(t, config.StreamConfig{TypingDelay: 0, MaxTypingLines: 2})

	// allocate the session up front so both clients can attach
	snap, _ := e.store.GetOrCreate("")

	watcher := e.dial(t)
	require.NoError(t, watcher.WriteJSON(Message{Type: "attach", SessionID: snap.ID}))
	require.Equal(t, "session", readFrame(t, watcher)["type"])

	driver := e.dial(t)
	require.NoError(t, driver.WriteJSON(Message{
		Type:      "revise",
		SessionID: snap.ID,
		Delta:     json.RawMessage(`{"routes":[{"path":"#/","components":[{"type":"text","value":"hi"}]}]}`),
	}))

	// both connections observe the full build
	driverFrames := collect(t, driver, "build_complete")
	watcherFrames := collect(t, watcher, "build_complete")
	assert.NotEmpty(t, driverFrames)
	assert.NotEmpty(t, watcherFrames)
}

func TestGatewayAttachUnknownSession(t *testing.T) {
	e := newEnv(t, config.StreamConfig{})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "attach", SessionID: "sess_nope"}))
	assert.Equal(t, "error", readFrame(t, conn)["type"])
}

func TestGatewayReviseRequiresPayload(t *testing.T) {
	e := newEnv(t, config.StreamConfig{})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "revise"}))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["message"], "required")
}

func TestGatewayReviseMalformedDelta(t *testing.T) {
	e := newEnv(t, config.StreamConfig{})
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(Message{
		Type:  "revise",
		Delta: json.RawMessage(`{"routes":[{"title":"missing path"}]}`),
	}))
	assert.Equal(t, "error", readFrame(t, conn)["type"])
}
