package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/turn"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProvider satisfies llm.Provider for wiring; the stub graphs below never
// call the model.
type stubProvider struct{ pingErr error }

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Event, error) {
	out := make(chan llm.Event, 1)
	out <- &llm.DoneEvent{}
	close(out)
	return out, nil
}

func (p *stubProvider) Chat(ctx context.Context, req *llm.Request) (string, error) { return "", nil }

func (p *stubProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (p *stubProvider) Ping(ctx context.Context) error { return p.pingErr }

type graphFunc func(ctx context.Context, state *turn.State) error

func (f graphFunc) Invoke(ctx context.Context, state *turn.State) error { return f(ctx, state) }

func newTestServer(t *testing.T, graph turn.Graph, provider llm.Provider) (*Server, *turn.Engine) {
	t.Helper()
	dir := t.TempDir()
	runner := turn.NewRunner(&turn.Deps{
		Provider: provider,
		Roles:    map[string]turn.RoleConfig{turn.RoleAnswer: {Model: "m"}},
	}, filepath.Join(dir, "world.json"))
	engine := turn.NewEngine(runner, graph, history.NewLog(filepath.Join(dir, "history.jsonl"), 50), "UTC")
	return NewServer(engine, provider, nil), engine
}

func answeringGraph(answer string) graphFunc {
	return func(ctx context.Context, state *turn.State) error {
		state.Emitter.AssistantFull(answer)
		state.Final.Answer = answer
		return nil
	}
}

type wireEvent struct {
	TurnID string `json:"turn_id"`
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("hi"), &stubProvider{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["provider"])
	assert.Equal(t, false, body["busy"])
}

func TestHealthzReportsProviderDown(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("hi"), &stubProvider{pingErr: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider":"unreachable"`)
}

func TestCreateTurnRejectsBadBody(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("hi"), &stubProvider{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/turns", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTurnStreamsNDJSON(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("hello there"), &stubProvider{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/turns",
		bytes.NewReader([]byte(`{"message":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var evs []wireEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev wireEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		evs = append(evs, ev)
	}
	require.NotEmpty(t, evs)
	assert.Equal(t, "turn_start", evs[0].Kind)
	assert.Equal(t, "turn_end_ok", evs[len(evs)-1].Kind)

	// Seq strictly increasing, same turn_id throughout.
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i].Seq, evs[i-1].Seq)
		assert.Equal(t, evs[0].TurnID, evs[i].TurnID)
	}

	var sawDelta bool
	for _, ev := range evs {
		if ev.Kind == "assistant_delta" {
			sawDelta = true
			assert.Equal(t, "hello there", ev.Text)
		}
	}
	assert.True(t, sawDelta)
}

func TestCreateTurnConflictWhileBusy(t *testing.T) {
	release := make(chan struct{})
	server, engine := newTestServer(t, graphFunc(func(ctx context.Context, state *turn.State) error {
		<-release
		return nil
	}), &stubProvider{})

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.Post(ts.URL+"/api/turns", "application/json",
			strings.NewReader(`{"message":"first"}`))
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	require.Eventually(t, engine.Busy, time.Second, 5*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/turns", "application/json",
		strings.NewReader(`{"message":"second"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(release)
	<-done
}

func TestWebSocketTurn(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("ws answer"), &stubProvider{})

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"message": "hi"}))

	var kinds []string
	for {
		var ev wireEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		kinds = append(kinds, ev.Kind)
		if ev.Kind == "turn_end_ok" || ev.Kind == "turn_end_error" {
			break
		}
	}
	assert.Equal(t, "turn_start", kinds[0])
	assert.Equal(t, "turn_end_ok", kinds[len(kinds)-1])
}

func TestWebSocketRejectsEmptyMessage(t *testing.T) {
	server, _ := newTestServer(t, answeringGraph("unused"), &stubProvider{})

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"message": ""}))

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "error", frame["type"])

	// Connection still usable afterwards.
	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"message": "hi"}))
	var ev wireEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "turn_start", ev.Kind)
}
