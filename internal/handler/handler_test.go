package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/handler"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/internal/service"
	"github.com/weiawesome/wes-io-rooms/internal/stream"
	"github.com/weiawesome/wes-io-rooms/internal/testutil"
	"github.com/weiawesome/wes-io-rooms/pkg/idgen"
	"github.com/weiawesome/wes-io-rooms/pkg/jwt"
	"github.com/weiawesome/wes-io-rooms/pkg/middleware"
	"github.com/weiawesome/wes-io-rooms/pkg/response"
)

const sessionSecret = "session-secret"

type testServer struct {
	router  *gin.Engine
	handler *handler.Handler
	db      *gorm.DB
}

func newRouter(t *testing.T, apiSecret string, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	return newTestServer(t, apiSecret, limiter).router
}

func newTestServer(t *testing.T, apiSecret string, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	retry := repository.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}
	roomRepo := repository.NewGormRoomRepository(db, retry)
	presenceRepo := repository.NewGormPresenceRepository(db, retry)
	reactionRepo := repository.NewGormReactionRepository(db, retry)
	banRepo := repository.NewGormBanRepository(db, retry)

	emitter := events.NewEmitter(nil, nil)
	lookup := service.NewRoomLookup(roomRepo, nil, 0)
	signer := jwt.NewSigner("devkey", apiSecret, time.Hour, 10*time.Second)
	viewers := service.NewViewerService(lookup, presenceRepo,
		service.WindowPolicy{Default: time.Minute, Min: 10 * time.Second, Max: time.Hour}, nil)
	streamer := stream.NewStreamer(viewers,
		stream.IntervalPolicy{Default: 20 * time.Millisecond, Min: 10 * time.Millisecond, Max: time.Second})

	svc := handler.Services{
		Tokens:     service.NewTokenService(lookup, roomRepo, banRepo, presenceRepo, reactionRepo, signer, emitter, 30*time.Second, nil),
		Presence:   service.NewPresenceService(presenceRepo, nil),
		Viewers:    viewers,
		Reactions:  service.NewReactionService(lookup, reactionRepo, idgen.NewULIDGenerator(), emitter, nil),
		Moderation: service.NewModerationService(lookup, banRepo, emitter, nil),
		Rooms:      service.NewRoomService(lookup, roomRepo, viewers, idgen.NewRoomSlugGenerator(), emitter, streamer, 20*time.Second, nil),
	}

	h := handler.NewHandler(svc, streamer, middleware.NewAuthMiddleware(jwt.NewVerifier(sessionSecret)), limiter,
		handler.StreamOptions{PingInterval: 50 * time.Millisecond, PongWait: time.Second, WriteWait: time.Second})

	r := gin.New()
	h.RegisterRoutes(r)
	return &testServer{router: r, handler: h, db: db}
}

func session(t *testing.T, identity, name string) string {
	t.Helper()
	token, err := jwt.IssueSession(sessionSecret, identity, "", name, time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, r http.Handler, method, path, token string, body interface{}) (int, response.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func data(resp response.Response) map[string]interface{} {
	m, _ := resp.Data.(map[string]interface{})
	return m
}

func TestTokenAndReactionFlow(t *testing.T) {
	r := newRouter(t, "api-secret", nil)
	u1 := session(t, "U1", "Alice")
	u2 := session(t, "U2", "Bob")

	code, resp := do(t, r, http.MethodPost, "/api/v1/token", "", gin.H{"room": "abc123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.CodeUnauthenticated, resp.Error.Code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/token", u1, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = do(t, r, http.MethodPost, "/api/v1/token", u1, gin.H{"room": "abc123"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "host", data(resp)["role"])
	assert.Equal(t, true, data(resp)["can_publish"])
	assert.Equal(t, true, data(resp)["fresh_session"])
	assert.NotEmpty(t, data(resp)["token"])

	code, resp = do(t, r, http.MethodPost, "/api/v1/token", u2, gin.H{"room": "abc123", "publish": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "viewer", data(resp)["role"])
	assert.Equal(t, false, data(resp)["can_publish"])

	code, resp = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/reactions", u2, gin.H{"kind": "like"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"like": float64(1)}, data(resp)["summary"])

	code, resp = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/reactions", u1, gin.H{"kind": "like"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, handler.CodeHostCannotReact, resp.Error.Code)

	code, resp = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/reactions", u2, gin.H{"kind": "boo"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, handler.CodeInvalidKind, resp.Error.Code)

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms/abc123/reactions", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"like": float64(1)}, data(resp)["summary"])

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms/abc123", u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(resp)["exists"])
	assert.Equal(t, true, data(resp)["is_host"])
	assert.Equal(t, "U1", data(resp)["host_identity"])
}

func TestModerationRoutes(t *testing.T) {
	r := newRouter(t, "api-secret", nil)
	u1 := session(t, "U1", "Alice")
	u2 := session(t, "U2", "Bob")

	code, _ := do(t, r, http.MethodPost, "/api/v1/rooms/abc123/bans", u1, gin.H{"identity": "U2"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/token", u1, gin.H{"room": "abc123"})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/bans", u2, gin.H{"identity": "U1"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/bans", u1, gin.H{"identity": "U2"})
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, r, http.MethodPost, "/api/v1/token", u2, gin.H{"room": "abc123", "publish": false})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, handler.CodeBanned, resp.Error.Code)

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms/abc123/bans", u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(resp)["bans"], 1)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/rooms/abc123/bans/U2", u1, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/token", u2, gin.H{"room": "abc123", "publish": false})
	assert.Equal(t, http.StatusOK, code)
}

func TestRoomRoutes(t *testing.T) {
	r := newRouter(t, "api-secret", nil)
	u1 := session(t, "U1", "Alice")
	u2 := session(t, "U2", "Bob")

	code, resp := do(t, r, http.MethodGet, "/api/v1/rooms/nobody-here", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, data(resp)["exists"])
	assert.Equal(t, true, data(resp)["is_public"])
	assert.Equal(t, float64(20), data(resp)["heartbeat_interval_sec"])

	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms", u1, gin.H{"is_public": false})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = do(t, r, http.MethodPost, "/api/v1/rooms", u1, gin.H{"display_title": "Morning Show", "is_public": false})
	require.Equal(t, http.StatusCreated, code)
	name := data(resp)["name"].(string)
	assert.Len(t, name, idgen.SlugSize)

	code, _ = do(t, r, http.MethodPut, "/api/v1/rooms/"+name+"/visibility", u2, gin.H{"is_public": true})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, r, http.MethodPut, "/api/v1/rooms/missing/visibility", u1, gin.H{"is_public": true})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, r, http.MethodPut, "/api/v1/rooms/"+name+"/visibility", u1, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, data(resp)["rooms"])

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms?visibility=all", u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(resp)["rooms"], 1)

	code, resp = do(t, r, http.MethodPut, "/api/v1/rooms/"+name+"/visibility", u1, gin.H{"is_public": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(resp)["is_public"])

	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms/"+name+"/presence/heartbeat", u2, gin.H{"display_name": "Bob"})
	require.Equal(t, http.StatusOK, code)

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms/"+name+"/viewers?within_sec=60", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(resp)["viewers"])
	assert.Equal(t, float64(60), data(resp)["window_sec"])

	code, resp = do(t, r, http.MethodGet, "/api/v1/monitor", u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(resp)["total_viewers"])

	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms/"+name+"/presence/leave", u2, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = do(t, r, http.MethodGet, "/api/v1/rooms/"+name+"/viewers", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(resp)["viewers"])
}

func TestHeartbeatWithoutBody(t *testing.T) {
	r := newRouter(t, "api-secret", nil)

	code, resp := do(t, r, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", session(t, "U1", ""), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(resp)["ok"])
}

func TestRateLimitedHeartbeat(t *testing.T) {
	r := newRouter(t, "api-secret", middleware.NewRateLimiter(0.001, 1, time.Minute))
	u1 := session(t, "U1", "Alice")

	code, _ := do(t, r, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", u1, gin.H{})
	assert.Equal(t, http.StatusOK, code)

	code, resp := do(t, r, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", u1, gin.H{})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, response.CodeRateLimited, resp.Error.Code)

	// Buckets are per identity.
	code, _ = do(t, r, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", session(t, "U2", ""), gin.H{})
	assert.Equal(t, http.StatusOK, code)
}

func TestTokenNotConfigured(t *testing.T) {
	r := newRouter(t, "", nil)

	code, resp := do(t, r, http.MethodPost, "/api/v1/token", session(t, "U1", ""), gin.H{"room": "abc123"})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, handler.CodeNotConfigured, resp.Error.Code)
}

func TestViewerStreamSSE(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, "api-secret", nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/rooms/abc123/viewers/stream?interval_ms=10", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for len(lines) < 3 && scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 3)
	// Unnamed frames reach EventSource onmessage handlers.
	assert.Equal(t, `data:{"ready":true}`, lines[0])
	assert.Equal(t, `data:{"viewers":0}`, lines[1])
	assert.Equal(t, `data:{"viewers":0}`, lines[2])
}

func TestCloseStreamsEndsOpenStreams(t *testing.T) {
	ts := newTestServer(t, "api-secret", nil)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/rooms/abc123/viewers/stream?interval_ms=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/abc123/viewers/ws?interval_ms=10"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	ts.handler.CloseStreams()

	sseDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		sseDone <- err
	}()
	select {
	case err := <-sseDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream still open after CloseStreams")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
	}

	// Ordinary requests keep working.
	code, resp2 := do(t, ts.router, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", session(t, "U1", ""), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp2.Success)
}

func TestHeartbeatChunkedBody(t *testing.T) {
	ts := newTestServer(t, "api-secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", strings.NewReader(`{"display_name":"Bob"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+session(t, "U2", "Session Bob"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var row domain.PresenceModel
	require.NoError(t, ts.db.Where("room_name = ? AND identity = ?", "abc123", "U2").Take(&row).Error)
	assert.Equal(t, "Bob", row.DisplayName)

	code, _ := do(t, ts.router, http.MethodPost, "/api/v1/rooms/abc123/presence/heartbeat", session(t, "U2", ""), "not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestViewerStreamRejectsBadRoom(t *testing.T) {
	r := newRouter(t, "api-secret", nil)

	code, _ := do(t, r, http.MethodGet, "/api/v1/rooms/bad!room/viewers/stream", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestViewerStreamWebSocket(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, "api-secret", nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/abc123/viewers/ws?interval_ms=10"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	type frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, stream.EventReady, f.Event)
	assert.JSONEq(t, `{"ready":true}`, string(f.Data))

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.ReadJSON(&f))
		assert.Equal(t, stream.EventCount, f.Event)
		assert.JSONEq(t, `{"viewers":0}`, string(f.Data))
	}
}

func TestHealth(t *testing.T) {
	r := newRouter(t, "api-secret", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
