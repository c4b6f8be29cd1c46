package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRoom(ctx, "abc123")

	l := Ctx(ctx)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc123", entry[FieldRoom])
	assert.Equal(t, "hello", entry["message"])
}

func TestGinMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf, ServiceName: "test"})

	r := gin.New()
	r.Use(GinMiddleware(logger))
	r.GET("/ping", func(c *gin.Context) {
		c.Set(FieldUserID, "u1")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "u1", entry[FieldUserID])
	assert.Equal(t, "test", entry[FieldService])
	assert.EqualValues(t, http.StatusNoContent, entry[FieldStatus])
}
