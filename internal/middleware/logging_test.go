// internal/middleware/logging_test.go
package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/game/create", nil))
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusCreated, entry.Data["status"])
	assert.Equal(t, "/game/create", entry.Data["path"])
	assert.Equal(t, http.MethodPost, entry.Data["method"])

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusInternalServerError, hook.LastEntry().Data["status"])
}

func TestLogMiddlewareDefaultsToOK(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])
}

func TestWebSocketLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogWebSocketConnect(logger, "1.2.3.4", "/game/ws/x")
	assert.Equal(t, "WebSocket connected", hook.LastEntry().Message)

	LogWebSocketDisconnect(logger, "1.2.3.4", "/game/ws/x", errors.New("closed"))
	assert.Equal(t, "WebSocket disconnected", hook.LastEntry().Message)
	assert.Contains(t, hook.LastEntry().Data, "error")

	LogWebSocketDisconnect(logger, "1.2.3.4", "/game/ws/x", nil)
	assert.NotContains(t, hook.LastEntry().Data, "error")
}
