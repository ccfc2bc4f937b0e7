package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"telegram-library/bot"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu     sync.Mutex
	events []bot.Event
}

func (q *recordingQueue) Submit(_ context.Context, ev bot.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return true
}

func newTestRouter(secret string, ready bool) (*gin.Engine, *recordingQueue) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	queue := &recordingQueue{}
	SetupRoutes(router, "/hook", NewWebhookController(queue, secret), func() bool { return ready })
	return router, queue
}

func post(router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const textUpdate = `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"},"date":0,"text":"react basics"}}`

func TestWebhookSubmitsDecodedEvent(t *testing.T) {
	router, queue := newTestRouter("", true)

	w := post(router, textUpdate, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, queue.events, 1)
	assert.Equal(t, bot.TextMessage{ChatID: 42, UserID: 42, Text: "react basics"}, queue.events[0])
}

func TestWebhookAcknowledgesGarbage(t *testing.T) {
	router, queue := newTestRouter("", true)

	for _, body := range []string{"not json", `{"update_id":2}`, ""} {
		w := post(router, body, nil)
		assert.Equal(t, http.StatusOK, w.Code, body)
	}
	assert.Empty(t, queue.events)
}

func TestWebhookSecret(t *testing.T) {
	router, queue := newTestRouter("s3cret", true)

	w := post(router, textUpdate, map[string]string{secretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(router, textUpdate, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, queue.events)

	w = post(router, textUpdate, map[string]string{secretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, queue.events, 1)
}

func TestHealthAndReadiness(t *testing.T) {
	router, _ := newTestRouter("", false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPollingModeHasNoWebhookRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, "/hook", nil, nil)

	w := post(router, textUpdate, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
