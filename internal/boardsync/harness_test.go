package boardsync_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kanban-board/internal/apiclient"
	"kanban-board/internal/board"
	"kanban-board/internal/boardsync"
	"kanban-board/internal/config"
	"kanban-board/internal/debounce"
	"kanban-board/internal/server"
	"kanban-board/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type request struct {
	Method string
	Path   string
	Body   map[string]any
}

// recordingServer fronts the real router, records every request and can be
// told to reject some of them.
type recordingServer struct {
	handler http.Handler

	mu       sync.Mutex
	requests []request
	reject   func(method, path string) int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(data))
		if len(data) > 0 {
			json.Unmarshal(data, &body)
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, request{Method: r.Method, Path: r.URL.Path, Body: body})
	reject := s.reject
	s.mu.Unlock()

	if reject != nil {
		if status := reject(r.Method, r.URL.Path); status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"statusCode": status,
				"message":    "injected failure",
				"error":      http.StatusText(status),
				"timestamp":  time.Now().UTC().Format(time.RFC3339),
				"path":       r.URL.Path,
			})
			return
		}
	}
	s.handler.ServeHTTP(w, r)
}

func (s *recordingServer) Reject(fn func(method, path string) int) {
	s.mu.Lock()
	s.reject = fn
	s.mu.Unlock()
}

// Since returns the requests matching method and path prefix recorded after
// mark.
func (s *recordingServer) Since(mark int, method, prefix string) []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []request
	for _, r := range s.requests[mark:] {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingServer) Mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test", AllowedOrigins: []string{"*"}},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			SQLitePath:   ":memory:",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret:      "boardsync-test",
			Issuer:         "kanban-test",
			AccessTokenTTL: time.Hour,
			BCryptCost:     bcrypt.MinCost,
		},
		Cache: config.CacheConfig{BoardTTL: time.Minute},
	}
}

func newServer(t *testing.T) (*recordingServer, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := server.NewApp(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	rec := &recordingServer{handler: app.Router}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return rec, srv.URL
}

// manualClock holds debounce timers until the test fires them.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) FireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type client struct {
	syncer  *boardsync.Syncer
	session *session.State
	api     *apiclient.Client
	clock   *manualClock
}

func newClient(t *testing.T, baseURL string) *client {
	t.Helper()
	sess, err := session.Open("")
	require.NoError(t, err)
	api := apiclient.New(baseURL, sess)
	clock := &manualClock{}
	s := boardsync.New(api, board.NewStore(), sess, boardsync.WithClock(clock))
	t.Cleanup(s.Close)
	return &client{syncer: s, session: sess, api: api, clock: clock}
}

func messages(notices []session.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Message)
	}
	return out
}
