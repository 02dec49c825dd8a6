package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = srv.Start()
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestServerStartStop(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Verify we got a real address (not :0)
	if addr == "" || addr == ":0" {
		t.Errorf("Start() returned invalid address: %q", addr)
	}
	t.Logf("Server started on %s", addr)

	if got := srv.Addr(); got != addr {
		t.Errorf("Addr() = %q, want %q", got, addr)
	}

	url := "http://" + addr + "/"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("HTTP GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Sitecheck Fixture") {
		t.Error("Response body doesn't contain expected HTML")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	// Verify server is stopped (should fail to connect)
	_, err = http.Get(url)
	if err == nil {
		t.Error("Expected connection error after shutdown, but request succeeded")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":0", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Nil(t, cfg.Posts)
}

func TestServerDoubleStart(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	addr1, err := srv.Start()
	require.NoError(t, err)

	addr2, err := srv.Start()
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2, "second Start() should return the same address")
}

func TestServerURLUsesLocalhost(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	assert.True(t, strings.HasPrefix(srv.URL(), "http://localhost:"), srv.URL())

	stopped, err := NewServer(DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, stopped.URL())
}

func TestServerRoutes(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/static/app.js", http.StatusOK, "application/javascript"},
		{"/static/site.css", http.StatusOK, "text/css"},
		{PathBroken, http.StatusInternalServerError, "text/plain"},
		{PathMissing, http.StatusNotFound, "text/plain"},
		{PathRedirect, http.StatusOK, "application/javascript"},
		{PathPosts, http.StatusOK, "application/json"},
		{PathNotJSON, http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL() + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType)
		})
	}
}

func TestServerCustomPosts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Posts = []byte(`[{"userId": "1", "id": 7, "title": "", "body": "x"}]`)
	srv := startServer(t, cfg)

	resp, err := http.Get(srv.URL() + PathPosts)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, string(cfg.Posts), string(body))
}

func TestServerPostsRejectsPost(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	resp, err := http.Post(srv.URL()+PathPosts, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerRedirectHop(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(srv.URL() + PathRedirect)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, PathApp, resp.Header.Get("Location"))
}

func TestServerSlowImageAnswersLate(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	start := time.Now()
	resp, err := http.Get(srv.URL() + PathSlow)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), SlowDelay)
}

func TestHTMLPageReferencesEveryOutcome(t *testing.T) {
	for _, path := range []string{PathApp, PathBroken, PathMissing, PathSlow, PathRedirect} {
		assert.Contains(t, HTMLPage, `"`+path+`"`)
	}
}
