package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/thesyncim/sitecheck/cmd/fixture-site/server"
)

// StartFixtureSite starts the fixture site on a random port and stops it when
// the test ends. posts replaces the /posts body when non-nil.
func StartFixtureSite(t testing.TB, posts []byte) *server.Server {
	t.Helper()

	cfg := server.DefaultConfig()
	cfg.Posts = posts

	srv, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Logf("Fixture site started on %s", addr)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("server shutdown error: %v", err)
		}
	})
	return srv
}
