package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thesyncim/sitecheck/cmd/fixture-site/server"
	"github.com/thesyncim/sitecheck/pkg/sitecheck"
	"github.com/thesyncim/sitecheck/pkg/sitecheck/testutil"
)

const testReport = `{"categories": {
	"performance":    {"score": 0.5},
	"accessibility":  {"score": 0.9},
	"best-practices": {"score": null},
	"seo":            {"score": 1}
}}`

type reportWriter struct{}

func (reportWriter) Run(ctx context.Context, name string, args ...string) error {
	for _, a := range args {
		if path, ok := strings.CutPrefix(a, "--output-path="); ok {
			return os.WriteFile(path, []byte(testReport), 0o600)
		}
	}
	return nil
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()

	a.newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }

	cmd := newRootCmdWith(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, newApp(), "version")
	require.NoError(t, err)
	assert.Equal(t, "sitecheck "+version+"\n", out)
}

func TestPostsCommand(t *testing.T) {
	srv := testutil.StartFixtureSite(t, nil)
	dir := t.TempDir()

	out, err := execute(t, newApp(), "posts", "--api-url", srv.URL()+server.PathPosts, "--out", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "3 posts checked, 0 failed")
	matches, err := filepath.Glob(filepath.Join(dir, "posts_validation_*_report.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPostsCommand_InvalidPosts(t *testing.T) {
	srv := testutil.StartFixtureSite(t, []byte(`[{"userId": "7", "id": 9, "title": "t", "body": ""}]`))

	out, err := execute(t, newApp(), "posts", "--api-url", srv.URL()+server.PathPosts, "--out", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecheck.ErrChecksFailed)
	assert.Contains(t, out, "Post ID 9 failed: userId is not an integer, body is empty")
}

func TestPostsCommand_NotJSON(t *testing.T) {
	srv := testutil.StartFixtureSite(t, nil)

	_, err := execute(t, newApp(), "posts", "--api-url", srv.URL()+server.PathNotJSON, "--out", t.TempDir())
	assert.ErrorIs(t, err, sitecheck.ErrNotJSON)
}

func TestLighthouseCommandWithHistory(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")

	newTestApp := func() *app {
		a := newApp()
		lh, err := sitecheck.NewLighthouse(
			sitecheck.WithCommandRunner(reportWriter{}),
			sitecheck.WithReportPath(filepath.Join(dir, "lighthouse-report.json")),
		)
		require.NoError(t, err)
		a.runnerOpts = []sitecheck.RunnerOption{sitecheck.WithLighthouse(lh)}
		return a
	}

	args := []string{"lighthouse", "--url", "https://example.com/", "--out", dir, "--db", db}
	out, err := execute(t, newTestApp(), args...)
	require.NoError(t, err)
	assert.Contains(t, out, "performance")
	assert.Contains(t, out, "best_practices  n/a")

	// Same scores again: no regression.
	_, err = execute(t, newTestApp(), args...)
	require.NoError(t, err)

	out, err = execute(t, newApp(), "history", "--url", "https://example.com/", "--db", db)
	require.NoError(t, err)
	assert.Regexp(t, `performance\s+0\.50\s+2\n`, out)
	assert.Regexp(t, `best_practices\s+-\s+0\n`, out)
	assert.Contains(t, out, "Broken requests, newest first: []")
}

func TestHistoryCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, newApp(), "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db")
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://from-file.example.com/\noutput_dir: "+dir+"\n"), 0o600))

	a := newApp()
	_, err := execute(t, a, "history", "--config", path, "--url", "https://from-flag.example.com/")
	require.Error(t, err, "history still needs a database")

	assert.Equal(t, "https://from-flag.example.com/", a.cfg.URL)
	assert.Equal(t, dir, a.cfg.OutputDir)
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, newApp(), "posts", "--api-url", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestWatchCommand_InvalidSchedule(t *testing.T) {
	_, err := execute(t, newApp(), "watch", "--schedule", "every tuesday", "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}
