//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"testing"

	"github.com/thesyncim/sitecheck/pkg/sitecheck"
	"github.com/thesyncim/sitecheck/pkg/sitecheck/testutil"
)

var session *testutil.Session

func TestMain(m *testing.M) {
	session = testutil.NewSession(sitecheck.DefaultBrowserConfig())

	code := m.Run()

	if err := session.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "browser close error: %v\n", err)
	}

	// Safety net for panics or os.Exit during tests where Close didn't run.
	cleanupOrphanedBrowsers()

	os.Exit(code)
}

// cleanupOrphanedBrowsers attempts to kill Chrome processes that may have
// been left behind by failed tests. This is best-effort cleanup.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill returns non-zero if no processes matched, ignore error
		_ = exec.Command("pkill", "-f", "chromium|chrome").Run()
	case "windows":
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
