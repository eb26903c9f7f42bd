package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tinker495/associate/daemon"
)

func TestShowStatus(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	if err := showStatus(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Status: not running") {
		t.Errorf("unexpected status output: %q", buf.String())
	}

	lock, err := daemon.AcquirePIDLock(cfg.Paths.AppDir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	buf.Reset()
	if err := showStatus(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Status: running") {
		t.Errorf("expected running status, got %q", out)
	}
	if !strings.Contains(out, cfg.HookLogPath()) {
		t.Errorf("status should show the hook log path: %q", out)
	}
}

func TestStopServer_NotRunning(t *testing.T) {
	var buf bytes.Buffer
	if err := stopServer(&buf, t.TempDir(), time.Second); err != nil {
		t.Fatalf("stopServer() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No serve process is running") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
