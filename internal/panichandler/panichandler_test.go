package panichandler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecoverFormatsDiagnosticAndNotifies(t *testing.T) {
	var notified []string
	crashFile := filepath.Join(t.TempDir(), "crash.log")

	h := New(crashFile, func(line string) { notified = append(notified, line) })
	h.Now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }

	diagnostic, panicked := func() (d string, p bool) {
		defer func() { d, p = h.Recover() }()
		panic("invariant broken: buffered queue negative length")
	}()

	if !panicked {
		t.Fatal("expected Recover to report a panic")
	}
	if !strings.Contains(diagnostic, "invariant broken") {
		t.Fatalf("diagnostic missing panic message: %q", diagnostic)
	}
	if len(notified) != 1 || !strings.Contains(notified[0], "invariant broken") {
		t.Fatalf("notify not called with expected message: %v", notified)
	}

	data := readFile(t, crashFile)
	if !strings.Contains(data, "invariant broken") {
		t.Fatalf("crash file missing diagnostic: %q", data)
	}
}

func TestRecoverIsNoopWithoutPanic(t *testing.T) {
	h := New("", nil)
	diagnostic, panicked := func() (d string, p bool) {
		defer func() { d, p = h.Recover() }()
		return "", false
	}()
	if panicked || diagnostic != "" {
		t.Fatalf("expected no panic reported, got panicked=%v diagnostic=%q", panicked, diagnostic)
	}
}

func TestGuardExitsAfterReporting(t *testing.T) {
	var exitCode int
	var exited bool
	h := New("", nil)
	h.Exit = func(code int) { exitCode = code; exited = true }

	func() {
		defer h.Guard()
		panic("boom")
	}()

	if !exited || exitCode != 1 {
		t.Fatalf("exited=%v exitCode=%d, want exited=true code=1", exited, exitCode)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crash file: %v", err)
	}
	return string(b)
}
