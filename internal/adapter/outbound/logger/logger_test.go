package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/line"
)

func TestLoggerWritesStrippedLines(t *testing.T) {
	dir := t.TempDir()
	lg := New(dir, "testworld", nil)
	lg.SetEnabled(true)
	now := time.Now()
	if err := lg.Reopen(now); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	l := line.New([]byte("\x1b[31mHello\x1b[0m\n"), 0)
	lg.Write(l)
	if msg := lg.Flush(); msg != "" {
		t.Fatalf("unexpected error message: %q", msg)
	}
	lg.Close()

	data, err := os.ReadFile(filepath.Join(dir, "testworld - "+now.Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(data) != "Hello\n" {
		t.Fatalf("got %q, want %q", data, "Hello\n")
	}
}

func TestLoggerDisabledDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	lg := New(dir, "testworld", nil)
	lg.Write(line.New([]byte("x\n"), 0))
	if lg.Flush() != "" {
		t.Fatal("disabled logger should not report errors")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("disabled logger should not create files, found %v", entries)
	}
}

func TestLoggerRolloverOpensNewFile(t *testing.T) {
	dir := t.TempDir()
	lg := New(dir, "w", nil)
	lg.SetEnabled(true)
	day1 := time.Date(2026, 7, 30, 23, 59, 59, 0, time.UTC)
	day2 := day1.Add(2 * time.Second)

	if err := lg.Reopen(day1); err != nil {
		t.Fatal(err)
	}
	lg.Write(line.New([]byte("d1\n"), 0))
	lg.Flush()

	if err := lg.Reopen(day2); err != nil {
		t.Fatal(err)
	}
	lg.Write(line.New([]byte("d2\n"), 0))
	lg.Flush()
	lg.Close()

	for _, day := range []time.Time{day1, day2} {
		path := filepath.Join(dir, "w - "+day.Format("2006-01-02")+".log")
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file for %v: %v", day, err)
		}
	}
}
