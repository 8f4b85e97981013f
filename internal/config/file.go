package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// LoadFile reads a per-world config file and applies every "key =
// value" line it contains to w via Set, in SourceFile mode. Blank
// lines and lines starting with '#' are skipped. A value may be
// wrapped in one matching pair of single or double quotes, which are
// stripped before validation. The first error aborts the load and
// names the offending file and line number.
func LoadFile(w *world.World, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%s: line %d: parse error: %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = removeEnclosingQuotes(strings.TrimSpace(value))

		switch status, serr := Set(w, key, value, SourceFile); status {
		case SetOK:
		case SetNotFound:
			return fmt.Errorf("%s: line %d: unknown key %q", path, lineNo, key)
		case SetPermissionDenied:
			return fmt.Errorf("%s: line %d: setting key %q not allowed", path, lineNo, key)
		case SetInvalid:
			return fmt.Errorf("%s: line %d: setting key %q: %w", path, lineNo, key, serr)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// removeEnclosingQuotes strips one matching leading and trailing
// quote (single or double) from s, if present.
func removeEnclosingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'') && first == last {
		return s[1 : len(s)-1]
	}
	return s
}
