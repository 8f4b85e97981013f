package recall

import (
	"strings"
	"testing"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/line"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

func newTestWorld() *world.World {
	return world.New("test", "/tmp/test.conf")
}

// seedHistory appends count lines to wld's history, one second apart
// starting at base, with text "line N".
func seedHistory(wld *world.World, base time.Time, count int) {
	for i := 0; i < count; i++ {
		l := line.New([]byte("line "+itoa(i)+"\n"), 0)
		l.Created = base.Add(time.Duration(i) * time.Second)
		wld.History.Append(l)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	return digits
}

func popAll(wld *world.World) []string {
	var out []string
	for {
		l := wld.ClientTX.PopFront()
		if l == nil {
			return out
		}
		out = append(out, string(l.Bytes))
	}
}

func TestRecallAllLinesWithEmptyQuery(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(wld, base, 5)
	now := base.Add(10 * time.Second)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "")

	lines := popAll(wld)
	if len(lines) != 7 {
		t.Fatalf("got %d lines (incl. header/footer), want 7", len(lines))
	}
	if !strings.Contains(lines[0], "Recalling from") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], "Recall end (5 / 5 / 5)") {
		t.Fatalf("footer = %q", lines[len(lines)-1])
	}
}

func TestRecallToMinusOneLineSelectsNewestAtOrBeforeFrom(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(wld, base, 5)
	now := base.Add(10 * time.Second)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "from now to -1 lines")

	lines := popAll(wld)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header+1+footer = 3: %v", len(lines), lines)
	}
	if !strings.Contains(lines[1], "line 4") {
		t.Fatalf("recalled = %q, want newest line", lines[1])
	}
}

func TestRecallFromRelativeSecondsWindow(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// One line every ten seconds for a minute.
	for i := 0; i < 6; i++ {
		l := line.New([]byte("line "+itoa(i*10)+"\n"), 0)
		l.Created = base.Add(time.Duration(i*10) * time.Second)
		wld.History.Append(l)
	}
	now := base.Add(55 * time.Second)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "from -30 secs to -10 secs")

	lines := popAll(wld)
	// header, the lines at offsets 30 and 40 (25s and 45s window), footer.
	var body []string
	for _, l := range lines[1 : len(lines)-1] {
		body = append(body, l)
	}
	if len(body) != 2 {
		t.Fatalf("body = %v, want 2 matched lines", body)
	}
	if !strings.Contains(body[0], "line 30") || !strings.Contains(body[1], "line 40") {
		t.Fatalf("body = %v, want lines at offsets 30 and 40", body)
	}
}

func TestRecallPositiveLinesAfterFrom(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(wld, base, 10)
	now := base.Add(time.Minute)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "to +3 lines")

	lines := popAll(wld)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header+3+footer = 5: %v", len(lines), lines)
	}
	if !strings.Contains(lines[1], "line 0") {
		t.Fatalf("first recalled = %q, want the oldest line", lines[1])
	}
}

func TestRecallNegativeLinesFewerThanRequestedUsesHead(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedHistory(wld, base, 3)
	now := base.Add(time.Minute)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "from now to -10 lines")

	lines := popAll(wld)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header+3+footer = 5: %v", len(lines), lines)
	}
}

func TestRecallSearchFiltersLines(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l1 := line.New([]byte("the wizard casts a spell\n"), 0)
	l1.Created = base
	l2 := line.New([]byte("a dragon roars\n"), 0)
	l2.Created = base.Add(time.Second)
	wld.History.Append(l1)
	wld.History.Append(l2)
	now := base.Add(time.Minute)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "search wizard")

	lines := popAll(wld)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header+1+footer = 3: %v", len(lines), lines)
	}
	if !strings.Contains(lines[1], "wizard") {
		t.Fatalf("matched line = %q", lines[1])
	}
	if !strings.Contains(lines[len(lines)-1], "Recall end (2 / 2 / 1)") {
		t.Fatalf("footer = %q", lines[len(lines)-1])
	}
}

func TestRecallSearchWithWildcard(t *testing.T) {
	wld := newTestWorld()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l1 := line.New([]byte("you hit the troll hard\n"), 0)
	l1.Created = base
	wld.History.Append(l1)
	now := base.Add(time.Minute)

	r := &Recaller{Now: func() time.Time { return now }}
	r.Recall(wld, "search hit.*troll")

	lines := popAll(wld)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header+1+footer = 3: %v", len(lines), lines)
	}
}

func TestRecallUnknownKeywordReportsError(t *testing.T) {
	wld := newTestWorld()
	r := &Recaller{}
	r.Recall(wld, "bogus")

	lines := popAll(wld)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want a single error message", len(lines))
	}
	if !strings.Contains(lines[0], "Unrecognized keyword") {
		t.Fatalf("message = %q", lines[0])
	}
}

func TestRecallFromAfterToIsRejected(t *testing.T) {
	wld := newTestWorld()
	r := &Recaller{}
	r.Recall(wld, "to now from now")

	lines := popAll(wld)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want a single error message: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "from' keyword may not appear after") {
		t.Fatalf("message = %q", lines[0])
	}
}

func TestRecallDuplicateKeywordIsRejected(t *testing.T) {
	wld := newTestWorld()
	r := &Recaller{}
	r.Recall(wld, "from now from now")

	lines := popAll(wld)
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "may appear only once") {
		t.Fatalf("message = %q", lines[0])
	}
}

func TestRecallLinesModifierForbiddenUnderFrom(t *testing.T) {
	wld := newTestWorld()
	r := &Recaller{}
	r.Recall(wld, "from -5 lines")

	lines := popAll(wld)
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "lines' modifier") {
		t.Fatalf("message = %q", lines[0])
	}
}
