// Package recall implements the history-query language invoked by the
// "recall" command: a recursive-descent parser over from/to/search
// keywords and absolute/relative timespecs, and the history-scan
// algorithm that turns a parsed query into matched lines replayed to
// the client.
package recall

import (
	"fmt"
	"strings"
	"time"

	"github.com/mooproxy/mooproxy/internal/adapter/outbound/logger"
	"github.com/mooproxy/mooproxy/internal/domain/line"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// Recaller executes recall queries against a world's history queue.
// Now is overridable for tests; a nil Now defaults to time.Now.
type Recaller struct {
	Now func() time.Time
}

func (r *Recaller) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Recall parses query and, on success, emits a header, every matching
// history line (ANSI-stripped, flagged Message, stamped with its
// original creation time) and a footer to wld's client TX queue. A
// parse error is reported to the client instead and nothing is
// recalled.
func (r *Recaller) Recall(wld *world.World, query string) {
	now := r.now()

	p := &parser{now: now}
	p.from = now
	if head := wld.History.Peek(); head != nil {
		p.from = head.Created
	}
	p.to = now

	if err := p.parse(query); err != nil {
		wld.MessageToClient(err.Error())
		return
	}

	if p.from.After(p.to) {
		p.from, p.to = p.to, p.from
	}

	if p.lines == 0 {
		wld.MessageToClient(fmt.Sprintf("Recalling from %s to %s.",
			formatWhen(p.from), formatWhen(p.to)))
	} else {
		n := p.lines
		if n < 0 {
			n = -n
		}
		dir := "after"
		anchor := formatWhen(p.from)
		if p.lines < 0 {
			dir = "before"
		}
		if p.from.Equal(now) {
			anchor = "now"
		}
		wld.MessageToClient(fmt.Sprintf("Recalling %d lines %s %s.", n, dir, anchor))
	}

	inPeriod, matched := search(wld, p)

	wld.MessageToClient(fmt.Sprintf("Recall end (%d / %d / %d).",
		wld.History.Count(), inPeriod, matched))
}

func formatWhen(t time.Time) string {
	return t.Format("Mon 2006/01/02 15:04:05")
}

// search walks wld.History according to p's from/to/lines selection,
// appending every time-eligible line that also passes p's search
// filter to wld.ClientTX. It returns the count of lines inspected
// against the time window and the count that also matched the search
// filter.
func search(wld *world.World, p *parser) (inPeriod, matched int) {
	recallOne := func(l *line.Line) {
		inPeriod++
		stripped := logger.StripANSI(l.Bytes)
		if p.search != nil && !matchFragments(strings.ToLower(string(stripped)), p.search) {
			return
		}
		recalled := line.New(append([]byte(nil), stripped...), line.Message|line.Recalled)
		recalled.Created = l.Created
		wld.ClientTX.Append(recalled)
		matched++
	}

	switch {
	case p.lines == 0:
		wld.History.Each(func(l *line.Line) {
			if l.Created.Before(p.from) || l.Created.After(p.to) {
				return
			}
			recallOne(l)
		})

	case p.lines > 0:
		count := 0
		wld.History.Each(func(l *line.Line) {
			if count >= p.lines {
				return
			}
			if l.Created.Before(p.from) {
				return
			}
			count++
			recallOne(l)
		})

	case p.lines < 0:
		want := -p.lines
		var start *line.Line
		seen := 0
		wld.History.EachReverse(func(l *line.Line) bool {
			if l.Created.After(p.from) {
				return true
			}
			start = l
			seen++
			return seen < want
		})
		if start == nil {
			start = wld.History.Peek()
		}
		count := 0
		reached := false
		wld.History.Each(func(l *line.Line) {
			if !reached {
				if l != start {
					return
				}
				reached = true
			}
			if l.Created.After(p.from) {
				return
			}
			if count >= seen {
				return
			}
			count++
			recallOne(l)
		})
	}

	return inPeriod, matched
}
