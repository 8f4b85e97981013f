package recall

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parser holds the recursive-descent state for one recall query.
type parser struct {
	s        string
	pos, end int
	word     string

	now        time.Time
	seenFrom   bool
	seenTo     bool
	seenSearch bool

	when time.Time

	from, to time.Time
	lines    int
	search   []string
}

// nextWord advances to the next whitespace-delimited word in p.s,
// starting the scan at p.end. An empty word means end of string.
func (p *parser) nextWord() {
	i := p.end
	for i < len(p.s) && p.s[i] == ' ' {
		i++
	}
	start := i
	for i < len(p.s) && p.s[i] != ' ' {
		i++
	}
	p.pos, p.end = start, i
	p.word = p.s[start:i]
}

// parse runs the full keyword loop over query, reporting the first
// error encountered (already phrased for display to the client).
func (p *parser) parse(query string) error {
	p.s = query
	p.pos, p.end = 0, 0
	p.nextWord()

	for p.word != "" {
		switch strings.ToLower(p.word) {
		case "from":
			if p.seenFrom {
				return fmt.Errorf("Keyword `from' may appear only once.")
			}
			p.seenFrom = true
			if err := p.parseKeywordFrom(); err != nil {
				return err
			}
		case "to":
			if p.seenTo {
				return fmt.Errorf("Keyword `to' may appear only once.")
			}
			p.seenTo = true
			if err := p.parseKeywordTo(); err != nil {
				return err
			}
		case "search":
			if p.seenSearch {
				return fmt.Errorf("Keyword `search' may appear only once.")
			}
			p.seenSearch = true
			if err := p.parseKeywordSearch(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("Unrecognized keyword `%s'.", p.word)
		}
	}

	return nil
}

// parseKeywordFrom parses the sequence of timespecs following "from",
// each one relative to the previous (so "from yesterday -1 hours"
// means one hour before midnight yesterday).
func (p *parser) parseKeywordFrom() error {
	if p.seenTo {
		return fmt.Errorf("The `from' keyword may not appear after the `to' keyword.")
	}

	p.nextWord()
	p.when = p.now

	if p.word == "" {
		return fmt.Errorf("Missing timespec after `from' keyword.")
	}

	for i := 0; ; i++ {
		ok, err := p.parseWhen(false)
		if err != nil {
			return err
		}
		if !ok {
			if i == 0 {
				return fmt.Errorf("Invalid timespec: %s.", p.word)
			}
			return nil
		}
		p.from = p.when
	}
}

// parseKeywordTo parses the sequence of timespecs following "to". Its
// relative timespecs are always anchored to now, independent of any
// "from" already parsed, so "from -30 secs to -10 secs" issued at t
// selects the window [t-30, t-10] rather than [t-30, t-40]. The lines
// modifier is accepted only as the lone timespec here (lma = "lines
// modifier allowed" on the first iteration).
func (p *parser) parseKeywordTo() error {
	p.when = p.now

	p.nextWord()

	if p.word == "" {
		return fmt.Errorf("Missing timespec after `to' keyword.")
	}

	for i := 0; ; i++ {
		ok, err := p.parseWhen(i == 0)
		if err != nil {
			return err
		}
		if !ok {
			if i == 0 {
				return fmt.Errorf("Invalid timespec: %s.", p.word)
			}
			return nil
		}
		if p.lines != 0 {
			return nil
		}
		p.to = p.when
	}
}

// parseKeywordSearch consumes the remainder of the query verbatim as
// the search string and compiles it into match fragments.
func (p *parser) parseKeywordSearch() error {
	p.nextWord()
	if p.word == "" {
		return fmt.Errorf("Missing search string after `search' keyword.")
	}
	start := p.pos

	p.search = compilePattern(p.s[start:])

	for p.word != "" {
		p.nextWord()
	}
	return nil
}

// parseWhen parses one timespec at the current word. ok=false with
// err=nil means the current word is not a timespec at all (the caller
// treats it as the next token, typically a keyword); err!=nil is a
// genuine validation failure that always propagates regardless of
// position.
func (p *parser) parseWhen(lma bool) (ok bool, err error) {
	if p.word != "" && (p.word[0] == '-' || p.word[0] == '+') {
		return p.parseWhenRelative(lma)
	}
	return p.parseWhenAbsolute()
}

// relativeModifiers lists the recognized unit words for a relative
// timespec, in match-priority order; a typed modifier need only be a
// prefix of one of these to resolve to it.
var relativeModifiers = []struct {
	word, unit string
}{
	{"seconds", "seconds"}, {"secs", "seconds"},
	{"minutes", "minutes"}, {"mins", "minutes"},
	{"hours", "hours"}, {"hrs", "hours"},
	{"days", "days"},
	{"lines", "lines"},
}

func matchModifierPrefix(typed string) (string, bool) {
	lower := strings.ToLower(typed)
	for _, m := range relativeModifiers {
		if strings.HasPrefix(m.word, lower) {
			return m.unit, true
		}
	}
	return "", false
}

// parseWhenRelative parses a "{+|-}N unit" timespec, e.g. "-30 secs".
// The sign, the digits and the modifier may each spill into the
// following word when nothing is left in the current one, mirroring
// parse_when_relative's three separate "read the next word" points.
func (p *parser) parseWhenRelative(lma bool) (bool, error) {
	word := p.word
	if word == "" || (word[0] != '-' && word[0] != '+') {
		return false, nil
	}

	dir := int64(-1)
	if word[0] == '+' {
		dir = 1
	}

	str := word[1:]
	if str == "" {
		p.nextWord()
		str = p.word
	}

	if str == "" || str[0] < '0' || str[0] > '9' {
		return false, fmt.Errorf("Invalid relative timespec: %s.", p.word)
	}

	var n int64
	i := 0
	for i < len(str) && str[i] >= '0' && str[i] <= '9' {
		n = n*10 + int64(str[i]-'0')
		i++
	}
	if n == 0 {
		return false, fmt.Errorf("Number should be non-zero: %s.", p.word)
	}

	str = str[i:]
	if str == "" {
		p.nextWord()
		str = p.word
	}
	if str == "" {
		return false, fmt.Errorf("Missing modifier to relative timespec.")
	}

	unit, ok := matchModifierPrefix(str)
	if !ok {
		return false, fmt.Errorf("Invalid modifier to relative timespec: %s.", str)
	}

	switch unit {
	case "seconds":
		p.when = p.when.Add(time.Duration(dir*n) * time.Second)
	case "minutes":
		p.when = p.when.Add(time.Duration(dir*n) * time.Minute)
	case "hours":
		p.when = p.when.Add(time.Duration(dir*n) * time.Hour)
	case "days":
		p.when = p.when.AddDate(0, 0, int(dir*n))
	case "lines":
		p.lines = int(dir * n)
	}

	if p.lines != 0 && !lma {
		return false, fmt.Errorf("The `lines' modifier may only be used alone with the `to' keyword.")
	}

	p.nextWord()
	return true, nil
}

func (p *parser) parseWhenAbsolute() (bool, error) {
	lower := strings.ToLower(p.word)

	switch lower {
	case "now":
		p.when = p.now
		p.nextWord()
		return true, nil
	case "today":
		p.when = truncateToDay(p.now)
		p.nextWord()
		return true, nil
	case "yesterday":
		p.when = truncateToDay(p.now).AddDate(0, 0, -1)
		p.nextWord()
		return true, nil
	}

	if lower == "next" || lower == "last" {
		return p.parseWhenWeekday(lower == "next")
	}

	if ok, err := p.parseWhenAbsDate(); ok || err != nil {
		return ok, err
	}
	if ok, err := p.parseWhenAbsTime(); ok || err != nil {
		return ok, err
	}

	return false, nil
}

// parseWhenWeekday parses "next <weekday>" or "last <weekday>",
// seeking strictly forward or backward from the current p.when.
func (p *parser) parseWhenWeekday(next bool) (bool, error) {
	p.nextWord()
	wd, ok := weekdayNames[strings.ToLower(p.word)]
	if !ok {
		if next {
			return false, fmt.Errorf("Expecting a week day after `next'.")
		}
		return false, fmt.Errorf("Expecting a week day after `last'.")
	}

	base := truncateToDay(p.when)
	if next {
		delta := (int(wd) - int(base.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		p.when = base.AddDate(0, 0, delta)
	} else {
		delta := (int(base.Weekday()) - int(wd) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		p.when = base.AddDate(0, 0, -delta)
	}

	p.nextWord()
	return true, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// parseWhenAbsDate parses "MM/DD" or "YY/MM/DD".
func (p *parser) parseWhenAbsDate() (bool, error) {
	parts := strings.Split(p.word, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return false, nil
	}
	nums := make([]int, len(parts))
	for i, s := range parts {
		v, err := strconv.Atoi(s)
		if err != nil {
			return false, nil
		}
		nums[i] = v
	}

	year, _, _ := p.when.Date()
	var month time.Month
	var day int

	if len(nums) == 2 {
		month, day = time.Month(nums[0]), nums[1]
	} else {
		month, day = time.Month(nums[1]), nums[2]
		yy := nums[0]
		if yy < 70 {
			year = 2000 + yy
		} else {
			year = 1900 + yy
		}
	}

	if month < 1 || month > 12 {
		return false, fmt.Errorf("Months should be in the range 1 to 12.")
	}
	if day < 1 || day > 31 {
		return false, fmt.Errorf("Days should be in the range 1 to 31.")
	}

	p.when = time.Date(year, month, day, 0, 0, 0, 0, p.when.Location())
	p.nextWord()
	return true, nil
}

// parseWhenAbsTime parses "HH:MM" or "HH:MM:SS".
func (p *parser) parseWhenAbsTime() (bool, error) {
	parts := strings.Split(p.word, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return false, nil
	}
	nums := make([]int, len(parts))
	for i, s := range parts {
		v, err := strconv.Atoi(s)
		if err != nil {
			return false, nil
		}
		nums[i] = v
	}

	hour, min := nums[0], nums[1]
	sec := 0
	if len(nums) == 3 {
		sec = nums[2]
	}

	if hour < 0 || hour > 23 {
		return false, fmt.Errorf("Hours should be in the range 0 to 23.")
	}
	if min < 0 || min > 59 {
		return false, fmt.Errorf("Minutes should be in the range 0 to 59.")
	}
	if sec < 0 || sec > 59 {
		return false, fmt.Errorf("Seconds should be in the range 0 to 59.")
	}

	y, m, d := p.when.Date()
	p.when = time.Date(y, m, d, hour, min, sec, 0, p.when.Location())
	p.nextWord()
	return true, nil
}
