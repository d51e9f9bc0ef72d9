package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expr is a parsed 5-field classic cron expression (minute, hour,
// day-of-month, month, day-of-week), supporting "*", comma lists and
// "a-b" ranges, spec.md §4.A. Resolution is one minute.
type Expr struct {
	minute, hour, dom, month, dow fieldSet
}

// fieldSet is a membership set over one cron field's valid range.
type fieldSet map[int]bool

func (f fieldSet) match(v int) bool {
	if f == nil {
		return true // "*" — no restriction
	}
	return f[v]
}

// Parse parses a 5-field cron expression, e.g. "5 * * * *" or
// "0,30 9-17 * * 1-5".
func Parse(expr string) (Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Expr{}, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(fields), expr)
	}
	ranges := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	var out [5]fieldSet
	for i, f := range fields {
		set, err := parseField(f, ranges[i][0], ranges[i][1])
		if err != nil {
			return Expr{}, fmt.Errorf("cron: field %d (%q): %w", i, f, err)
		}
		out[i] = set
	}
	return Expr{minute: out[0], hour: out[1], dom: out[2], month: out[3], dow: out[4]}, nil
}

func parseField(f string, lo, hi int) (fieldSet, error) {
	if f == "*" {
		return nil, nil
	}
	set := fieldSet{}
	for _, part := range strings.Split(f, ",") {
		if a, b, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(a)
			if err != nil {
				return nil, err
			}
			end, err := strconv.Atoi(b)
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			for v := start; v <= end; v++ {
				set[v] = true
			}
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if v < lo || v > hi {
			return nil, fmt.Errorf("value %d out of range [%d,%d]", v, lo, hi)
		}
		set[v] = true
	}
	return set, nil
}

// Matches reports whether t falls within the expression, at minute
// resolution.
func (e Expr) Matches(t time.Time) bool {
	return e.minute.match(t.Minute()) &&
		e.hour.match(t.Hour()) &&
		e.dom.match(t.Day()) &&
		e.month.match(int(t.Month())) &&
		e.dow.match(int(t.Weekday()))
}

// minuteBucket reduces an instant to a minute-resolution integer, used to
// suppress double-firing within the same minute (spec.md §4.A, §9 Design
// Notes "every.last_run sentinel").
func minuteBucket(t time.Time) int64 {
	return t.Unix() / 60
}

// Gate tracks the last minute an Expr fired for one service, so the
// scheduler's skip policy (spec.md §4.H.1) only admits a service once per
// matched minute even if the validation loop runs more than once within
// it.
type Gate struct {
	expr        Expr
	negate      bool
	lastMatched int64
	initialized bool
}

// NewGate builds a Gate for a cron rule; negate inverts the match sense for
// ScheduleCronNot ("does NOT match cron expression").
func NewGate(expr Expr, negate bool) *Gate {
	return &Gate{expr: expr, negate: negate, lastMatched: -1}
}

// Admit reports whether now should be evaluated, and records the minute if
// so. Calling Admit twice within the same minute returns false the second
// time (spec.md §8 scenario 2: 14:05:58 is not re-evaluated after 14:05:07
// already matched).
func (g *Gate) Admit(now time.Time) bool {
	matched := g.expr.Matches(now)
	if g.negate {
		matched = !matched
	}
	if !matched {
		return false
	}
	bucket := minuteBucket(now)
	if g.initialized && bucket == g.lastMatched {
		return false
	}
	g.lastMatched = bucket
	g.initialized = true
	return true
}
