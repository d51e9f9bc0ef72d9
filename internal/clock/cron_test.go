package clock

import (
	"testing"
	"time"
)

func TestExprMatches(t *testing.T) {
	expr, err := Parse("5 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cases := []struct {
		at   string
		want bool
	}{
		{"2024-01-01T14:04:59Z", false},
		{"2024-01-01T14:05:07Z", true},
		{"2024-01-01T14:05:58Z", true}, // Matches doesn't dedupe, Gate does
		{"2024-01-01T14:06:00Z", false},
	}
	for _, c := range cases {
		at, err := time.Parse(time.RFC3339, c.at)
		if err != nil {
			t.Fatal(err)
		}
		if got := expr.Matches(at); got != c.want {
			t.Errorf("Matches(%s) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestGateSuppressesDoubleFire(t *testing.T) {
	expr, err := Parse("5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	g := NewGate(expr, false)

	t1, _ := time.Parse(time.RFC3339, "2024-01-01T14:04:59Z")
	if g.Admit(t1) {
		t.Fatalf("expected skip at %s", t1)
	}

	t2, _ := time.Parse(time.RFC3339, "2024-01-01T14:05:07Z")
	if !g.Admit(t2) {
		t.Fatalf("expected admit at %s", t2)
	}

	t3, _ := time.Parse(time.RFC3339, "2024-01-01T14:05:58Z")
	if g.Admit(t3) {
		t.Fatalf("expected skip (already matched this minute) at %s", t3)
	}

	t4, _ := time.Parse(time.RFC3339, "2024-01-01T15:05:02Z")
	if !g.Admit(t4) {
		t.Fatalf("expected admit at next hour's matching minute %s", t4)
	}
}

func TestParseRangeAndList(t *testing.T) {
	expr, err := Parse("0,30 9-17 * * 1-5")
	if err != nil {
		t.Fatal(err)
	}
	mon9am, _ := time.Parse(time.RFC3339, "2024-01-01T09:00:00Z") // Monday
	if !expr.Matches(mon9am) {
		t.Fatalf("expected match for %s", mon9am)
	}
	sat9am, _ := time.Parse(time.RFC3339, "2024-01-06T09:00:00Z") // Saturday
	if expr.Matches(sat9am) {
		t.Fatalf("expected no match for %s (weekend)", sat9am)
	}
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	if _, err := Parse("* * *"); err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
}
