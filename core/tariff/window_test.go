package tariff

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 4, hour, min, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    ClockMinute
		wantErr bool
	}{
		{"00:00", 0, false},
		{"22:00", 1320, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"garbage", 0, true},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseClock(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestWindowMatchesSameDay(t *testing.T) {
	w, err := ParseWindow("08:00", "12:00")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	cases := []struct {
		at   time.Time
		want bool
	}{
		{at(7, 59), false},
		{at(8, 0), true}, // start inclusive
		{at(11, 59), true},
		{at(12, 0), false}, // end exclusive
		{at(20, 0), false},
	}
	for _, c := range cases {
		if got := w.Matches(c.at); got != c.want {
			t.Errorf("Matches(%s) = %v, want %v", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestWindowMatchesMidnightWrap(t *testing.T) {
	w, err := ParseWindow("22:00", "06:00")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	cases := []struct {
		at   time.Time
		want bool
	}{
		{at(21, 59), false},
		{at(22, 0), true},
		{at(23, 59), true},
		{at(0, 0), true},
		{at(0, 1), true},
		{at(5, 59), true},
		{at(6, 0), false},
		{at(12, 0), false},
	}
	for _, c := range cases {
		if got := w.Matches(c.at); got != c.want {
			t.Errorf("Matches(%s) = %v, want %v", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestWindowZeroLengthNeverMatches(t *testing.T) {
	w := TimeWindow{Start: 600, End: 600}
	for hour := 0; hour < 24; hour++ {
		if w.Matches(at(hour, 0)) {
			t.Fatalf("zero-length window matched %02d:00", hour)
		}
	}
}

func TestWindowIgnoresDate(t *testing.T) {
	w, _ := ParseWindow("22:00", "06:00")
	a := time.Date(2020, time.January, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2031, time.December, 25, 23, 0, 0, 0, time.UTC)
	if !w.Matches(a) || !w.Matches(b) {
		t.Fatalf("matching should depend only on the minute of day")
	}
}
