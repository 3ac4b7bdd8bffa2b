package tariff

import (
	"fmt"
	"time"
)

// ClockMinute is a wall-clock time of day expressed as minutes since
// midnight, in [0, 1440).
type ClockMinute int

const minutesPerDay = 24 * 60

// ParseClock parses an "HH:MM" string into a ClockMinute.
func ParseClock(s string) (ClockMinute, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return ClockMinute(h*60 + m), nil
}

func (c ClockMinute) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// TimeWindow is a recurring daily interval defined by wall-clock minutes.
// A window whose end is not after its start wraps across midnight.
// Immutable once constructed.
type TimeWindow struct {
	Start ClockMinute `json:"start"`
	End   ClockMinute `json:"end"`
}

// ParseWindow builds a TimeWindow from "HH:MM" start and end strings.
func ParseWindow(start, end string) (TimeWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	return TimeWindow{Start: s, End: e}, nil
}

// Matches reports whether the instant falls inside the window. Only the
// minute of day is considered; the date is irrelevant. The start bound is
// inclusive and the end bound exclusive. A zero-length window (start == end)
// never matches.
func (w TimeWindow) Matches(t time.Time) bool {
	m := ClockMinute(t.Hour()*60 + t.Minute())
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return m >= w.Start && m < w.End
	default: // wraps across midnight
		return m >= w.Start || m < w.End
	}
}
