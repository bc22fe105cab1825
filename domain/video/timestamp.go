package video

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Timestamp represents a position in a video in MM:SS format.
// There is no hours component: 61 minutes renders as "61:01".
type Timestamp struct {
	Minutes int
	Seconds int
}

// timestampRegex matches MM:SS format, allowing a wider minutes field
var timestampRegex = regexp.MustCompile(`^(\d{2,}):(\d{2})$`)

// TimestampFromSeconds truncates a position in seconds to whole seconds
// and splits it into minutes and seconds
func TimestampFromSeconds(seconds float64) Timestamp {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	whole := int(math.Floor(seconds))
	return Timestamp{
		Minutes: whole / 60,
		Seconds: whole % 60,
	}
}

// FormatSeconds renders seconds as a zero-padded MM:SS string
func FormatSeconds(seconds float64) string {
	return TimestampFromSeconds(seconds).String()
}

// ParseTimestamp parses a timestamp string in MM:SS format
func ParseTimestamp(s string) (Timestamp, error) {
	matches := timestampRegex.FindStringSubmatch(s)
	if matches == nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp format %q: expected MM:SS", s)
	}

	minutes, err := strconv.Atoi(matches[1])
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	seconds, _ := strconv.Atoi(matches[2])

	if seconds > 59 {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: seconds must be 0-59", s)
	}

	return Timestamp{
		Minutes: minutes,
		Seconds: seconds,
	}, nil
}

// String returns the timestamp in MM:SS format
func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d", t.Minutes, t.Seconds)
}

// TotalSeconds returns the timestamp as total seconds
func (t Timestamp) TotalSeconds() int {
	return t.Minutes*60 + t.Seconds
}

// Before returns true if t is before other
func (t Timestamp) Before(other Timestamp) bool {
	return t.TotalSeconds() < other.TotalSeconds()
}
