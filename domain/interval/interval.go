// Package interval turns fused detection events into skip intervals.
package interval

import (
	"fmt"

	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"
)

// Interval is a candidate skip range in seconds
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the length of the interval in seconds
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", i.Start, i.End)
}

// Formatted is the externally visible interval with MM:SS bounds
type Formatted struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Synthesize emits a raw interval for every pair of adjacent combined events
// further apart than minDuration. A long stretch with neither a scene change
// nor an audio onset is itself the signal.
func Synthesize(events []detection.TimedEvent, minDuration float64) []Interval {
	var raw []Interval
	for i := 0; i+1 < len(events); i++ {
		iv := Interval{Start: events[i].Seconds, End: events[i+1].Seconds}
		if iv.Duration() > minDuration {
			raw = append(raw, iv)
		}
	}
	return raw
}

// Merge coalesces start-sorted intervals whose boundaries are within maxGap.
// The end of the running interval only ever grows. Re-merging the output
// is a no-op.
func Merge(intervals []Interval, maxGap float64) []Interval {
	var merged []Interval
	for _, next := range intervals {
		if len(merged) == 0 || next.Start > merged[len(merged)-1].End+maxGap {
			merged = append(merged, next)
			continue
		}
		last := &merged[len(merged)-1]
		if next.End > last.End {
			last.End = next.End
		}
	}
	return merged
}

// Format renders intervals with MM:SS bounds. The result is never nil.
func Format(intervals []Interval) []Formatted {
	out := make([]Formatted, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, Formatted{
			Start: video.FormatSeconds(iv.Start),
			End:   video.FormatSeconds(iv.End),
		})
	}
	return out
}

// Parse converts formatted intervals back to whole-second intervals
func Parse(formatted []Formatted) ([]Interval, error) {
	out := make([]Interval, 0, len(formatted))
	for i, f := range formatted {
		start, err := video.ParseTimestamp(f.Start)
		if err != nil {
			return nil, fmt.Errorf("interval %d start: %w", i, err)
		}
		end, err := video.ParseTimestamp(f.End)
		if err != nil {
			return nil, fmt.Errorf("interval %d end: %w", i, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("interval %d ends (%s) before it starts (%s)", i, f.End, f.Start)
		}
		out = append(out, Interval{Start: float64(start.TotalSeconds()), End: float64(end.TotalSeconds())})
	}
	return out, nil
}
