package detection

import (
	"math"
	"sort"
)

// CombineEvents unions scene and audio events into one strictly increasing
// sequence. Events with exactly equal timestamps collapse into one; the
// scene change wins so the provenance is deterministic.
func CombineEvents(scene, audio []TimedEvent) []TimedEvent {
	all := make([]TimedEvent, 0, len(scene)+len(audio))
	all = append(all, scene...)
	all = append(all, audio...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Seconds != all[j].Seconds {
			return all[i].Seconds < all[j].Seconds
		}
		return all[i].Kind == SceneChange && all[j].Kind != SceneChange
	})

	combined := all[:0]
	for _, ev := range all {
		if math.IsNaN(ev.Seconds) {
			continue
		}
		if len(combined) > 0 && combined[len(combined)-1].Seconds == ev.Seconds {
			continue
		}
		combined = append(combined, ev)
	}
	return combined
}

// QuantizeAudioPeaks rounds peak timestamps to the given resolution and
// removes exact duplicates, keeping the input order otherwise
func QuantizeAudioPeaks(events []TimedEvent, resolution float64) []TimedEvent {
	if resolution <= 0 {
		return events
	}
	scale := 1 / resolution
	seen := make(map[float64]bool, len(events))
	out := make([]TimedEvent, 0, len(events))
	for _, ev := range events {
		q := math.Round(ev.Seconds*scale) / scale
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, TimedEvent{Kind: ev.Kind, Seconds: q})
	}
	return out
}

// CountByKind tallies events per signal
func CountByKind(events []TimedEvent) map[EventKind]int {
	counts := make(map[EventKind]int, 2)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	return counts
}
