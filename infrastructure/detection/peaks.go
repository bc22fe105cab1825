package detection

import "math"

// PeakPicker selects local maxima of an onset envelope.
//
// Frame n is a peak when all of the following hold:
//   - x[n] > 0 and x[n] == max(x[n-PreMax : n+PostMax])
//   - x[n] >= mean(x[n-PreAvg : n+PostAvg]) + Delta
//   - n is more than Wait frames after the previous peak
//
// Windows are half-open, always contain n and are clipped to the envelope.
type PeakPicker struct {
	PreMax  int
	PostMax int
	PreAvg  int
	PostAvg int
	Delta   float64
	Wait    int
}

// Pick returns the indices of the peaks in x in ascending order
func (p PeakPicker) Pick(x []float64) []int {
	n := len(x)
	if n == 0 {
		return nil
	}

	// prefix sums for the moving average
	prefix := make([]float64, n+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}

	var peaks []int
	last := math.MinInt / 2
	for i, v := range x {
		if v <= 0 {
			continue
		}
		if v != windowMax(x, clip(i-p.PreMax, n), clip(max(i+p.PostMax, i+1), n)) {
			continue
		}

		lo, hi := clip(i-p.PreAvg, n), clip(max(i+p.PostAvg, i+1), n)
		mean := (prefix[hi] - prefix[lo]) / float64(hi-lo)
		if v < mean+p.Delta {
			continue
		}

		if i > last+p.Wait {
			peaks = append(peaks, i)
			last = i
		}
	}
	return peaks
}

// windowMax returns max(x[lo:hi]); the window is never empty
func windowMax(x []float64, lo, hi int) float64 {
	m := x[lo]
	for _, v := range x[lo+1 : hi] {
		if v > m {
			m = v
		}
	}
	return m
}

func clip(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
