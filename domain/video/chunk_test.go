package video

import (
	"math"
	"testing"
)

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name       string
		duration   float64
		chunk      float64
		overlap    float64
		wantStarts []float64
		wantEnds   []float64
	}{
		{
			name:       "shorter than one chunk",
			duration:   45,
			chunk:      120,
			overlap:    10,
			wantStarts: []float64{0},
			wantEnds:   []float64{45},
		},
		{
			name:       "default windows over 250s",
			duration:   250,
			chunk:      120,
			overlap:    10,
			wantStarts: []float64{0, 110, 220},
			wantEnds:   []float64{120, 230, 250},
		},
		{
			name:       "no overlap",
			duration:   240,
			chunk:      120,
			overlap:    0,
			wantStarts: []float64{0, 120},
			wantEnds:   []float64{120, 240},
		},
		{
			name:     "zero duration",
			duration: 0,
			chunk:    120,
			overlap:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanChunks(tt.duration, tt.chunk, tt.overlap)
			if err != nil {
				t.Fatalf("PlanChunks() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantStarts) {
				t.Fatalf("PlanChunks() returned %d windows, want %d", len(got), len(tt.wantStarts))
			}
			for i, w := range got {
				if w.Index != i {
					t.Errorf("window %d Index = %d", i, w.Index)
				}
				if w.Start != tt.wantStarts[i] || w.End != tt.wantEnds[i] {
					t.Errorf("window %d = [%v, %v), want [%v, %v)", i, w.Start, w.End, tt.wantStarts[i], tt.wantEnds[i])
				}
			}
		})
	}
}

func TestPlanChunks_InvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		chunk   float64
		overlap float64
	}{
		{"zero chunk", 0, 0},
		{"negative overlap", 120, -1},
		{"overlap equals chunk", 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PlanChunks(300, tt.chunk, tt.overlap); err == nil {
				t.Errorf("PlanChunks(300, %v, %v) expected error", tt.chunk, tt.overlap)
			}
		})
	}
}

func TestPlanChunks_OwnedRangesTileTimeline(t *testing.T) {
	windows, err := PlanChunks(1000, 120, 10)
	if err != nil {
		t.Fatalf("PlanChunks() unexpected error: %v", err)
	}

	if windows[0].OwnedStart != 0 {
		t.Errorf("first window OwnedStart = %v, want 0", windows[0].OwnedStart)
	}
	if !math.IsInf(windows[len(windows)-1].OwnedEnd, 1) {
		t.Errorf("last window OwnedEnd = %v, want +Inf", windows[len(windows)-1].OwnedEnd)
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].OwnedStart != windows[i-1].OwnedEnd {
			t.Errorf("gap between owned ranges %d and %d: %v != %v", i-1, i, windows[i-1].OwnedEnd, windows[i].OwnedStart)
		}
		// the split point sits inside the overlap
		if windows[i].OwnedStart <= windows[i].Start || windows[i].OwnedStart >= windows[i-1].End {
			t.Errorf("split point %v outside overlap [%v, %v)", windows[i].OwnedStart, windows[i].Start, windows[i-1].End)
		}
	}

	// every timestamp belongs to exactly one window
	for _, ts := range []float64{0, 114.9, 115, 500, 999.9} {
		owners := 0
		for _, w := range windows {
			if w.Owns(ts) {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("timestamp %v owned by %d windows, want 1", ts, owners)
		}
	}
}

func TestSource_Duration(t *testing.T) {
	src := Source{FrameRate: 25, FrameCount: 2500}
	if got := src.Duration(); got != 100 {
		t.Errorf("Duration() = %v, want 100", got)
	}

	if got := (Source{FrameCount: 10}).Duration(); got != 0 {
		t.Errorf("Duration() without frame rate = %v, want 0", got)
	}
}

func TestAudioChunk_Seconds(t *testing.T) {
	chunk := AudioChunk{Samples: make([]float32, 88200), SampleRate: 44100}
	if got := chunk.Seconds(); got != 2 {
		t.Errorf("Seconds() = %v, want 2", got)
	}
}
