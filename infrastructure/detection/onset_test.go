package detection

import (
	"math"
	"math/rand"
	"testing"

	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clicks returns silence with a short noise burst at each offset
func clicks(sampleRate int, seconds float64, at ...float64) []float32 {
	rng := rand.New(rand.NewSource(7))
	samples := make([]float32, int(seconds*float64(sampleRate)))
	burst := sampleRate / 100
	for _, t := range at {
		start := int(t * float64(sampleRate))
		for i := start; i < start+burst && i < len(samples); i++ {
			samples[i] = float32(rng.Float64()*1.6 - 0.8)
		}
	}
	return samples
}

func TestOnsetPeakDetector_Clicks(t *testing.T) {
	detector := NewOnsetDetector(detection.DefaultThresholds())
	chunk := video.AudioChunk{
		Window:     video.ChunkWindow{Index: 1, Start: 110, End: 120},
		Samples:    clicks(video.DefaultSampleRate, 10, 2, 5, 8),
		SampleRate: video.DefaultSampleRate,
	}

	events := detector.Detect(chunk)

	require.Len(t, events, 3)
	for i, want := range []float64{112, 115, 118} {
		assert.Equal(t, detection.AudioPeak, events[i].Kind)
		assert.InDelta(t, want, events[i].Seconds, 0.1, "peak %d", i)
	}
}

func TestFrameSeconds(t *testing.T) {
	// frame 173 at 44.1 kHz is 173*512 samples into the window
	got := frameSeconds(173, video.DefaultSampleRate, 110)
	assert.InDelta(t, 112.0085, got, 1e-4)

	// dividing the bare frame index by the rate would land just after the window start
	assert.Greater(t, got-(173.0/video.DefaultSampleRate+110), 2.0)

	assert.Equal(t, 0.0, frameSeconds(0, video.DefaultSampleRate, 0))
	assert.InDelta(t, 30.0+512.0/22050, frameSeconds(1, 22050, 30), 1e-9)
}

func TestOnsetPeakDetector_Silence(t *testing.T) {
	detector := NewOnsetDetector(detection.DefaultThresholds())
	chunk := video.AudioChunk{
		Samples:    make([]float32, video.DefaultSampleRate*5),
		SampleRate: video.DefaultSampleRate,
	}

	assert.Empty(t, detector.Detect(chunk))
}

func TestOnsetPeakDetector_EmptyChunk(t *testing.T) {
	detector := NewOnsetDetector(detection.DefaultThresholds())

	assert.Nil(t, detector.Detect(video.AudioChunk{SampleRate: video.DefaultSampleRate}))
	assert.Nil(t, detector.Detect(video.AudioChunk{Samples: []float32{0.1}}))
}

func TestOnsetPeakDetector_EnvelopeLength(t *testing.T) {
	detector := NewOnsetDetector(detection.DefaultThresholds())
	samples := clicks(22050, 3, 1)

	envelope := detector.Envelope(samples, 22050)

	assert.Len(t, envelope, 1+len(samples)/HopLength)
	for _, v := range envelope {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestMelFilterBank(t *testing.T) {
	filters := melFilterBank(44100, FFTSize, MelBands)
	require.Len(t, filters, MelBands)

	prevFirst := -1
	for b, f := range filters {
		assert.GreaterOrEqual(t, f.first, prevFirst, "band %d starts before band %d", b, b-1)
		assert.LessOrEqual(t, f.first+len(f.weights), FFTSize/2+1)
		prevFirst = f.first
	}
	assert.NotEmpty(t, filters[MelBands-1].weights)
}

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 200, 999, 1000, 4000, 22050} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-9)
}

func TestHann(t *testing.T) {
	w := hann(8)
	assert.Equal(t, 0.0, w[0])
	assert.InDelta(t, 1.0, w[4], 1e-12)
	assert.InDelta(t, w[1], w[7], 1e-12)
	assert.False(t, math.IsNaN(w[3]))
}
