package detection

import (
	"math"
	"math/cmplx"

	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the STFT frame length in samples
	FFTSize = 2048

	// HopLength is the distance between STFT frames in samples
	HopLength = 512

	// MelBands is the number of mel filters summarised by the envelope
	MelBands = 128

	// topDB floors the log spectrogram this far below its maximum
	topDB = 80.0

	// amin keeps log10 away from zero
	amin = 1e-10
)

// OnsetPeakDetector implements detection.OnsetDetector.
// It builds a spectral-flux onset envelope from a mel spectrogram and
// picks its local maxima.
type OnsetPeakDetector struct {
	picker PeakPicker
	fft    *fourier.FFT
	window []float64

	// filters are built lazily per sample rate
	filters map[int][]melFilter
}

// NewOnsetDetector creates a detector using the peak picking knobs in t
func NewOnsetDetector(t detection.Thresholds) *OnsetPeakDetector {
	return &OnsetPeakDetector{
		picker: PeakPicker{
			PreMax:  t.PreMax,
			PostMax: t.PostMax,
			PreAvg:  t.PreAvg,
			PostAvg: t.PostAvg,
			Delta:   t.AudioDelta,
			Wait:    t.AudioWait,
		},
		fft:     fourier.NewFFT(FFTSize),
		window:  hann(FFTSize),
		filters: make(map[int][]melFilter),
	}
}

// Detect implements detection.OnsetDetector. It is not safe for concurrent
// use; the orchestrator gives each worker its own detector.
func (d *OnsetPeakDetector) Detect(chunk video.AudioChunk) []detection.TimedEvent {
	if len(chunk.Samples) == 0 || chunk.SampleRate <= 0 {
		return nil
	}

	envelope := d.Envelope(chunk.Samples, chunk.SampleRate)
	frames := d.picker.Pick(envelope)

	events := make([]detection.TimedEvent, 0, len(frames))
	for _, f := range frames {
		events = append(events, detection.AudioPeakAt(frameSeconds(f, chunk.SampleRate, chunk.Window.Start)))
	}
	return events
}

// frameSeconds maps an envelope frame to absolute video time. Frames are
// HopLength samples apart, so the frame index is scaled to samples before
// dividing by the rate.
func frameSeconds(frame, sampleRate int, windowStart float64) float64 {
	return float64(frame*HopLength)/float64(sampleRate) + windowStart
}

// Envelope returns the onset strength of every STFT frame of samples
func (d *OnsetPeakDetector) Envelope(samples []float32, sampleRate int) []float64 {
	mel := d.melSpectrogram(samples, sampleRate)
	if len(mel) == 0 {
		return nil
	}
	toDecibels(mel)

	// flux[t] compares frame t with t-1; the envelope is delayed so each
	// value lines up with the centre of the frame that produced it
	delay := 1 + FFTSize/(2*HopLength)
	envelope := make([]float64, len(mel))
	for t := 1; t < len(mel); t++ {
		j := t - 1 + delay
		if j >= len(envelope) {
			break
		}
		var sum float64
		for b := range mel[t] {
			if diff := mel[t][b] - mel[t-1][b]; diff > 0 {
				sum += diff
			}
		}
		envelope[j] = sum / float64(len(mel[t]))
	}
	return envelope
}

// melSpectrogram runs a centred STFT and projects each power spectrum onto
// the mel filter bank
func (d *OnsetPeakDetector) melSpectrogram(samples []float32, sampleRate int) [][]float64 {
	filters, ok := d.filters[sampleRate]
	if !ok {
		filters = melFilterBank(sampleRate, FFTSize, MelBands)
		d.filters[sampleRate] = filters
	}

	pad := FFTSize / 2
	frames := 1 + len(samples)/HopLength
	out := make([][]float64, frames)

	buf := make([]float64, FFTSize)
	coeffs := make([]complex128, FFTSize/2+1)
	power := make([]float64, FFTSize/2+1)

	for t := 0; t < frames; t++ {
		start := t*HopLength - pad
		for k := range buf {
			i := start + k
			if i >= 0 && i < len(samples) {
				buf[k] = float64(samples[i]) * d.window[k]
			} else {
				buf[k] = 0
			}
		}
		coeffs = d.fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			m := cmplx.Abs(c)
			power[k] = m * m
		}

		row := make([]float64, len(filters))
		for b, f := range filters {
			var sum float64
			for k, w := range f.weights {
				sum += w * power[f.first+k]
			}
			row[b] = sum
		}
		out[t] = row
	}
	return out
}

// toDecibels converts power to dB relative to the maximum, floored at -topDB
func toDecibels(s [][]float64) {
	peak := amin
	for _, row := range s {
		for _, v := range row {
			peak = math.Max(peak, v)
		}
	}
	ref := 10 * math.Log10(peak)

	maxDB := math.Inf(-1)
	for _, row := range s {
		for i, v := range row {
			row[i] = 10*math.Log10(math.Max(amin, v)) - ref
			maxDB = math.Max(maxDB, row[i])
		}
	}

	floor := maxDB - topDB
	for _, row := range s {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}
}

// hann returns a periodic Hann window of length n
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// melFilter is one triangular filter stored as weights starting at FFT bin first
type melFilter struct {
	first   int
	weights []float64
}

// melFilterBank builds area-normalised triangular filters on the Slaney mel
// scale spanning 0 Hz to Nyquist
func melFilterBank(sampleRate, nFFT, bands int) []melFilter {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	lo, hi := hzToMel(0), hzToMel(float64(sampleRate)/2)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	filters := make([]melFilter, bands)
	for b := 0; b < bands; b++ {
		left, centre, right := edges[b], edges[b+1], edges[b+2]
		norm := 2 / (right - left)

		f := melFilter{first: -1}
		for k, freq := range fftFreqs {
			lower := (freq - left) / (centre - left)
			upper := (right - freq) / (right - centre)
			w := math.Max(0, math.Min(lower, upper))
			if w == 0 {
				if f.first >= 0 {
					break
				}
				continue
			}
			if f.first < 0 {
				f.first = k
			}
			f.weights = append(f.weights, w*norm)
		}
		if f.first < 0 {
			f.first = 0
		}
		filters[b] = f
	}
	return filters
}

const (
	melLinearStep = 200.0 / 3
	melLogHz      = 1000.0
	melLogStart   = melLogHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz < melLogHz {
		return hz / melLinearStep
	}
	return melLogStart + math.Log(hz/melLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melLogStart {
		return mel * melLinearStep
	}
	return melLogHz * math.Exp(melLogStep*(mel-melLogStart))
}

// Ensure OnsetPeakDetector implements detection.OnsetDetector
var _ detection.OnsetDetector = (*OnsetPeakDetector)(nil)
