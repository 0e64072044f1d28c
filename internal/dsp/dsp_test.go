package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS(make([]float64, 100)))

	// Constant signal
	constant := []float64{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 0.5, RMS(constant), 1e-12)

	// Full-cycle sine of amplitude A has RMS A/sqrt(2)
	const n = 1024
	sine := make([]float64, n)
	for i := range sine {
		sine[i] = 0.8 * math.Sin(2*math.Pi*float64(i)/float64(n))
	}
	assert.InDelta(t, 0.8/math.Sqrt2, RMS(sine), 1e-9)
}

func TestFFTImpulse(t *testing.T) {
	// An impulse transforms to a flat unit spectrum
	input := make([]float64, 8)
	input[0] = 1

	spectrum := FFT(input)
	require.Len(t, spectrum, 8)
	for k, v := range spectrum {
		assert.InDelta(t, 1.0, cmplx.Abs(v), 1e-12, "bin %d", k)
	}
}

func TestFFTSingleTone(t *testing.T) {
	// A sine on bin k shows up as two spikes of magnitude n/2 * amplitude
	const n = 1024
	const bin = 37
	const amplitude = 0.5

	input := make([]float64, n)
	for i := range input {
		input[i] = amplitude * math.Sin(2*math.Pi*bin*float64(i)/float64(n))
	}

	spectrum := FFT(input)
	require.Len(t, spectrum, n)

	assert.InDelta(t, amplitude*n/2, cmplx.Abs(spectrum[bin]), 1e-6)
	assert.InDelta(t, amplitude*n/2, cmplx.Abs(spectrum[n-bin]), 1e-6)

	for k := 0; k < n/2; k++ {
		if k == bin {
			continue
		}
		assert.InDelta(t, 0, cmplx.Abs(spectrum[k]), 1e-6, "bin %d", k)
	}
}

func TestFFTPadsToPowerOfTwo(t *testing.T) {
	spectrum := FFT(make([]float64, 1000))
	assert.Len(t, spectrum, 1024)
}

func TestBandEnergyIsolatesBand(t *testing.T) {
	const n = 4096
	const sampleRate = 44100
	binWidth := float64(sampleRate) / float64(n)

	// Tone centered in a 400-600 Hz band
	freq := math.Round(500/binWidth) * binWidth
	input := make([]float64, n)
	for i := range input {
		input[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}

	spectrum := FFT(input)

	inBand := BandEnergy(spectrum, sampleRate, 400, 600)
	outBand := BandEnergy(spectrum, sampleRate, 800, 1500)

	assert.InDelta(t, float64(n)/2, inBand, 1.0)
	assert.Less(t, outBand, 1.0)
}

func TestBandEnergyEmptySpectrum(t *testing.T) {
	assert.Zero(t, BandEnergy(nil, 44100, 300, 700))
	assert.Zero(t, BandEnergy([]complex128{1, 1}, 0, 300, 700))
}
