// Package dsp provides the small amount of signal processing the audio
// classifier needs: RMS loudness, a radix-2 FFT and spectral band energy.
package dsp

import (
	"math"
	"math/cmplx"
)

// RMS returns the root mean square amplitude of the samples
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// FFT computes the discrete Fourier transform of the input using the
// Cooley-Tukey radix-2 algorithm. The input is zero-padded to the next
// power of two.
func FFT(input []float64) []complex128 {
	n := nextPowerOfTwo(len(input))
	buf := make([]complex128, n)
	for i, v := range input {
		buf[i] = complex(v, 0)
	}
	return recursiveFFT(buf)
}

func recursiveFFT(buf []complex128) []complex128 {
	n := len(buf)
	if n <= 1 {
		return buf
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = buf[2*i]
		odd[i] = buf[2*i+1]
	}

	even = recursiveFFT(even)
	odd = recursiveFFT(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		t := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = even[k] + t*odd[k]
		out[k+n/2] = even[k] - t*odd[k]
	}
	return out
}

// BandEnergy sums the magnitude spectrum between lowHz and highHz. Only the
// first half of the spectrum is considered; the upper half mirrors it for
// real signals.
func BandEnergy(spectrum []complex128, sampleRate int, lowHz, highHz float64) float64 {
	n := len(spectrum)
	if n == 0 || sampleRate <= 0 {
		return 0
	}

	binWidth := float64(sampleRate) / float64(n)
	var energy float64
	for k := 0; k < n/2; k++ {
		freq := float64(k) * binWidth
		if freq >= lowHz && freq <= highHz {
			energy += cmplx.Abs(spectrum[k])
		}
	}
	return energy
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
