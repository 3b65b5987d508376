package signal

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// ErrEmptySignal is returned when a spectrum is requested for no samples.
var ErrEmptySignal = errors.New("signal: empty impulse response")

// minDB is the floor applied to magnitude responses.
const minDB = -200.0

// Spectrum is the one-sided magnitude response of one impulse response.
type Spectrum struct {
	Frequencies []float64 // Hz, bins 0..fftSize/2
	MagnitudeDB []float64 // 20*log10(|H|)
}

// Peak returns the frequency and level of the loudest bin.
func (s Spectrum) Peak() (freq, db float64) {
	if len(s.MagnitudeDB) == 0 {
		return 0, minDB
	}

	idx := 0
	for i, v := range s.MagnitudeDB {
		if v > s.MagnitudeDB[idx] {
			idx = i
		}
	}

	return s.Frequencies[idx], s.MagnitudeDB[idx]
}

// MagnitudeResponse computes the one-sided magnitude response of ir.
// fftSize is rounded up to a power of two no smaller than len(ir);
// pass 0 to use the shortest such size.
func MagnitudeResponse(ir []float64, samplingRate float64, fftSize int) (Spectrum, error) {
	if len(ir) == 0 {
		return Spectrum{}, ErrEmptySignal
	}

	size := nextPowerOf2(max(fftSize, len(ir)))

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return Spectrum{}, fmt.Errorf("signal: fft plan of size %d: %w", size, err)
	}

	in := make([]complex128, size)
	for i, v := range ir {
		in[i] = complex(v, 0)
	}

	out := make([]complex128, size)
	if err := plan.Forward(out, in); err != nil {
		return Spectrum{}, fmt.Errorf("signal: forward fft: %w", err)
	}

	bins := size/2 + 1
	resp := Spectrum{
		Frequencies: make([]float64, bins),
		MagnitudeDB: make([]float64, bins),
	}

	for k := range bins {
		resp.Frequencies[k] = float64(k) * samplingRate / float64(size)

		mag := cmplx.Abs(out[k])
		if mag <= 0 {
			resp.MagnitudeDB[k] = minDB
			continue
		}

		resp.MagnitudeDB[k] = math.Max(20*math.Log10(mag), minDB)
	}

	return resp, nil
}

// PeakAmplitude returns the largest absolute sample of x. NaN samples are
// ignored.
func PeakAmplitude(x []float64) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	return peak
}

// PeakLevel returns the absolute peak of x in dBFS.
func PeakLevel(x []float64) float64 {
	peak := PeakAmplitude(x)
	if peak <= 0 {
		return minDB
	}

	return 20 * math.Log10(peak)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
