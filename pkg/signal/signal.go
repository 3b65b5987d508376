// Package signal holds the in-memory artifacts produced by the SOFA
// pipeline: a time-domain impulse-response matrix with its sampling rate,
// the spherical grid of source directions, and the Array Signal pairing
// the two for one receiver channel.
//
// All three types are immutable after construction. Accessors return
// copies, so a SphericalGrid can be shared by every channel of a run.
package signal

import (
	"gonum.org/v1/gonum/mat"
)

// TimeSignal is an M×N impulse-response matrix (measurement × sample)
// sampled at a single rate.
type TimeSignal struct {
	data *mat.Dense
	rate float64
}

// NewTimeSignal creates a TimeSignal holding a copy of data.
func NewTimeSignal(data mat.Matrix, samplingRate float64) *TimeSignal {
	return &TimeSignal{
		data: mat.DenseCopyOf(data),
		rate: samplingRate,
	}
}

// newTimeSignalOwned takes ownership of data without copying.
func newTimeSignalOwned(data *mat.Dense, samplingRate float64) *TimeSignal {
	return &TimeSignal{data: data, rate: samplingRate}
}

// SamplingRate returns the sampling rate in Hz.
func (t *TimeSignal) SamplingRate() float64 {
	return t.rate
}

// Dims returns the number of measurements and samples per measurement.
func (t *TimeSignal) Dims() (measurements, samples int) {
	return t.data.Dims()
}

// At returns sample j of measurement i.
func (t *TimeSignal) At(i, j int) float64 {
	return t.data.At(i, j)
}

// Row returns a copy of measurement i.
func (t *TimeSignal) Row(i int) []float64 {
	return append([]float64(nil), t.data.RawRowView(i)...)
}

// Matrix returns a copy of the underlying matrix.
func (t *TimeSignal) Matrix() *mat.Dense {
	return mat.DenseCopyOf(t.data)
}

// Duration returns the length of one measurement in seconds.
func (t *TimeSignal) Duration() float64 {
	if t.rate <= 0 {
		return 0
	}

	_, n := t.data.Dims()

	return float64(n) / t.rate
}

// SphericalGrid holds one direction per measurement: azimuth and
// colatitude in radians, radius in metres.
type SphericalGrid struct {
	azimuth    []float64
	colatitude []float64
	radius     []float64
}

// NewSphericalGrid creates a grid from copies of the three sequences.
// It panics if their lengths differ.
func NewSphericalGrid(azimuth, colatitude, radius []float64) *SphericalGrid {
	if len(azimuth) != len(colatitude) || len(azimuth) != len(radius) {
		panic("signal: grid sequences must have equal length")
	}

	return &SphericalGrid{
		azimuth:    append([]float64(nil), azimuth...),
		colatitude: append([]float64(nil), colatitude...),
		radius:     append([]float64(nil), radius...),
	}
}

// Len returns the number of grid points.
func (g *SphericalGrid) Len() int {
	return len(g.azimuth)
}

// Point returns azimuth, colatitude and radius of grid point i.
func (g *SphericalGrid) Point(i int) (azimuth, colatitude, radius float64) {
	return g.azimuth[i], g.colatitude[i], g.radius[i]
}

// Azimuth returns a copy of the azimuth sequence (radians).
func (g *SphericalGrid) Azimuth() []float64 {
	return append([]float64(nil), g.azimuth...)
}

// Colatitude returns a copy of the colatitude sequence (radians).
func (g *SphericalGrid) Colatitude() []float64 {
	return append([]float64(nil), g.colatitude...)
}

// Radius returns a copy of the radius sequence (metres).
func (g *SphericalGrid) Radius() []float64 {
	return append([]float64(nil), g.radius...)
}

// ArraySignal pairs the time signal of one receiver channel with the
// shared source grid.
type ArraySignal struct {
	Channel int    // receiver index
	Label   string // channel suffix, e.g. "left"
	Source  string // base name of the originating file

	Time *TimeSignal
	Grid *SphericalGrid
}

// Assemble composes an ArraySignal from an extracted matrix, its sampling
// rate and the shared grid. The matrix is owned by the result; row count
// is assumed to equal grid.Len().
func Assemble(matrix *mat.Dense, samplingRate float64, grid *SphericalGrid) *ArraySignal {
	return &ArraySignal{
		Time: newTimeSignalOwned(matrix, samplingRate),
		Grid: grid,
	}
}
