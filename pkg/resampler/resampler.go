// Package resampler converts impulse-response matrices between sampling
// rates with windowed sinc interpolation.
//
// Every measurement of a SOFA receiver has the same length, so the
// interpolation kernel is computed once per (length, ratio) as a Plan and
// applied to each row.
package resampler

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidRate is returned for non-positive or non-finite rates.
var ErrInvalidRate = errors.New("resampler: sampling rate must be positive and finite")

const (
	minLobes     = 4
	maxLobes     = 64
	defaultLobes = 16
)

// Resampler performs sample rate conversion using windowed sinc interpolation.
type Resampler struct {
	// sinc lobes on each side of the interpolation point
	sincLobes int
}

// New creates a Resampler with default quality.
func New() *Resampler {
	return &Resampler{sincLobes: defaultLobes}
}

// NewWithQuality creates a Resampler with the given number of sinc lobes,
// clamped to [4, 64]. More lobes give a sharper filter at higher cost.
func NewWithQuality(lobes int) *Resampler {
	return &Resampler{sincLobes: min(max(lobes, minLobes), maxLobes)}
}

// Lobes returns the configured number of sinc lobes.
func (r *Resampler) Lobes() int {
	return r.sincLobes
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-10 {
		return 1.0
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

// blackmanWindow is the Blackman window over [-1, 1], 0 outside.
func blackmanWindow(x float64) float64 {
	if x < -1.0 || x > 1.0 {
		return 0.0
	}

	t := (x + 1.0) / 2.0

	return 0.42 - 0.5*math.Cos(2*math.Pi*t) + 0.08*math.Cos(4*math.Pi*t)
}

// tap is the normalized kernel of one output sample.
type tap struct {
	start   int
	weights []float64
}

// Plan is a precomputed conversion of inputLen samples from one rate to
// another. It is safe for concurrent use.
type Plan struct {
	srcRate  float64
	dstRate  float64
	inputLen int
	taps     []tap
}

// Plan computes the kernel for converting inputLen samples from srcRate to
// dstRate.
func (r *Resampler) Plan(inputLen int, srcRate, dstRate float64) (*Plan, error) {
	if err := checkRate(srcRate); err != nil {
		return nil, err
	}

	if err := checkRate(dstRate); err != nil {
		return nil, err
	}

	p := &Plan{srcRate: srcRate, dstRate: dstRate, inputLen: inputLen}

	outputLen := CalculateOutputLength(inputLen, srcRate, dstRate)
	if outputLen == 0 || srcRate == dstRate {
		return p, nil
	}

	ratio := dstRate / srcRate

	// Downsampling widens the filter to avoid aliasing.
	filterRatio := math.Min(ratio, 1.0)
	windowRadius := float64(r.sincLobes) / filterRatio

	p.taps = make([]tap, outputLen)

	for i := range outputLen {
		inputPos := float64(i) / ratio

		startIdx := max(int(math.Floor(inputPos-windowRadius)), 0)
		endIdx := min(int(math.Ceil(inputPos+windowRadius)), inputLen-1)

		weights := make([]float64, 0, endIdx-startIdx+1)

		var weightSum float64

		for j := startIdx; j <= endIdx; j++ {
			d := inputPos - float64(j)
			w := sinc(d*filterRatio) * blackmanWindow(d/windowRadius)
			weights = append(weights, w)
			weightSum += w
		}

		if weightSum > 0 {
			for k := range weights {
				weights[k] /= weightSum
			}
		} else {
			weights = weights[:0]
		}

		p.taps[i] = tap{start: startIdx, weights: weights}
	}

	return p, nil
}

// OutputLen returns the number of samples the plan produces.
func (p *Plan) OutputLen() int {
	if p.srcRate == p.dstRate {
		return p.inputLen
	}

	return len(p.taps)
}

// Apply resamples src into a newly allocated slice.
func (p *Plan) Apply(src []float64) ([]float64, error) {
	if len(src) != p.inputLen {
		return nil, fmt.Errorf("resampler: plan expects %d samples, got %d", p.inputLen, len(src))
	}

	if p.srcRate == p.dstRate {
		return append([]float64(nil), src...), nil
	}

	out := make([]float64, len(p.taps))
	p.apply(out, src)

	return out, nil
}

func (p *Plan) apply(dst, src []float64) {
	for i, t := range p.taps {
		var sum float64
		for k, w := range t.weights {
			sum += src[t.start+k] * w
		}

		dst[i] = sum
	}
}

// Resample converts data from srcRate to dstRate.
func (r *Resampler) Resample(data []float64, srcRate, dstRate float64) ([]float64, error) {
	p, err := r.Plan(len(data), srcRate, dstRate)
	if err != nil {
		return nil, err
	}

	return p.Apply(data)
}

// ResampleMatrix converts every row of m (measurement × sample) from
// srcRate to dstRate and returns a new matrix with the same row count.
func (r *Resampler) ResampleMatrix(m mat.Matrix, srcRate, dstRate float64) (*mat.Dense, error) {
	rows, cols := m.Dims()

	p, err := r.Plan(cols, srcRate, dstRate)
	if err != nil {
		return nil, err
	}

	outLen := p.OutputLen()
	if outLen == 0 {
		return nil, fmt.Errorf("resampler: %d samples at %g Hz leave no output at %g Hz", cols, srcRate, dstRate)
	}

	src := mat.DenseCopyOf(m)
	out := mat.NewDense(rows, outLen, nil)

	for i := range rows {
		if p.srcRate == p.dstRate {
			out.SetRow(i, src.RawRowView(i))
			continue
		}

		p.apply(out.RawRowView(i), src.RawRowView(i))
	}

	return out, nil
}

// CalculateOutputLength returns the output length for resampling inputLen
// samples.
func CalculateOutputLength(inputLen int, srcRate, dstRate float64) int {
	if inputLen == 0 {
		return 0
	}

	return int(math.Round(float64(inputLen) * dstRate / srcRate))
}

func checkRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	return nil
}
