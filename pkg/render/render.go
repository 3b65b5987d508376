// Package render convolves program material with impulse responses for
// auditioning: a mono signal through the receivers of one measurement
// gives a binaural (or multichannel) preview of that source direction.
package render

import (
	"errors"
	"fmt"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// DefaultBlockSize is used when a block size of 0 is requested.
const DefaultBlockSize = 1024

const minFFTSize = 8

var (
	ErrEmptyIR   = errors.New("render: empty impulse response")
	ErrBlockSize = errors.New("render: invalid block size")
)

// OverlapAddEngine handles FFT-based fast convolution using overlap-add.
type OverlapAddEngine struct {
	fftSize   int
	blockSize int
	irLen     int

	plan  *algofft.Plan[complex128]
	irFFT []complex128

	// overlap holds the contribution of previous blocks to the next
	// irLen-1 output samples.
	overlap []float64

	buf []complex128
}

// NewOverlapAddEngine creates an engine for ir that accepts blocks of up to
// blockSize samples. A blockSize of 0 selects DefaultBlockSize.
func NewOverlapAddEngine(ir []float64, blockSize int) (*OverlapAddEngine, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyIR
	}

	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	if blockSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}

	fftSize := max(nextPowerOf2(blockSize+len(ir)-1), minFFTSize)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("render: fft plan of size %d: %w", fftSize, err)
	}

	e := &OverlapAddEngine{
		fftSize:   fftSize,
		blockSize: blockSize,
		irLen:     len(ir),
		plan:      plan,
		irFFT:     make([]complex128, fftSize),
		overlap:   make([]float64, len(ir)-1),
		buf:       make([]complex128, fftSize),
	}

	padded := make([]complex128, fftSize)
	for i, v := range ir {
		padded[i] = complex(v, 0)
	}

	if err := plan.Forward(e.irFFT, padded); err != nil {
		return nil, fmt.Errorf("render: impulse response fft: %w", err)
	}

	return e, nil
}

// BlockSize returns the largest block ProcessBlock accepts.
func (e *OverlapAddEngine) BlockSize() int {
	return e.blockSize
}

// ProcessBlock convolves the next block of input and returns the same
// number of output samples.
func (e *OverlapAddEngine) ProcessBlock(input []float64) ([]float64, error) {
	n := len(input)
	if n > e.blockSize {
		return nil, fmt.Errorf("%w: block of %d exceeds engine block size %d", ErrBlockSize, n, e.blockSize)
	}

	for i := range e.buf {
		e.buf[i] = 0
	}

	for i, v := range input {
		e.buf[i] = complex(v, 0)
	}

	if err := e.plan.Forward(e.buf, e.buf); err != nil {
		return nil, fmt.Errorf("render: forward fft: %w", err)
	}

	for i := range e.buf {
		e.buf[i] *= e.irFFT[i]
	}

	// Inverse is scaled by 1/N.
	if err := e.plan.Inverse(e.buf, e.buf); err != nil {
		return nil, fmt.Errorf("render: inverse fft: %w", err)
	}

	output := make([]float64, n)
	for i := range output {
		output[i] = real(e.buf[i])
		if i < len(e.overlap) {
			output[i] += e.overlap[i]
		}
	}

	// Shift the carried tail by n and add this block's tail.
	next := make([]float64, len(e.overlap))
	for k := range next {
		next[k] = real(e.buf[n+k])
		if n+k < len(e.overlap) {
			next[k] += e.overlap[n+k]
		}
	}

	e.overlap = next

	return output, nil
}

// Flush returns the remaining irLen-1 samples of the convolution tail and
// resets the engine.
func (e *OverlapAddEngine) Flush() []float64 {
	tail := e.overlap
	e.overlap = make([]float64, e.irLen-1)

	return tail
}

// Reset clears the carried tail.
func (e *OverlapAddEngine) Reset() {
	for i := range e.overlap {
		e.overlap[i] = 0
	}
}

// Convolve returns the full linear convolution of x and ir, of length
// len(x)+len(ir)-1.
func Convolve(x, ir []float64, blockSize int) ([]float64, error) {
	e, err := NewOverlapAddEngine(ir, blockSize)
	if err != nil {
		return nil, err
	}

	step := e.BlockSize()
	out := make([]float64, 0, len(x)+len(ir)-1)

	for start := 0; start < len(x); start += step {
		block, err := e.ProcessBlock(x[start:min(start+step, len(x))])
		if err != nil {
			return nil, err
		}

		out = append(out, block...)
	}

	out = append(out, e.Flush()...)

	return out, nil
}

// Binaural convolves x with each impulse response concurrently and returns
// one output channel per response, all of length len(x)+max(len(ir))-1.
func Binaural(x []float64, irs [][]float64, blockSize int) ([][]float64, error) {
	if len(irs) == 0 {
		return nil, ErrEmptyIR
	}

	longest := 0
	for _, ir := range irs {
		longest = max(longest, len(ir))
	}

	out := make([][]float64, len(irs))
	errs := make([]error, len(irs))

	var wg sync.WaitGroup

	for ch, ir := range irs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			y, err := Convolve(x, ir, blockSize)
			if err != nil {
				errs[ch] = fmt.Errorf("channel %d: %w", ch, err)
				return
			}

			// Pad shorter responses so every channel has the same length.
			out[ch] = append(y, make([]float64, len(x)+longest-1-len(y))...)
		}()
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return out, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
