package sofa

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"sofa-convert/pkg/container"
)

// ExtractReceiverMatrix reads the impulse responses of one receiver as an
// M×N matrix, removing the receiver axis of Data.IR(M, R, N).
func ExtractReceiverMatrix(c container.Container, s *Schema, receiver int) (*mat.Dense, error) {
	d := s.Dimensions

	if receiver < 0 || receiver >= d.R {
		return nil, fmt.Errorf("%w: receiver index %d out of range [0, %d)", ErrSchema, receiver, d.R)
	}

	data, err := c.Slice(VarIR, []int{0, receiver, 0}, []int{d.M, 1, d.N})
	if err != nil {
		return nil, fmt.Errorf("extract receiver %d: %w", receiver, err)
	}

	if len(data) != d.M*d.N {
		return nil, fmt.Errorf("%w: receiver %d slice has %d samples, want %d",
			ErrSchema, receiver, len(data), d.M*d.N)
	}

	return mat.NewDense(d.M, d.N, data), nil
}

// ExtractSamplingRate returns the sampling rate shared by all measurements.
// Files may declare one rate per listener; only the first is used.
func ExtractSamplingRate(s *Schema) float64 {
	return s.SamplingRate[0]
}
