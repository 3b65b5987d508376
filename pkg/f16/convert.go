// Package f16 provides IEEE 754 half-precision (binary16) encoding of
// float64 sample data.
//
// Conversions round to nearest, ties to even, and keep subnormals,
// infinities and NaN. Values beyond ±65504 overflow to infinity.
package f16

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOddLength is returned when decoding a byte slice of odd length.
var ErrOddLength = errors.New("f16: input length must be even")

// Encode converts values to little-endian half-precision bytes, 2 bytes
// per value.
func Encode(values []float64) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], FromFloat64(v))
	}

	return out
}

// Decode converts little-endian half-precision bytes to float64 values.
func Decode(data []byte) ([]float64, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}

	out := make([]float64, len(data)/2)
	for i := range out {
		out[i] = ToFloat64(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return out, nil
}

// FromFloat64 returns the half-precision bit pattern nearest to v.
func FromFloat64(v float64) uint16 {
	return fromFloat32(float32(v))
}

// ToFloat64 returns the value of a half-precision bit pattern.
func ToFloat64(bits uint16) float64 {
	return float64(toFloat32(bits))
}

func fromFloat32(value float32) uint16 {
	bits := math.Float32bits(value)

	sign := uint16(bits>>16) & 0x8000
	exponent := int((bits >> 23) & 0xFF)
	mantissa := bits & 0x7FFFFF

	if exponent == 0xFF {
		if mantissa == 0 {
			return sign | 0x7C00
		}

		// Keep the payload's top bits and force the quiet bit so the
		// result stays NaN.
		return sign | 0x7C00 | 0x0200 | uint16(mantissa>>13)
	}

	// Rebias from 127 to 15.
	e := exponent - 127 + 15

	if e >= 31 {
		return sign | 0x7C00
	}

	if e <= 0 {
		if e < -10 {
			return sign
		}

		// Subnormal half: value = m * 2^-24 with the implicit bit restored.
		m := mantissa | 0x800000
		shift := uint(14 - e)
		half := m >> shift

		rem := m & (1<<shift - 1)
		halfway := uint32(1) << (shift - 1)

		if rem > halfway || (rem == halfway && half&1 == 1) {
			half++
		}

		return sign | uint16(half)
	}

	half := uint32(e)<<10 | mantissa>>13

	// A carry out of the mantissa correctly bumps the exponent, up to
	// infinity.
	rem := mantissa & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}

	return sign | uint16(half)
}

func toFloat32(bits uint16) float32 {
	sign := uint32(bits&0x8000) << 16
	exponent := uint32(bits>>10) & 0x1F
	mantissa := uint32(bits & 0x3FF)

	switch exponent {
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mantissa<<13)
	case 0:
		if mantissa == 0 {
			return math.Float32frombits(sign)
		}

		v := float32(mantissa) / (1 << 24)
		if sign != 0 {
			v = -v
		}

		return v
	}

	return math.Float32frombits(sign | (exponent+112)<<23 | mantissa<<13)
}

// Stats describes the error introduced by a half-precision round trip.
type Stats struct {
	MaxAbsError float64
	MaxRelError float64
	SNR         float64 // dB; +Inf when the round trip is exact
}

// AnalyzeConversionError encodes and decodes original and reports the
// resulting error. Non-finite samples are skipped.
func AnalyzeConversionError(original []float64) Stats {
	var (
		stats       Stats
		errorPower  float64
		signalPower float64
	)

	for _, orig := range original {
		if math.IsNaN(orig) || math.IsInf(orig, 0) {
			continue
		}

		diff := ToFloat64(FromFloat64(orig)) - orig
		abs := math.Abs(diff)

		stats.MaxAbsError = math.Max(stats.MaxAbsError, abs)

		if math.Abs(orig) > 1e-10 {
			stats.MaxRelError = math.Max(stats.MaxRelError, abs/math.Abs(orig))
		}

		errorPower += diff * diff
		signalPower += orig * orig
	}

	switch {
	case errorPower == 0:
		stats.SNR = math.Inf(1)
	case signalPower > 0:
		stats.SNR = 10 * math.Log10(signalPower/errorPower)
	}

	return stats
}
