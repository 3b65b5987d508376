// Package arrayformat reads and writes Array Signal files (.asig).
//
// An Array Signal file is a chunk-based little-endian container for one
// receiver channel: a header chunk with the channel identity and sampling
// rate, a grid chunk with the azimuth, colatitude and radius sequences,
// and a time-signal chunk with the M×N impulse-response matrix in
// row-major order.
//
//	"ASIG" | version u16 | encoding u16
//	"HEAD" size u64 | channel u32 | rate f64 | M u32 | N u32 | label | source
//	"GRID" size u64 | 3×M f64
//	"TSIG" size u64 | M×N samples
//
// Strings are u16 length-prefixed UTF-8. The grid and sampling rate are
// always stored as float64; samples use the file's Encoding. Only
// EncodingFloat64 round-trips bit for bit.
package arrayformat

import (
	"errors"
	"fmt"
	"strings"
)

// Format constants.
const (
	// MagicNumber identifies an Array Signal file.
	MagicNumber = "ASIG"

	// CurrentVersion is the format version implemented by this package.
	CurrentVersion uint16 = 1

	// Extension is the conventional file-name extension.
	Extension = ".asig"

	// Chunk type identifiers.
	ChunkTypeHeader = "HEAD"
	ChunkTypeGrid   = "GRID"
	ChunkTypeSignal = "TSIG"
)

// Header sizes in bytes.
const (
	FileHeaderSize  = 8  // Magic(4) + Version(2) + Encoding(2)
	ChunkHeaderSize = 12 // ChunkID(4) + ChunkSize(8)
)

// Errors.
var (
	ErrInvalidMagic        = errors.New("arrayformat: invalid magic number")
	ErrUnsupportedVersion  = errors.New("arrayformat: unsupported format version")
	ErrUnsupportedEncoding = errors.New("arrayformat: unsupported sample encoding")
	ErrInvalidChunk        = errors.New("arrayformat: invalid chunk")
	ErrCorruptedData       = errors.New("arrayformat: corrupted data")
	ErrShapeMismatch       = errors.New("arrayformat: signal and grid shapes disagree")
)

// Encoding selects how time-signal samples are stored.
type Encoding uint16

// Sample encodings.
const (
	EncodingFloat64 Encoding = 1 // lossless
	EncodingFloat32 Encoding = 2
	EncodingFloat16 Encoding = 3 // IEEE 754 half precision
)

// BytesPerSample returns the stored size of one sample.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingFloat64:
		return 8
	case EncodingFloat32:
		return 4
	case EncodingFloat16:
		return 2
	default:
		return 0
	}
}

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	return e.BytesPerSample() > 0
}

func (e Encoding) String() string {
	switch e {
	case EncodingFloat64:
		return "float64"
	case EncodingFloat32:
		return "float32"
	case EncodingFloat16:
		return "float16"
	default:
		return fmt.Sprintf("Encoding(%d)", uint16(e))
	}
}

// ParseEncoding converts a name such as "float32" to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "f64", "":
		return EncodingFloat64, nil
	case "float32", "f32":
		return EncodingFloat32, nil
	case "float16", "f16", "half":
		return EncodingFloat16, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
	}
}

// Header is the identity of the stored channel.
type Header struct {
	Version      uint16
	Encoding     Encoding
	Channel      int
	SamplingRate float64
	Measurements int
	Samples      int
	Label        string
	Source       string
}

// Duration returns the length of one measurement in seconds.
func (h *Header) Duration() float64 {
	if h.SamplingRate <= 0 {
		return 0
	}

	return float64(h.Samples) / h.SamplingRate
}
