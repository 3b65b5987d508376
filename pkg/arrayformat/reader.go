package arrayformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"sofa-convert/pkg/f16"
	"sofa-convert/pkg/signal"
)

// maxElements bounds allocations driven by header fields.
const maxElements = 1 << 28

// Reader reads Array Signal files.
type Reader struct {
	r      io.Reader
	header Header
}

// NewReader creates a Reader and parses the file header and HEAD chunk.
// Returns an error if the stream is not a valid Array Signal file.
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{r: r}

	if err := reader.readFileHeader(); err != nil {
		return nil, err
	}

	payload, err := reader.readChunk(ChunkTypeHeader, -1)
	if err != nil {
		return nil, err
	}

	if err := reader.parseHeaderChunk(payload); err != nil {
		return nil, err
	}

	return reader, nil
}

// Header returns the parsed channel header.
func (r *Reader) Header() Header {
	return r.header
}

// readFileHeader reads and validates magic, version and encoding.
func (r *Reader) readFileHeader() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r.r, magic); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(magic) != MagicNumber {
		return ErrInvalidMagic
	}

	if err := binary.Read(r.r, binary.LittleEndian, &r.header.Version); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if r.header.Version != CurrentVersion {
		return fmt.Errorf("%w: got version %d, expected %d", ErrUnsupportedVersion, r.header.Version, CurrentVersion)
	}

	var encoding uint16
	if err := binary.Read(r.r, binary.LittleEndian, &encoding); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	r.header.Encoding = Encoding(encoding)
	if !r.header.Encoding.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedEncoding, encoding)
	}

	return nil
}

// readChunk reads the next chunk, which must have the given id. When want
// is non-negative the chunk size must equal it.
func (r *Reader) readChunk(id string, want int) ([]byte, error) {
	chunkID := make([]byte, 4)
	if _, err := io.ReadFull(r.r, chunkID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(chunkID) != id {
		return nil, fmt.Errorf("%w: expected %s chunk, got %q", ErrInvalidChunk, id, string(chunkID))
	}

	var size uint64
	if err := binary.Read(r.r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if want >= 0 && size != uint64(want) {
		return nil, fmt.Errorf("%w: %s chunk is %d bytes, expected %d", ErrCorruptedData, id, size, want)
	}

	if size > maxElements*8 {
		return nil, fmt.Errorf("%w: %s chunk size %d too large", ErrCorruptedData, id, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	return payload, nil
}

func (r *Reader) parseHeaderChunk(buf []byte) error {
	const fixed = 4 + 8 + 4 + 4
	if len(buf) < fixed {
		return fmt.Errorf("%w: header chunk too short", ErrCorruptedData)
	}

	offset := 0

	r.header.Channel = int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4

	r.header.SamplingRate = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8

	r.header.Measurements = int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4

	r.header.Samples = int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4

	if r.header.Measurements < 1 || r.header.Samples < 1 {
		return fmt.Errorf("%w: empty signal %d×%d", ErrCorruptedData, r.header.Measurements, r.header.Samples)
	}

	if r.header.Measurements > maxElements/r.header.Samples {
		return fmt.Errorf("%w: signal %d×%d too large", ErrCorruptedData, r.header.Measurements, r.header.Samples)
	}

	label, offset, err := getString(buf, offset)
	if err != nil {
		return err
	}

	source, _, err := getString(buf, offset)
	if err != nil {
		return err
	}

	r.header.Label = label
	r.header.Source = source

	return nil
}

// Read reads the GRID and TSIG chunks and returns the Array Signal.
func (r *Reader) Read() (*signal.ArraySignal, error) {
	m, n := r.header.Measurements, r.header.Samples

	gridData, err := r.readChunk(ChunkTypeGrid, 3*m*8)
	if err != nil {
		return nil, err
	}

	grid := parseGrid(gridData, m)

	sigData, err := r.readChunk(ChunkTypeSignal, m*n*r.header.Encoding.BytesPerSample())
	if err != nil {
		return nil, err
	}

	samples, err := r.decodeSamples(sigData)
	if err != nil {
		return nil, err
	}

	sig := signal.Assemble(mat.NewDense(m, n, samples), r.header.SamplingRate, grid)
	sig.Channel = r.header.Channel
	sig.Label = r.header.Label
	sig.Source = r.header.Source

	return sig, nil
}

func parseGrid(buf []byte, m int) *signal.SphericalGrid {
	seqs := make([][]float64, 3)
	for s := range seqs {
		seqs[s] = make([]float64, m)
		for i := range m {
			seqs[s][i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[(s*m+i)*8:]))
		}
	}

	return signal.NewSphericalGrid(seqs[0], seqs[1], seqs[2])
}

func (r *Reader) decodeSamples(buf []byte) ([]float64, error) {
	switch r.header.Encoding {
	case EncodingFloat64:
		out := make([]float64, len(buf)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}

		return out, nil
	case EncodingFloat32:
		out := make([]float64, len(buf)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		}

		return out, nil
	case EncodingFloat16:
		out, err := f16.Decode(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncoding, uint16(r.header.Encoding))
	}
}

// getString reads a length-prefixed UTF-8 string at offset.
func getString(buf []byte, offset int) (string, int, error) {
	if offset+2 > len(buf) {
		return "", offset, fmt.Errorf("%w: truncated string length", ErrCorruptedData)
	}

	length := int(binary.LittleEndian.Uint16(buf[offset:]))
	offset += 2

	if offset+length > len(buf) {
		return "", offset, fmt.Errorf("%w: truncated string", ErrCorruptedData)
	}

	return string(buf[offset : offset+length]), offset + length, nil
}

// ReadFile is a convenience function to read one Array Signal file.
func ReadFile(path string) (*signal.ArraySignal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}

	return reader.Read()
}
