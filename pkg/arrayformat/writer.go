package arrayformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"sofa-convert/pkg/f16"
	"sofa-convert/pkg/signal"
)

// Writer writes Array Signal files.
type Writer struct {
	w        io.Writer
	encoding Encoding
}

// NewWriter creates a Writer that stores samples with the given encoding.
func NewWriter(w io.Writer, encoding Encoding) (*Writer, error) {
	if !encoding.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncoding, uint16(encoding))
	}

	return &Writer{w: w, encoding: encoding}, nil
}

// Write serializes sig: file header, HEAD, GRID and TSIG chunks.
func (w *Writer) Write(sig *signal.ArraySignal) error {
	measurements, samples := sig.Time.Dims()
	if sig.Grid.Len() != measurements {
		return fmt.Errorf("%w: %d measurements, %d grid points", ErrShapeMismatch, measurements, sig.Grid.Len())
	}

	for _, str := range []string{sig.Label, sig.Source} {
		if len(str) > math.MaxUint16 {
			return fmt.Errorf("%w: string of %d bytes exceeds %d", ErrCorruptedData, len(str), math.MaxUint16)
		}
	}

	if err := w.writeFileHeader(); err != nil {
		return err
	}

	if err := w.writeChunk(ChunkTypeHeader, buildHeaderChunk(sig, measurements, samples)); err != nil {
		return err
	}

	if err := w.writeChunk(ChunkTypeGrid, buildGridChunk(sig.Grid)); err != nil {
		return err
	}

	return w.writeChunk(ChunkTypeSignal, w.buildSignalChunk(sig.Time, measurements))
}

func (w *Writer) writeFileHeader() error {
	if _, err := w.w.Write([]byte(MagicNumber)); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, CurrentVersion); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint16(w.encoding)); err != nil {
		return fmt.Errorf("failed to write encoding: %w", err)
	}

	return nil
}

func (w *Writer) writeChunk(id string, payload []byte) error {
	if _, err := w.w.Write([]byte(id)); err != nil {
		return fmt.Errorf("failed to write %s chunk header: %w", id, err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return fmt.Errorf("failed to write %s chunk size: %w", id, err)
	}

	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write %s chunk: %w", id, err)
	}

	return nil
}

// buildHeaderChunk builds the HEAD payload.
func buildHeaderChunk(sig *signal.ArraySignal, measurements, samples int) []byte {
	size := 4 + 8 + 4 + 4 + // channel + rate + M + N
		2 + len(sig.Label) +
		2 + len(sig.Source)

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint32(buf[offset:], uint32(sig.Channel))
	offset += 4

	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(sig.Time.SamplingRate()))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], uint32(measurements))
	offset += 4

	binary.LittleEndian.PutUint32(buf[offset:], uint32(samples))
	offset += 4

	offset = putString(buf, offset, sig.Label)
	putString(buf, offset, sig.Source)

	return buf
}

// buildGridChunk builds the GRID payload: all azimuths, then all
// colatitudes, then all radii.
func buildGridChunk(grid *signal.SphericalGrid) []byte {
	buf := make([]byte, 0, grid.Len()*3*8)

	for _, seq := range [][]float64{grid.Azimuth(), grid.Colatitude(), grid.Radius()} {
		for _, v := range seq {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}

	return buf
}

// buildSignalChunk builds the TSIG payload in row-major order.
func (w *Writer) buildSignalChunk(ts *signal.TimeSignal, measurements int) []byte {
	_, samples := ts.Dims()
	buf := make([]byte, 0, measurements*samples*w.encoding.BytesPerSample())

	for i := range measurements {
		row := ts.Row(i)

		switch w.encoding {
		case EncodingFloat64:
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
			}
		case EncodingFloat32:
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
			}
		case EncodingFloat16:
			buf = append(buf, f16.Encode(row)...)
		}
	}

	return buf
}

func putString(buf []byte, offset int, s string) int {
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	copy(buf[offset:], s)

	return offset + len(s)
}

// WriteFile writes sig to path, replacing any existing file.
func WriteFile(path string, sig *signal.ArraySignal, encoding Encoding) (err error) {
	w, err := NewWriter(nil, encoding)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	w.w = bw

	if err := w.Write(sig); err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output file: %w", err)
	}

	return nil
}
