// Package wavio moves sample data between Array Signals and PCM WAV files:
// one measurement across receivers out as a multichannel WAV, and mono
// program material in for binaural previews.
package wavio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"sofa-convert/pkg/signal"
)

// BitDepth is the PCM sample size written by this package.
const BitDepth = 24

const wavFormatPCM = 1

var (
	ErrNoSignals       = errors.New("wavio: no signals")
	ErrBadMeasurement  = errors.New("wavio: measurement index out of range")
	ErrSignalsMismatch = errors.New("wavio: signals differ in rate or shape")
	ErrChannelLength   = errors.New("wavio: channels differ in length")
	ErrInvalidFile     = errors.New("wavio: invalid WAV file")
)

// Options controls writing.
type Options struct {
	// Normalize scales the output so its peak across all channels sits
	// at -1 dBFS.
	Normalize bool
}

// Measurement returns measurement m of every signal, one slice per
// receiver, together with the shared sampling rate.
func Measurement(signals []*signal.ArraySignal, m int) ([][]float64, float64, error) {
	if len(signals) == 0 {
		return nil, 0, ErrNoSignals
	}

	rate := signals[0].Time.SamplingRate()
	measurements, samples := signals[0].Time.Dims()

	if m < 0 || m >= measurements {
		return nil, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrBadMeasurement, m, measurements)
	}

	out := make([][]float64, len(signals))

	for ch, sig := range signals {
		sm, sn := sig.Time.Dims()
		if sm != measurements || sn != samples || sig.Time.SamplingRate() != rate {
			return nil, 0, fmt.Errorf("%w: channel %d is %d×%d at %g Hz, want %d×%d at %g Hz",
				ErrSignalsMismatch, ch, sm, sn, sig.Time.SamplingRate(), measurements, samples, rate)
		}

		out[ch] = sig.Time.Row(m)
	}

	return out, rate, nil
}

// Interleave returns the channels interleaved by frame.
func Interleave(channels [][]float64) ([]float64, error) {
	if len(channels) == 0 {
		return nil, ErrNoSignals
	}

	n := len(channels[0])
	out := make([]float64, n*len(channels))

	for ch, data := range channels {
		if len(data) != n {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d", ErrChannelLength, ch, len(data), n)
		}

		for i, v := range data {
			out[i*len(channels)+ch] = v
		}
	}

	return out, nil
}

// WriteMeasurement exports measurement m of signals to path, one WAV
// channel per receiver.
func WriteMeasurement(path string, signals []*signal.ArraySignal, m int, opts Options) error {
	channels, rate, err := Measurement(signals, m)
	if err != nil {
		return err
	}

	return WriteChannels(path, channels, rate, opts)
}

// WriteChannels writes equally long channels as a 24-bit PCM WAV file.
func WriteChannels(path string, channels [][]float64, rate float64, opts Options) (err error) {
	frames, err := Interleave(channels)
	if err != nil {
		return err
	}

	if opts.Normalize {
		normalize(frames, math.Pow(10, -1.0/20))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close WAV file: %w", cerr)
		}
	}()

	sampleRate := int(math.Round(rate))

	enc := wav.NewEncoder(f, sampleRate, BitDepth, len(channels), wavFormatPCM)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: len(channels),
			SampleRate:  sampleRate,
		},
		Data:           toPCM(frames, BitDepth),
		SourceBitDepth: BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}

	return nil
}

// ReadMono reads a PCM WAV file as samples in [-1, 1] and returns them
// with the file's sampling rate. Multichannel files are downmixed by
// averaging.
func ReadMono(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV file: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, 0, fmt.Errorf("%w: %d channels", ErrInvalidFile, channels)
	}

	full := float64(int(1) << (int(decoder.BitDepth) - 1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)

	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}

		out[i] = sum / float64(channels) / full
	}

	return out, float64(decoder.SampleRate), nil
}

// toPCM converts samples in [-1, 1] to signed integers of the given bit
// depth. Out-of-range values are clamped and NaN becomes 0.
func toPCM(samples []float64, bitDepth int) []int {
	full := float64(int(1)<<(bitDepth-1) - 1)

	out := make([]int, len(samples))
	for i, v := range samples {
		if math.IsNaN(v) {
			continue
		}

		v = math.Max(-1, math.Min(1, v))
		out[i] = int(math.Round(v * full))
	}

	return out
}

func normalize(samples []float64, target float64) {
	peak := signal.PeakAmplitude(samples)
	if peak == 0 || math.IsInf(peak, 0) {
		return
	}

	gain := target / peak
	for i := range samples {
		samples[i] *= gain
	}
}
