package sofa

import (
	"fmt"
	"log/slog"
	"sync"

	"sofa-convert/pkg/arrayformat"
	"sofa-convert/pkg/container"
	"sofa-convert/pkg/container/h5"
	"sofa-convert/pkg/resampler"
	"sofa-convert/pkg/signal"
)

// Options controls a conversion run. The zero value converts sequentially
// to lossless float64 files at the original sampling rate.
type Options struct {
	// Encoding of the persisted samples; zero means EncodingFloat64.
	Encoding arrayformat.Encoding

	// TargetRate resamples every channel before persistence when positive
	// and different from the file's rate.
	TargetRate float64

	// Parallel assembles and writes channels concurrently once all
	// impulse responses are in memory.
	Parallel bool

	// Logger receives progress messages; nil discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return o.Logger
}

func (o Options) encoding() arrayformat.Encoding {
	if o.Encoding == 0 {
		return arrayformat.EncodingFloat64
	}

	return o.Encoding
}

// Result is the in-memory outcome of reading a SOFA container.
type Result struct {
	Schema  *Schema
	Grid    *signal.SphericalGrid
	Signals []*signal.ArraySignal // one per receiver, in receiver order
}

// Read validates c and assembles one Array Signal per receiver. All
// signals share one grid. c is not closed.
func Read(c container.Container, source string) (*Result, error) {
	schema, err := Validate(c)
	if err != nil {
		return nil, err
	}

	grid := NewGrid(schema)
	rate := ExtractSamplingRate(schema)
	count := schema.Dimensions.R

	res := &Result{
		Schema:  schema,
		Grid:    grid,
		Signals: make([]*signal.ArraySignal, count),
	}

	for r := range count {
		matrix, err := ExtractReceiverMatrix(c, schema, r)
		if err != nil {
			return nil, err
		}

		sig := signal.Assemble(matrix, rate, grid)
		sig.Channel = r
		sig.Label = ChannelLabel(r, count)
		sig.Source = source
		res.Signals[r] = sig
	}

	return res, nil
}

// Load opens a SOFA file, reads every receiver into memory and closes
// the file.
func Load(path string) (*Result, error) {
	f, err := h5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, SourceName(path))
}

// Convert converts the SOFA file at input into one Array Signal file per
// receiver named <outputBase>_<label>.asig, and returns the written paths
// in receiver order.
func Convert(input, outputBase string, opts Options) ([]string, error) {
	f, err := h5.Open(input)
	if err != nil {
		return nil, err
	}

	return ConvertFrom(f, SourceName(input), outputBase, opts)
}

// ConvertFrom runs the conversion on an open container. It takes
// ownership of c and closes it on every path, as soon as the impulse
// responses are in memory.
func ConvertFrom(c container.Container, source, outputBase string, opts Options) ([]string, error) {
	log := opts.logger()

	defer c.Close()

	enc := opts.encoding()
	if !enc.Valid() {
		return nil, fmt.Errorf("%w: %d", arrayformat.ErrUnsupportedEncoding, uint16(enc))
	}

	res, err := Read(c, source)
	if err != nil {
		return nil, err
	}

	if err := c.Close(); err != nil {
		return nil, fmt.Errorf("%w: close container: %w", container.ErrIO, err)
	}

	d := res.Schema.Dimensions
	log.Info("validated SOFA file",
		"source", source,
		"dimensions", d.String(),
		"rate", ExtractSamplingRate(res.Schema))

	if opts.TargetRate > 0 && opts.TargetRate != ExtractSamplingRate(res.Schema) {
		if err := resampleAll(res.Signals, opts.TargetRate); err != nil {
			return nil, err
		}

		log.Info("resampled channels", "from", ExtractSamplingRate(res.Schema), "to", opts.TargetRate)
	}

	paths := make([]string, len(res.Signals))
	for i, sig := range res.Signals {
		paths[i] = OutputPath(outputBase, sig.Label)
	}

	if opts.Parallel {
		err = writeParallel(res.Signals, paths, enc, log)
	} else {
		err = writeSequential(res.Signals, paths, enc, log)
	}

	if err != nil {
		return nil, err
	}

	return paths, nil
}

func writeOne(sig *signal.ArraySignal, path string, enc arrayformat.Encoding, log *slog.Logger) error {
	if err := arrayformat.WriteFile(path, sig, enc); err != nil {
		return fmt.Errorf("%w: write channel %d to %s: %w", container.ErrIO, sig.Channel, path, err)
	}

	m, n := sig.Time.Dims()
	log.Debug("wrote channel", "channel", sig.Channel, "label", sig.Label, "path", path, "measurements", m, "samples", n)

	return nil
}

func writeSequential(signals []*signal.ArraySignal, paths []string, enc arrayformat.Encoding, log *slog.Logger) error {
	for i, sig := range signals {
		if err := writeOne(sig, paths[i], enc, log); err != nil {
			return err
		}
	}

	return nil
}

// writeParallel writes every channel concurrently. When several fail, the
// error of the lowest channel is returned.
func writeParallel(signals []*signal.ArraySignal, paths []string, enc arrayformat.Encoding, log *slog.Logger) error {
	errs := make([]error, len(signals))

	var wg sync.WaitGroup

	for i, sig := range signals {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[i] = writeOne(sig, paths[i], enc, log)
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// resampleAll replaces each signal's time data with a copy at rate. The
// shared grid is unchanged.
func resampleAll(signals []*signal.ArraySignal, rate float64) error {
	rs := resampler.New()

	for _, sig := range signals {
		out, err := rs.ResampleMatrix(sig.Time.Matrix(), sig.Time.SamplingRate(), rate)
		if err != nil {
			return fmt.Errorf("resample channel %d: %w", sig.Channel, err)
		}

		sig.Time = signal.NewTimeSignal(out, rate)
	}

	return nil
}
