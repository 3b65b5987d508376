// Command sofa-convert converts a SOFA file into one Array Signal file
// (.asig) per receiver.
//
// Usage:
//
//	sofa-convert [options] <input.sofa> [output-base]
//
// Options:
//
//	-parallel      Write receiver channels concurrently
//	-rate          Resample to this rate in Hz before writing
//	-encoding      Sample encoding: float64 (lossless), float32 or float16
//	-wav           Also export this measurement index as a multichannel WAV
//	-normalize     Normalize the WAV export to -1.0dB peak
//	-render        Convolve this mono WAV with one measurement for a preview
//	-render-measurement  Measurement index used by -render
//	-info          Print a summary of the input file and exit
//	-verbose       Log progress and details
//	-log           Log file path (default: stderr)
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sofa-convert/internal/wavio"
	"sofa-convert/pkg/arrayformat"
	"sofa-convert/pkg/render"
	"sofa-convert/pkg/resampler"
	"sofa-convert/pkg/signal"
	"sofa-convert/pkg/sofa"
)

var errUsage = errors.New("usage")

type config struct {
	input      string
	outputBase string

	parallel  bool
	rate      float64
	encoding  arrayformat.Encoding
	wav       int
	normalize bool
	render    string
	renderM   int
	info      bool
	verbose   bool
	logPath   string
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		os.Exit(1)
	}

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	fs := flag.NewFlagSet("sofa-convert", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := config{}

	var encoding string

	fs.BoolVar(&cfg.parallel, "parallel", false, "Write receiver channels concurrently")
	fs.Float64Var(&cfg.rate, "rate", 0, "Resample to this rate in Hz before writing (0 keeps the file's rate)")
	fs.StringVar(&encoding, "encoding", "float64", "Sample encoding: float64 (lossless), float32 or float16")
	fs.IntVar(&cfg.wav, "wav", -1, "Also export this measurement index as a multichannel WAV")
	fs.BoolVar(&cfg.normalize, "normalize", false, "Normalize the WAV export to -1.0dB peak")
	fs.StringVar(&cfg.render, "render", "", "Convolve this mono WAV with one measurement and write a preview WAV")
	fs.IntVar(&cfg.renderM, "render-measurement", 0, "Measurement index used by -render")
	fs.BoolVar(&cfg.info, "info", false, "Print a summary of the input file and exit")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Log progress and details")
	fs.StringVar(&cfg.logPath, "log", "", "Log file path (default: stderr)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sofa-convert [options] <input.sofa> [output-base]\n\n")
		fmt.Fprintf(stderr, "Converts a SOFA file to one Array Signal file (.asig) per receiver.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sofa-convert hrtf.sofa out/hrtf\n")
		fmt.Fprintf(stderr, "  sofa-convert -info hrtf.sofa\n")
		fmt.Fprintf(stderr, "  sofa-convert -rate 48000 -encoding float32 -wav 0 brir.sofa\n")
		fmt.Fprintf(stderr, "  sofa-convert -render speech.wav -render-measurement 12 hrtf.sofa\n")
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return cfg, errUsage
	}

	cfg.input = fs.Arg(0)
	cfg.outputBase = fs.Arg(1)

	if cfg.outputBase == "" {
		cfg.outputBase = sofa.DefaultOutputBase(cfg.input)
	}

	enc, err := arrayformat.ParseEncoding(encoding)
	if err != nil {
		return cfg, err
	}

	cfg.encoding = enc

	if cfg.rate < 0 {
		return cfg, fmt.Errorf("invalid -rate %g: must not be negative", cfg.rate)
	}

	if cfg.renderM < 0 {
		return cfg, fmt.Errorf("invalid -render-measurement %d: must not be negative", cfg.renderM)
	}

	return cfg, nil
}

// newLogger builds the text logger, writing to logPath or stderr.
func newLogger(cfg config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.logPath == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), io.NopCloser(nil), nil
	}

	file, err := os.OpenFile(cfg.logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// A log file records everything, independent of -verbose.
	return slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})), file, nil
}

func run(cfg config, stdout io.Writer) error {
	logger, closer, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	slog.SetDefault(logger)
	logger.Info("Starting sofa-convert", "input", cfg.input, "output", cfg.outputBase)

	if cfg.info {
		summary, _, err := sofa.LoadSummary(cfg.input)
		if err != nil {
			return err
		}

		return summary.Print(stdout)
	}

	paths, err := sofa.Convert(cfg.input, cfg.outputBase, sofa.Options{
		Encoding:   cfg.encoding,
		TargetRate: cfg.rate,
		Parallel:   cfg.parallel,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Fprintf(stdout, "Created %s\n", path)
	}

	if cfg.wav >= 0 {
		wavPath, err := exportWAV(paths, cfg)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "Created %s\n", wavPath)
	}

	if cfg.render != "" {
		previewPath, err := renderPreview(paths, cfg)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "Created %s\n", previewPath)
	}

	return nil
}

// readBack loads the written channel files in order.
func readBack(paths []string) ([]*signal.ArraySignal, error) {
	signals := make([]*signal.ArraySignal, 0, len(paths))

	for _, path := range paths {
		sig, err := arrayformat.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read back %s: %w", path, err)
		}

		signals = append(signals, sig)
	}

	return signals, nil
}

// exportWAV reads the written channels back and exports one measurement.
func exportWAV(paths []string, cfg config) (string, error) {
	signals, err := readBack(paths)
	if err != nil {
		return "", err
	}

	wavPath := fmt.Sprintf("%s_m%04d.wav", cfg.outputBase, cfg.wav)

	err = wavio.WriteMeasurement(wavPath, signals, cfg.wav, wavio.Options{Normalize: cfg.normalize})
	if err != nil {
		return "", err
	}

	slog.Info("Exported measurement", "measurement", cfg.wav, "channels", len(signals), "path", wavPath)

	return wavPath, nil
}

// renderPreview convolves the mono program file cfg.render with the
// receivers of one measurement and writes the result as a normalized WAV.
func renderPreview(paths []string, cfg config) (string, error) {
	signals, err := readBack(paths)
	if err != nil {
		return "", err
	}

	irs, rate, err := wavio.Measurement(signals, cfg.renderM)
	if err != nil {
		return "", err
	}

	program, programRate, err := wavio.ReadMono(cfg.render)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", cfg.render, err)
	}

	if programRate != rate {
		slog.Info("Resampling program material", "from", programRate, "to", rate)

		program, err = resampler.New().Resample(program, programRate, rate)
		if err != nil {
			return "", err
		}
	}

	out, err := render.Binaural(program, irs, render.DefaultBlockSize)
	if err != nil {
		return "", err
	}

	previewPath := fmt.Sprintf("%s_render_m%04d.wav", cfg.outputBase, cfg.renderM)

	if err := wavio.WriteChannels(previewPath, out, rate, wavio.Options{Normalize: true}); err != nil {
		return "", err
	}

	slog.Info("Rendered preview", "measurement", cfg.renderM, "channels", len(out), "path", previewPath)

	return previewPath, nil
}
