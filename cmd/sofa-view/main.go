// Command sofa-view is an interactive terminal browser for SOFA files.
//
// Usage:
//
//	sofa-view [options] <input.sofa>
//
// It steps through measurements showing the source direction, the peak
// level of every receiver and the waveform of the selected receiver.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"sofa-convert/pkg/sofa"
)

func main() {
	logFile := flag.String("log", "sofa-view.log", "Log file path")
	measurement := flag.Int("m", 0, "Initial measurement index")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input.sofa>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Browses the measurements of a SOFA file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *logFile, *measurement); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(input, logPath string, measurement int) error {
	// The terminal belongs to the TUI, so logs go to a file.
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	slog.SetDefault(slog.New(slog.NewTextHandler(file, nil)))
	slog.Info("Starting sofa-view", "input", input)

	summary, result, err := sofa.LoadSummary(input)
	if err != nil {
		slog.Error("Failed to load SOFA file", "input", input, "error", err)
		return err
	}

	slog.Info("SOFA file loaded", "dimensions", summary.Dimensions.String(), "rate", summary.SamplingRate)

	state := newViewState(summary, result)

	if measurement < 0 || measurement >= state.measurements() {
		return fmt.Errorf("measurement %d out of range [0, %d)", measurement, state.measurements())
	}

	state.measurement = measurement

	return runTUI(state)
}
