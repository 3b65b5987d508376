package main

import (
	"fmt"
	"math"

	"github.com/nsf/termbox-go"

	"sofa-convert/pkg/signal"
	"sofa-convert/pkg/sofa"
)

const pageStep = 10

// viewState is everything the viewer draws. Key handling only mutates it;
// drawing only reads it.
type viewState struct {
	summary *sofa.Summary
	result  *sofa.Result

	measurement int // current measurement index
	receiver    int // receiver whose waveform is shown
	exit        bool

	browseMode bool // true when browsing the measurement list
	browseIdx  int
}

func newViewState(summary *sofa.Summary, result *sofa.Result) *viewState {
	return &viewState{summary: summary, result: result}
}

func (s *viewState) measurements() int {
	return s.summary.Dimensions.M
}

func (s *viewState) receivers() int {
	return len(s.result.Signals)
}

func handleKey(ev termbox.Event, s *viewState) {
	if s.browseMode {
		handleBrowseKey(ev, s)
		return
	}

	if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
		s.exit = true
		return
	}

	switch ev.Key {
	case termbox.KeyArrowRight:
		s.measurement = wrap(s.measurement+1, s.measurements())
	case termbox.KeyArrowLeft:
		s.measurement = wrap(s.measurement-1, s.measurements())
	case termbox.KeyPgup:
		s.measurement = clamp(s.measurement-pageStep, s.measurements())
	case termbox.KeyPgdn:
		s.measurement = clamp(s.measurement+pageStep, s.measurements())
	case termbox.KeyHome:
		s.measurement = 0
	case termbox.KeyEnd:
		s.measurement = s.measurements() - 1
	case termbox.KeyTab, termbox.KeyArrowDown:
		s.receiver = wrap(s.receiver+1, s.receivers())
	case termbox.KeyArrowUp:
		s.receiver = wrap(s.receiver-1, s.receivers())
	case termbox.KeyEnter:
		s.browseMode = true
		s.browseIdx = s.measurement
	}
}

func handleBrowseKey(ev termbox.Event, s *viewState) {
	switch ev.Key {
	case termbox.KeyEsc:
		s.browseMode = false
	case termbox.KeyEnter:
		s.measurement = s.browseIdx
		s.browseMode = false
	case termbox.KeyArrowUp:
		s.browseIdx = wrap(s.browseIdx-1, s.measurements())
	case termbox.KeyArrowDown:
		s.browseIdx = wrap(s.browseIdx+1, s.measurements())
	case termbox.KeyPgup:
		s.browseIdx = clamp(s.browseIdx-pageStep, s.measurements())
	case termbox.KeyPgdn:
		s.browseIdx = clamp(s.browseIdx+pageStep, s.measurements())
	}
}

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}

	return ((i % n) + n) % n
}

func clamp(i, n int) int {
	return max(0, min(i, n-1))
}

// direction returns the source direction of measurement m in degrees as
// stored in the file, and as converted on the grid.
func (s *viewState) direction(m int) (deg sofa.Position, az, colat, radius float64) {
	deg = s.result.Schema.SourcePosition[m]
	az, colat, radius = s.result.Grid.Point(m)

	return deg, az, colat, radius
}

// gridLine formats a converted grid point for display.
func gridLine(az, colat, radius float64) string {
	return fmt.Sprintf("grid:   az %.4f rad   colat %.4f rad (%.2f deg)   r %.3f m",
		az, colat, colat*radToDeg, radius)
}

// measurementPeaks returns the peak level of measurement m on every
// receiver, in dBFS.
func (s *viewState) measurementPeaks(m int) []float64 {
	out := make([]float64, len(s.result.Signals))
	for i, sig := range s.result.Signals {
		out[i] = signal.PeakLevel(sig.Time.Row(m))
	}

	return out
}

// waveformColumns reduces x to width columns, keeping the signed sample of
// largest magnitude in each.
func waveformColumns(x []float64, width int) []float64 {
	if width <= 0 || len(x) == 0 {
		return nil
	}

	cols := make([]float64, width)

	for c := range width {
		start := c * len(x) / width
		end := max((c+1)*len(x)/width, start+1)
		end = min(end, len(x))

		for _, v := range x[start:end] {
			if math.Abs(v) > math.Abs(cols[c]) {
				cols[c] = v
			}
		}
	}

	return cols
}

// meterFill returns how many of width cells a level in dB fills on a
// minDB..maxDB scale.
func meterFill(db, minDB, maxDB float64, width int) int {
	db = math.Max(minDB, math.Min(maxDB, db))

	return int((db - minDB) / (maxDB - minDB) * float64(width))
}
