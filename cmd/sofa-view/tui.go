package main

import (
	"fmt"
	"math"

	"github.com/nsf/termbox-go"
)

const (
	colDef     = termbox.ColorDefault
	colWhite   = termbox.ColorWhite
	colRed     = termbox.ColorRed
	colGreen   = termbox.ColorGreen
	colYellow  = termbox.ColorYellow
	colCyan    = termbox.ColorCyan
	colMagenta = termbox.ColorMagenta
)

const (
	meterMinDB = -96.0
	meterMaxDB = 6.0
	radToDeg   = 180 / math.Pi
)

func runTUI(state *viewState) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("failed to initialize TUI: %w", err)
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	eventQueue := make(chan termbox.Event)

	go func() {
		for {
			eventQueue <- termbox.PollEvent()
		}
	}()

	draw(state)

	for !state.exit {
		ev := <-eventQueue

		switch ev.Type {
		case termbox.EventKey:
			handleKey(ev, state)
		case termbox.EventError:
			return fmt.Errorf("terminal event: %w", ev.Err)
		}

		draw(state)
	}

	return nil
}

func draw(state *viewState) {
	_ = termbox.Clear(colDef, colDef)

	if state.browseMode {
		drawBrowser(state)
		return
	}

	s := state.summary
	w, h := termbox.Size()

	title := s.Source
	if t, ok := s.Attributes["Title"]; ok && t != "" {
		title = fmt.Sprintf("%s (%s)", t, s.Source)
	}

	printTB(0, 0, colCyan, colDef, "SOFA Viewer - "+title)
	printTB(0, 1, colWhite, colDef, fmt.Sprintf("%s   %g Hz   %d samples (%.2f ms)",
		s.Dimensions, s.SamplingRate, s.Dimensions.N, s.Duration*1000))
	printTB(0, 2, colDef, colDef, "Left/Right: measurement  Up/Down/Tab: receiver  Enter: browse  'q'/Esc: quit")
	printTB(0, 3, colDef, colDef, "----------------------------------------------------------------------------")

	m := state.measurement
	deg, az, colat, radius := state.direction(m)

	printTB(0, 5, colYellow, colDef, fmt.Sprintf("Measurement %d / %d", m, state.measurements()-1))
	printTB(2, 6, colWhite, colDef, fmt.Sprintf("azimuth %8.2f deg   elevation %7.2f deg   radius %.3f m",
		deg[0], deg[1], deg[2]))
	printTB(2, 7, colWhite, colDef, gridLine(az, colat, radius))

	meterY := 9
	printTB(0, meterY, colYellow, colDef, "Peak level:")

	for i, db := range state.measurementPeaks(m) {
		color := colGreen
		if i == state.receiver {
			color = colRed
		}

		drawMeter(meterY+1+i, state.result.Signals[i].Label, db, color)
	}

	waveY := meterY + 2 + state.receivers()
	sig := state.result.Signals[state.receiver]
	printTB(0, waveY, colYellow, colDef, fmt.Sprintf("Waveform [%s]:", sig.Label))

	drawWaveform(waveY+1, w-2, max(h-waveY-2, 4), sig.Time.Row(m))

	termbox.Flush()
}

func drawBrowser(state *viewState) {
	w, h := termbox.Size()

	printTB(0, 0, colMagenta, colDef, "Select Measurement")
	printTB(0, 1, colDef, colDef, "Use Up/Down to browse, PgUp/PgDn for fast scroll")
	printTB(0, 2, colDef, colDef, "Enter to select, Esc to cancel")
	printTB(0, 3, colDef, colDef, "─────────────────────────────────────────────────────────────────")

	listStartY := 5
	listHeight := max(h-listStartY-2, 5)

	scrollOffset := 0
	if state.browseIdx >= listHeight {
		scrollOffset = state.browseIdx - listHeight + 1
	}

	total := state.measurements()

	for i := 0; i < listHeight && scrollOffset+i < total; i++ {
		idx := scrollOffset + i
		deg, _, _, _ := state.direction(idx)

		col := colWhite
		bgColor := colDef
		prefix := "  "

		if idx == state.browseIdx {
			col = colDef
			bgColor = colWhite
			prefix = "> "
		}

		suffix := ""
		if idx == state.measurement {
			suffix = " [current]"
		}

		line := fmt.Sprintf("%s%5d: az %8.2f  el %7.2f  r %.3f%s", prefix, idx, deg[0], deg[1], deg[2], suffix)
		if len(line) > w-1 {
			line = line[:max(w-1, 0)]
		}

		printTB(0, listStartY+i, col, bgColor, line)
	}

	if total > listHeight {
		scrollInfo := fmt.Sprintf("Showing %d-%d of %d",
			scrollOffset+1, min(scrollOffset+listHeight, total), total)
		printTB(0, h-1, colYellow, colDef, scrollInfo)
	}

	termbox.Flush()
}

func drawMeter(yPos int, label string, db float64, color termbox.Attribute) {
	const (
		barWidth = 60
		xPos     = 2
	)

	filled := meterFill(db, meterMinDB, meterMaxDB, barWidth)
	shown := math.Max(meterMinDB, db)

	printTB(xPos, yPos, colDef, colDef, fmt.Sprintf("%-6s [%6.1f dB] ", label, shown))

	startX := xPos + 18

	for i := range barWidth {
		barChar := '░'
		if i < filled {
			barChar = '█'
		}

		termbox.SetCell(startX+i, yPos, barChar, color, colDef)
	}
}

// drawWaveform plots x as one column per cell, centered on the middle row
// and scaled to its own peak.
func drawWaveform(yPos, width, height int, x []float64) {
	cols := waveformColumns(x, width)

	var peak float64
	for _, v := range cols {
		peak = math.Max(peak, math.Abs(v))
	}

	mid := yPos + height/2
	half := float64(height / 2)

	for c, v := range cols {
		termbox.SetCell(1+c, mid, '─', colDef, colDef)

		if peak == 0 || math.IsNaN(v) {
			continue
		}

		rows := int(math.Round(math.Abs(v) / peak * half))
		for r := 1; r <= rows; r++ {
			y := mid - r
			if v < 0 {
				y = mid + r
			}

			termbox.SetCell(1+c, y, '│', colCyan, colDef)
		}
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
