package sofa

import (
	"errors"
	"fmt"
	"io"

	"sofa-convert/pkg/container"
	"sofa-convert/pkg/container/h5"
	"sofa-convert/pkg/signal"
)

// summaryAttributes are the global attributes reported by Summarize, in
// display order.
var summaryAttributes = []string{
	"Title",
	"Conventions",
	"SOFAConventions",
	"SOFAConventionsVersion",
	"DataType",
	"RoomType",
	"DatabaseName",
	"ListenerShortName",
	"Organization",
	"License",
}

// ChannelSummary describes one receiver.
type ChannelSummary struct {
	Channel      int
	Label        string
	Position     Position // receiver position relative to the listener
	PeakDB       float64  // peak level over all measurements, dBFS
	SpectralPeak float64  // frequency of the loudest bin of measurement 0, Hz
	SpectralDB   float64
}

// Summary is a human-oriented overview of a SOFA file.
type Summary struct {
	Source       string
	Attributes   map[string]string // only attributes present in the file
	Dimensions   Dimensions
	SamplingRate float64
	Duration     float64 // seconds per measurement
	Channels     []ChannelSummary

	// Source direction range in degrees.
	AzimuthRange   [2]float64
	ElevationRange [2]float64
	RadiusRange    [2]float64
}

// Summarize reads global attributes and all receivers of c and computes
// per-channel levels. c is not closed.
func Summarize(c container.Container, source string) (*Summary, *Result, error) {
	attrs := make(map[string]string)

	for _, name := range summaryAttributes {
		value, err := c.GlobalAttribute(name)
		if err == nil {
			attrs[name] = value
			continue
		}

		if !errors.Is(err, container.ErrSchema) {
			return nil, nil, err
		}
	}

	res, err := Read(c, source)
	if err != nil {
		return nil, nil, err
	}

	s := &Summary{
		Source:       source,
		Attributes:   attrs,
		Dimensions:   res.Schema.Dimensions,
		SamplingRate: ExtractSamplingRate(res.Schema),
	}

	if len(res.Signals) > 0 {
		s.Duration = res.Signals[0].Time.Duration()
	}

	s.AzimuthRange, s.ElevationRange, s.RadiusRange = positionRanges(res.Schema.SourcePosition)

	for i, sig := range res.Signals {
		cs, err := summarizeChannel(sig)
		if err != nil {
			return nil, nil, err
		}

		if i < len(res.Schema.ReceiverPosition) {
			cs.Position = res.Schema.ReceiverPosition[i]
		}

		s.Channels = append(s.Channels, cs)
	}

	return s, res, nil
}

// LoadSummary opens path, summarizes it and closes it.
func LoadSummary(path string) (*Summary, *Result, error) {
	f, err := h5.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	return Summarize(f, SourceName(path))
}

func summarizeChannel(sig *signal.ArraySignal) (ChannelSummary, error) {
	cs := ChannelSummary{Channel: sig.Channel, Label: sig.Label}

	m, _ := sig.Time.Dims()

	var peak float64
	for i := range m {
		peak = max(peak, signal.PeakAmplitude(sig.Time.Row(i)))
	}

	cs.PeakDB = signal.PeakLevel([]float64{peak})

	resp, err := signal.MagnitudeResponse(sig.Time.Row(0), sig.Time.SamplingRate(), 0)
	if err != nil {
		return cs, fmt.Errorf("channel %d spectrum: %w", sig.Channel, err)
	}

	cs.SpectralPeak, cs.SpectralDB = resp.Peak()

	return cs, nil
}

func positionRanges(ps []Position) (az, el, r [2]float64) {
	if len(ps) == 0 {
		return az, el, r
	}

	az = [2]float64{ps[0][0], ps[0][0]}
	el = [2]float64{ps[0][1], ps[0][1]}
	r = [2]float64{ps[0][2], ps[0][2]}

	for _, p := range ps[1:] {
		az[0], az[1] = min(az[0], p[0]), max(az[1], p[0])
		el[0], el[1] = min(el[0], p[1]), max(el[1], p[1])
		r[0], r[1] = min(r[0], p[2]), max(r[1], p[2])
	}

	return az, el, r
}

// Print writes the summary as plain text.
func (s *Summary) Print(w io.Writer) error {
	pw := &printer{w: w}

	pw.printf("Source:        %s\n", s.Source)

	for _, name := range summaryAttributes {
		if value, ok := s.Attributes[name]; ok {
			pw.printf("%-14s %s\n", name+":", value)
		}
	}

	pw.printf("Dimensions:    %s\n", s.Dimensions)
	pw.printf("Sampling rate: %g Hz\n", s.SamplingRate)
	pw.printf("IR length:     %d samples (%.2f ms)\n", s.Dimensions.N, s.Duration*1000)
	pw.printf("Azimuth:       %g .. %g deg\n", s.AzimuthRange[0], s.AzimuthRange[1])
	pw.printf("Elevation:     %g .. %g deg\n", s.ElevationRange[0], s.ElevationRange[1])
	pw.printf("Radius:        %g .. %g m\n", s.RadiusRange[0], s.RadiusRange[1])
	pw.printf("\nChannels:\n")

	for _, ch := range s.Channels {
		pw.printf("  [%d] %-6s pos=(%.3f, %.3f, %.3f)  peak %6.1f dBFS  |H| max %6.1f dB @ %.0f Hz\n",
			ch.Channel, ch.Label, ch.Position[0], ch.Position[1], ch.Position[2],
			ch.PeakDB, ch.SpectralDB, ch.SpectralPeak)
	}

	return pw.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format, args...)
}
