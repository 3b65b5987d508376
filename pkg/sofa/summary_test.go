package sofa

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	c := f.build()

	s, res, err := Summarize(c, "subject")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, c.Closed(), "Summarize leaves the container open")
	assert.Equal(t, "Test HRIR", s.Attributes["Title"])
	assert.Equal(t, "SimpleFreeFieldHRIR", s.Attributes["SOFAConventions"])
	assert.NotContains(t, s.Attributes, "RoomType")

	assert.Equal(t, res.Schema.Dimensions, s.Dimensions)
	assert.InDelta(t, 48000.0, s.SamplingRate, 0)
	assert.InDelta(t, 16.0/48000, s.Duration, 1e-15)

	assert.Equal(t, [2]float64{0, 315}, s.AzimuthRange)
	assert.Equal(t, [2]float64{-30, 30}, s.ElevationRange)
	assert.Equal(t, [2]float64{1, 1.5}, s.RadiusRange)

	require.Len(t, s.Channels, 2)

	right := s.Channels[1]
	assert.Equal(t, "right", right.Label)
	assert.InDelta(t, -0.09, right.Position[1], 0)
	assert.InDelta(t, 20*math.Log10(irValue(f.M-1, 1, f.N-1)), right.PeakDB, 1e-9)

	// Measurement 0 of the left channel is the ramp 0..15: its loudest bin
	// is DC with magnitude 120.
	left := s.Channels[0]
	assert.InDelta(t, 0.0, left.SpectralPeak, 0)
	assert.InDelta(t, 20*math.Log10(120), left.SpectralDB, 1e-9)
}

func TestSummaryPrint(t *testing.T) {
	t.Parallel()

	s, _, err := Summarize(defaultFixture().build(), "subject")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Print(&buf))

	out := buf.String()
	assert.Contains(t, out, "Source:        subject")
	assert.Contains(t, out, "Title:")
	assert.Contains(t, out, "I=1 C=3 R=2 E=1 N=16 M=8")
	assert.Contains(t, out, "[1] right")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSummaryPrintReportsWriteError(t *testing.T) {
	t.Parallel()

	s, _, err := Summarize(defaultFixture().build(), "subject")
	require.NoError(t, err)
	require.EqualError(t, s.Print(failingWriter{}), "disk full")
}

func TestSummarizeRejectsInvalidLayout(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.R = 1

	_, _, err := Summarize(f.build(), "mono")
	require.ErrorIs(t, err, ErrSchema)
}
