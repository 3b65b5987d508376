package sofa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sofa-convert/pkg/container"
)

func TestValidateDeclaredDimensions(t *testing.T) {
	t.Parallel()

	s, err := Validate(defaultFixture().build())
	require.NoError(t, err)

	assert.Equal(t, Dimensions{I: 1, C: 3, R: 2, E: 1, N: 16, M: 8}, s.Dimensions)
	require.Len(t, s.SourcePosition, 8)
	assert.Equal(t, Position{0, 0, 1}, s.SourcePosition[0])
	require.Len(t, s.ReceiverPosition, 2)
	assert.InDelta(t, 0.09, s.ReceiverPosition[0][1], 0)
	assert.InDelta(t, -0.09, s.ReceiverPosition[1][1], 0)
	assert.Len(t, s.ListenerPosition, 1)
	assert.Len(t, s.EmitterPosition, 1)
	assert.Equal(t, "spherical", s.SourcePositionType)
	assert.Equal(t, []float64{48000}, s.SamplingRate)
}

func TestValidateInfersUndeclaredDimensions(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.declare = false

	s, err := Validate(f.build())
	require.NoError(t, err)
	assert.Equal(t, Dimensions{I: 1, C: 3, R: 2, E: 1, N: 16, M: 8}, s.Dimensions)
}

func TestValidateDefaultsSourceConvention(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.sourceType = ""

	s, err := Validate(f.build())
	require.NoError(t, err)
	assert.Equal(t, "spherical", s.SourcePositionType)
	assert.Equal(t, "degree, degree, metre", s.SourcePositionUnits)
}

func TestValidateRejectsLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(f *sofaFixture)
		want   string
	}{
		{"two listeners", func(f *sofaFixture) { f.I = 2 }, "I=2"},
		{"two listeners inferred", func(f *sofaFixture) { f.I = 2; f.declare = false }, "I=2"},
		{"two emitters", func(f *sofaFixture) { f.E = 2 }, "E=2"},
		{"single receiver", func(f *sofaFixture) { f.R = 1 }, "R=1"},
		{"two components", func(f *sofaFixture) { f.overrides = map[string]int{DimComponents: 2} }, "C=2"},
		{"no samples", func(f *sofaFixture) { f.N = 0 }, "N=0"},
		{"no measurements", func(f *sofaFixture) { f.M = 0 }, "M=0"},
		{"receiver count mismatch", func(f *sofaFixture) { f.overrides = map[string]int{DimReceivers: 3} }, VarReceiverPosition},
		{"more IR measurements than sources", func(f *sofaFixture) { f.irMeasures = f.M + 2 }, VarIR},
		{"fewer IR measurements than sources", func(f *sofaFixture) { f.irMeasures = f.M - 2 }, VarIR},
		{"IR measurement mismatch inferred", func(f *sofaFixture) { f.irMeasures = f.M + 1; f.declare = false }, VarIR},
		{"zero sampling rate", func(f *sofaFixture) { f.rate = 0 }, VarSamplingRate},
		{"NaN sampling rate", func(f *sofaFixture) { f.rate = math.NaN() }, VarSamplingRate},
		{"cartesian sources", func(f *sofaFixture) { f.sourceType = "cartesian" }, "cartesian"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := defaultFixture()
			tc.modify(&f)

			_, err := Validate(f.build())
			require.ErrorIs(t, err, ErrSchema)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateRejectsMissingVariables(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		VarListenerPosition, VarReceiverPosition, VarSourcePosition,
		VarEmitterPosition, VarIR, VarSamplingRate,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := defaultFixture()
			f.skip = name

			_, err := Validate(f.build())
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestValidateOnClosedContainer(t *testing.T) {
	t.Parallel()

	c := defaultFixture().build()
	require.NoError(t, c.Close())

	_, err := Validate(c)
	require.ErrorIs(t, err, container.ErrClosed)
}

func TestDimensionsString(t *testing.T) {
	t.Parallel()

	d := Dimensions{I: 1, C: 3, R: 2, E: 1, N: 256, M: 1550}
	assert.Equal(t, "I=1 C=3 R=2 E=1 N=256 M=1550", d.String())
}
