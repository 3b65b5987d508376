package sofa

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sofa-convert/pkg/arrayformat"
	"sofa-convert/pkg/container"
)

func TestConvertFromEndToEnd(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	c := f.build()
	base := filepath.Join(t.TempDir(), "hrtf")

	paths, err := ConvertFrom(c, "subject", base, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{base + "_left.asig", base + "_right.asig"}, paths)

	assert.True(t, c.Closed(), "container is released")

	for r, path := range paths {
		sig, err := arrayformat.ReadFile(path)
		require.NoError(t, err)

		assert.Equal(t, r, sig.Channel)
		assert.Equal(t, ChannelLabel(r, 2), sig.Label)
		assert.Equal(t, "subject", sig.Source)
		assert.InDelta(t, f.rate, sig.Time.SamplingRate(), 0)

		m, n := sig.Time.Dims()
		require.Equal(t, f.M, m)
		require.Equal(t, f.N, n)

		for i := range m {
			for j := range n {
				require.Equal(t, math.Float64bits(irValue(i, r, j)), math.Float64bits(sig.Time.At(i, j)))
			}
		}

		az, colat, rad := sig.Grid.Point(0)
		assert.InDelta(t, 0.0, az, 1e-12)
		assert.InDelta(t, math.Pi/2, colat, 1e-12)
		assert.InDelta(t, 1.0, rad, 0)
	}
}

func TestReadSharesOneGrid(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.R = 4

	res, err := Read(f.build(), "array")
	require.NoError(t, err)
	require.Len(t, res.Signals, 4)

	for r, sig := range res.Signals {
		assert.Same(t, res.Grid, sig.Grid)
		assert.Equal(t, r, sig.Channel)
		assert.Equal(t, ChannelLabel(r, 4), sig.Label)
	}
}

func TestConvertFromClosesContainerOnFailure(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := defaultFixture()
		f.I = 2
		c := f.build()

		_, err := ConvertFrom(c, "bad", filepath.Join(t.TempDir(), "out"), Options{})
		require.ErrorIs(t, err, ErrSchema)
		assert.True(t, c.Closed())
	})

	t.Run("write", func(t *testing.T) {
		t.Parallel()

		c := defaultFixture().build()
		base := filepath.Join(t.TempDir(), "missing", "out")

		_, err := ConvertFrom(c, "subject", base, Options{})
		require.ErrorIs(t, err, container.ErrIO)
		assert.Contains(t, err.Error(), "channel 0")
		assert.True(t, c.Closed())
	})

	t.Run("encoding", func(t *testing.T) {
		t.Parallel()

		c := defaultFixture().build()

		_, err := ConvertFrom(c, "subject", filepath.Join(t.TempDir(), "out"), Options{Encoding: 9})
		require.ErrorIs(t, err, arrayformat.ErrUnsupportedEncoding)
		assert.True(t, c.Closed())
	})
}

func TestConvertFromParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.R = 5
	dir := t.TempDir()

	seq, err := ConvertFrom(f.build(), "array", filepath.Join(dir, "seq"), Options{})
	require.NoError(t, err)

	par, err := ConvertFrom(f.build(), "array", filepath.Join(dir, "par"), Options{Parallel: true})
	require.NoError(t, err)

	require.Len(t, par, 5)

	for i := range seq {
		assert.True(t, strings.HasSuffix(par[i], "_"+ChannelLabel(i, 5)+arrayformat.Extension))

		a, err := os.ReadFile(seq[i])
		require.NoError(t, err)

		b, err := os.ReadFile(par[i])
		require.NoError(t, err)

		assert.Equal(t, a, b, "channel %d", i)
	}
}

func TestConvertFromParallelReportsLowestChannelError(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.R = 3
	c := f.build()

	_, err := ConvertFrom(c, "array", filepath.Join(t.TempDir(), "missing", "out"), Options{Parallel: true})
	require.ErrorIs(t, err, container.ErrIO)
	assert.Contains(t, err.Error(), "channel 0")
	assert.True(t, c.Closed())
}

func TestConvertFromResamplesAndEncodes(t *testing.T) {
	t.Parallel()

	f := defaultFixture()
	f.N = 32
	base := filepath.Join(t.TempDir(), "hrtf")

	paths, err := ConvertFrom(f.build(), "subject", base, Options{
		TargetRate: 96000,
		Encoding:   arrayformat.EncodingFloat32,
	})
	require.NoError(t, err)

	file, err := os.Open(paths[0])
	require.NoError(t, err)
	defer file.Close()

	reader, err := arrayformat.NewReader(file)
	require.NoError(t, err)

	header := reader.Header()
	assert.Equal(t, arrayformat.EncodingFloat32, header.Encoding)
	assert.InDelta(t, 96000.0, header.SamplingRate, 0)
	assert.Equal(t, 64, header.Samples)
	assert.Equal(t, f.M, header.Measurements)
}

func TestConvertFromLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := ConvertFrom(defaultFixture().build(), "subject", filepath.Join(t.TempDir(), "hrtf"), Options{Logger: logger})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "validated SOFA file")
	assert.Contains(t, out, "wrote channel")
	assert.Contains(t, out, "label=right")
}

func TestConvertMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Convert(filepath.Join(t.TempDir(), "absent.sofa"), "out", Options{})
	require.ErrorIs(t, err, container.ErrIO)

	_, err = Load(filepath.Join(t.TempDir(), "absent.sofa"))
	require.ErrorIs(t, err, container.ErrIO)
}
