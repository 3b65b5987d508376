package h5_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/scigolib/hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sofa-convert/pkg/arrayformat"
	"sofa-convert/pkg/container"
	"sofa-convert/pkg/container/h5"
	"sofa-convert/pkg/sofa"
)

func irValue(m, r, n int) float64 {
	return float64(r*1_000_000 + m*1000 + n)
}

type dataset struct {
	name  string
	dims  []uint64
	data  []float64
	attrs map[string]string
}

// writeSOFA writes a single-listener, single-emitter SOFA layout with m
// measurements, r receivers and n samples, plus a declared R dimension.
func writeSOFA(t *testing.T, m, r, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sofa")

	ir := make([]float64, m*r*n)
	for i := range m {
		for j := range r {
			for k := range n {
				ir[(i*r+j)*n+k] = irValue(i, j, k)
			}
		}
	}

	source := make([]float64, 0, m*3)
	for i := range m {
		source = append(source, float64(i)*0.5, float64(i%5)*10, 1+0.25*float64(i%2))
	}

	receiver := make([]float64, 0, r*3)
	for j := range r {
		receiver = append(receiver, 0, 0.09*float64(1-2*(j%2)), 0)
	}

	receiverIndex := make([]float64, r)
	for j := range receiverIndex {
		receiverIndex[j] = float64(j)
	}

	datasets := []dataset{
		{name: "/ListenerPosition", dims: []uint64{1, 3}, data: []float64{0, 0, 0}},
		{name: "/ReceiverPosition", dims: []uint64{uint64(r), 3, 1}, data: receiver},
		{
			name: "/SourcePosition", dims: []uint64{uint64(m), 3}, data: source,
			attrs: map[string]string{"Units": "degree, degree, metre"},
		},
		{name: "/EmitterPosition", dims: []uint64{1, 3, 1}, data: []float64{0, 0, 0}},
		{name: "/Data.IR", dims: []uint64{uint64(m), uint64(r), uint64(n)}, data: ir},
		{name: "/Data.SamplingRate", dims: []uint64{1}, data: []float64{48000}},
		{name: "/R", dims: []uint64{uint64(r)}, data: receiverIndex},
	}

	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)

	for _, d := range datasets {
		ds, err := fw.CreateDataset(d.name, hdf5.Float64, d.dims)
		require.NoError(t, err, d.name)
		require.NoError(t, ds.Write(d.data), d.name)

		for k, v := range d.attrs {
			require.NoError(t, ds.WriteAttribute(k, v), d.name)
		}
	}

	require.NoError(t, fw.Close())

	return path
}

func TestSliceReturnsEachReceiver(t *testing.T) {
	t.Parallel()

	const m, r, n = 4, 2, 8

	f, err := h5.Open(writeSOFA(t, m, r, n))
	require.NoError(t, err)
	defer f.Close()

	for rec := range r {
		got, err := f.Slice("Data.IR", []int{0, rec, 0}, []int{m, 1, n})
		require.NoError(t, err)
		require.Len(t, got, m*n)

		for i := range m {
			for k := range n {
				assert.InDelta(t, irValue(i, rec, k), got[i*n+k], 0, "receiver %d measurement %d sample %d", rec, i, k)
			}
		}
	}

	got, err := f.Slice("Data.IR", []int{1, 0, 2}, []int{2, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{
		irValue(1, 0, 2), irValue(1, 0, 3), irValue(1, 0, 4),
		irValue(1, 1, 2), irValue(1, 1, 3), irValue(1, 1, 4),
		irValue(2, 0, 2), irValue(2, 0, 3), irValue(2, 0, 4),
		irValue(2, 1, 2), irValue(2, 1, 3), irValue(2, 1, 4),
	}, got)

	_, err = f.Slice("Data.IR", []int{m, 0, 0}, []int{1, 1, 1})
	require.ErrorIs(t, err, container.ErrIO, "one past the measurement axis")

	_, err = f.Slice("Data.IR", []int{0, 0}, []int{1, 1, 1})
	require.ErrorIs(t, err, container.ErrSchema)
}

func TestDimensionAndAttributeFallbacks(t *testing.T) {
	t.Parallel()

	f, err := h5.Open(writeSOFA(t, 3, 2, 4))
	require.NoError(t, err)
	defer f.Close()

	size, err := f.Dimension("R")
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	_, err = f.Dimension("M")
	require.ErrorIs(t, err, container.ErrNoDimension)

	units, err := f.VariableAttribute("SourcePosition", "Units")
	require.NoError(t, err)
	assert.Equal(t, "degree, degree, metre", units)

	_, err = f.VariableAttribute("SourcePosition", "Type")
	require.ErrorIs(t, err, container.ErrSchema)

	_, err = f.VariableAttribute("Missing", "Type")
	require.ErrorIs(t, err, container.ErrSchema)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Slice("Data.IR", []int{0, 0, 0}, []int{1, 1, 1})
	require.ErrorIs(t, err, container.ErrClosed)
}

func TestConvertHDF5File(t *testing.T) {
	t.Parallel()

	const m, r, n = 710, 2, 512

	input := writeSOFA(t, m, r, n)
	base := filepath.Join(t.TempDir(), "subject")

	paths, err := sofa.Convert(input, base, sofa.Options{})
	require.NoError(t, err)
	require.Equal(t, []string{base + "_left.asig", base + "_right.asig"}, paths)

	for rec, path := range paths {
		sig, err := arrayformat.ReadFile(path)
		require.NoError(t, err)

		rows, cols := sig.Time.Dims()
		require.Equal(t, m, rows)
		require.Equal(t, n, cols)
		assert.InDelta(t, 48000.0, sig.Time.SamplingRate(), 0)

		for _, i := range []int{0, 1, 355, m - 1} {
			for _, k := range []int{0, 7, n - 1} {
				assert.InDelta(t, irValue(i, rec, k), sig.Time.At(i, k), 0,
					"receiver %d measurement %d sample %d", rec, i, k)
			}
		}

		az, colat, radius := sig.Grid.Point(0)
		assert.InDelta(t, 0.0, az, 1e-12)
		assert.InDelta(t, math.Pi/2, colat, 1e-12)
		assert.InDelta(t, 1.0, radius, 0)

		az, colat, radius = sig.Grid.Point(3)
		assert.InDelta(t, 1.5*math.Pi/180, az, 1e-12)
		assert.InDelta(t, math.Pi/2-30*math.Pi/180, colat, 1e-12)
		assert.InDelta(t, 1.25, radius, 0)
	}
}
