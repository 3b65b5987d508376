// Package h5 implements container.Container on top of HDF5 files, which is
// how SOFA (netCDF-4) files are stored on disk.
//
// Variables are looked up by their dataset path relative to the root group.
// netCDF dimensions are stored as dimension-scale datasets of the same name;
// their length is the declared dimension size.
package h5

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/scigolib/hdf5"

	"sofa-convert/pkg/container"
)

// File is an open HDF5 file.
type File struct {
	mu sync.Mutex

	path     string
	file     *hdf5.File
	root     *hdf5.Group
	datasets map[string]*hdf5.Dataset
	closed   bool
}

var _ container.Container = (*File)(nil)

// Open opens path read-only and indexes its datasets.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", container.ErrIO, err)
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", container.ErrIO, path, err)
	}

	h := &File{
		path:     path,
		file:     f,
		datasets: make(map[string]*hdf5.Dataset),
	}

	f.Walk(func(objPath string, obj hdf5.Object) {
		switch v := obj.(type) {
		case *hdf5.Group:
			if strings.Trim(objPath, "/") == "" {
				h.root = v
			}
		case *hdf5.Dataset:
			h.datasets[strings.TrimPrefix(objPath, "/")] = v
		}
	})

	return h, nil
}

// Path returns the file path the container was opened from.
func (h *File) Path() string {
	return h.path
}

func (h *File) dataset(name string) (*hdf5.Dataset, error) {
	if h.closed {
		return nil, container.ErrClosed
	}

	ds, ok := h.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q not found in %s", container.ErrSchema, name, h.path)
	}

	return ds, nil
}

// Variable implements container.Container.
func (h *File) Variable(name string) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ds, err := h.dataset(name)
	if err != nil {
		return nil, err
	}

	data, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", container.ErrIO, name, err)
	}

	return data, nil
}

// Slice implements container.Container.
func (h *File) Slice(name string, start, count []int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ds, err := h.dataset(name)
	if err != nil {
		return nil, err
	}

	if len(start) != len(count) {
		return nil, fmt.Errorf("%w: selection rank mismatch %d != %d", container.ErrSchema, len(start), len(count))
	}

	for i := range start {
		if start[i] < 0 || count[i] < 0 {
			return nil, fmt.Errorf("%w: negative selection in dimension %d", container.ErrSchema, i)
		}
	}

	total := container.Elements(count)
	out := make([]float64, 0, total)

	if len(start) == 0 || total == 0 {
		return out, nil
	}

	// ReadSlice returns prod(count) consecutive elements from the start
	// offset, which is only the requested block when every axis but the
	// last has a count of 1. Read the selection one row at a time.
	last := len(start) - 1
	rowStart := make([]uint64, len(start))
	rowCount := make([]uint64, len(start))

	for i := range last {
		rowCount[i] = 1
	}

	rowStart[last] = uint64(start[last])
	rowCount[last] = uint64(count[last])

	idx := make([]int, last)

	for {
		for d := range idx {
			rowStart[d] = uint64(start[d] + idx[d])
		}

		raw, err := ds.ReadSlice(rowStart, rowCount)
		if err != nil {
			return nil, fmt.Errorf("%w: read slice of %q at %v: %w", container.ErrIO, name, rowStart, err)
		}

		row, err := toFloat64s(name, raw)
		if err != nil {
			return nil, err
		}

		out = append(out, row...)

		d := last - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < count[d] {
				break
			}

			idx[d] = 0
		}

		if d < 0 {
			return out, nil
		}
	}
}

// Dimension implements container.Container.
func (h *File) Dimension(name string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, container.ErrClosed
	}

	ds, ok := h.datasets[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", container.ErrNoDimension, name)
	}

	// Dimension scales without a coordinate variable may have no storage
	// allocated; treat that as undeclared rather than as an I/O failure.
	data, err := ds.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", container.ErrNoDimension, name, err)
	}

	return len(data), nil
}

// GlobalAttribute implements container.Container.
func (h *File) GlobalAttribute(name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", container.ErrClosed
	}

	if h.root == nil {
		return "", fmt.Errorf("%w: root group not found in %s", container.ErrSchema, h.path)
	}

	attrs, err := h.root.Attributes()
	if err != nil {
		return "", fmt.Errorf("%w: read root attributes: %w", container.ErrIO, err)
	}

	for _, attr := range attrs {
		if attr.Name != name {
			continue
		}

		value, err := attr.ReadValue()
		if err != nil {
			return "", fmt.Errorf("%w: read attribute %q: %w", container.ErrIO, name, err)
		}

		return attributeString(value), nil
	}

	return "", fmt.Errorf("%w: global attribute %q not found", container.ErrSchema, name)
}

// VariableAttribute implements container.Container.
func (h *File) VariableAttribute(variable, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ds, err := h.dataset(variable)
	if err != nil {
		return "", err
	}

	attrs, err := ds.Attributes()
	if err != nil {
		return "", fmt.Errorf("%w: read attributes of %q: %w", container.ErrIO, variable, err)
	}

	for _, attr := range attrs {
		if attr.Name != name {
			continue
		}

		value, err := attr.ReadValue()
		if err != nil {
			return "", fmt.Errorf("%w: read attribute %q of %q: %w", container.ErrIO, name, variable, err)
		}

		return attributeString(value), nil
	}

	return "", fmt.Errorf("%w: attribute %q of %q not found", container.ErrSchema, name, variable)
}

// Close implements container.Container. Repeated calls return nil.
func (h *File) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	h.datasets = nil
	h.root = nil

	if err := h.file.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", container.ErrIO, h.path, err)
	}

	return nil
}

func toFloat64s(name string, raw interface{}) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}

		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}

		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: variable %q has unsupported element type %T", container.ErrSchema, name, raw)
	}
}

func attributeString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []byte:
		return strings.TrimRight(string(v), "\x00")
	default:
		return fmt.Sprint(v)
	}
}

