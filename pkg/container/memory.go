package container

import (
	"fmt"
	"sync"
)

// Memory is an in-process Container. It is safe to populate before handing
// it to a reader; after that it is treated as read-only.
type Memory struct {
	mu sync.Mutex

	variables  map[string]memVariable
	dimensions map[string]int
	globals    map[string]string
	attributes map[string]map[string]string

	closed     bool
	closeCalls int
}

type memVariable struct {
	shape []int
	data  []float64
}

// NewMemory creates an empty in-memory container.
func NewMemory() *Memory {
	return &Memory{
		variables:  make(map[string]memVariable),
		dimensions: make(map[string]int),
		globals:    make(map[string]string),
		attributes: make(map[string]map[string]string),
	}
}

// SetVariable stores a copy of data under name with the given shape.
// It panics if the element count does not match shape.
func (m *Memory) SetVariable(name string, shape []int, data []float64) *Memory {
	if Elements(shape) != len(data) {
		panic(fmt.Sprintf("container: variable %q has %d elements, shape %v needs %d",
			name, len(data), shape, Elements(shape)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.variables[name] = memVariable{
		shape: append([]int(nil), shape...),
		data:  append([]float64(nil), data...),
	}

	return m
}

// SetDimension declares a named dimension size.
func (m *Memory) SetDimension(name string, size int) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dimensions[name] = size

	return m
}

// SetGlobalAttribute stores a root-level string attribute.
func (m *Memory) SetGlobalAttribute(name, value string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.globals[name] = value

	return m
}

// SetVariableAttribute stores a string attribute on a variable.
func (m *Memory) SetVariableAttribute(variable, name, value string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	attrs, ok := m.attributes[variable]
	if !ok {
		attrs = make(map[string]string)
		m.attributes[variable] = attrs
	}

	attrs[name] = value

	return m
}

// Variable implements Container.
func (m *Memory) Variable(name string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	v, ok := m.variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q not found", ErrSchema, name)
	}

	return append([]float64(nil), v.data...), nil
}

// Slice implements Container.
func (m *Memory) Slice(name string, start, count []int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	v, ok := m.variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q not found", ErrSchema, name)
	}

	return hyperslab(v.shape, v.data, start, count)
}

// Dimension implements Container.
func (m *Memory) Dimension(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	size, ok := m.dimensions[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoDimension, name)
	}

	return size, nil
}

// GlobalAttribute implements Container.
func (m *Memory) GlobalAttribute(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	value, ok := m.globals[name]
	if !ok {
		return "", fmt.Errorf("%w: global attribute %q not found", ErrSchema, name)
	}

	return value, nil
}

// VariableAttribute implements Container.
func (m *Memory) VariableAttribute(variable, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	value, ok := m.attributes[variable][name]
	if !ok {
		return "", fmt.Errorf("%w: attribute %q of %q not found", ErrSchema, name, variable)
	}

	return value, nil
}

// Close implements Container. Only the first call has an effect.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	m.closed = true

	return nil
}

// Closed reports whether Close has been called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// CloseCalls returns how many times Close was called.
func (m *Memory) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeCalls
}

// hyperslab copies the block [start, start+count) out of a row-major array.
func hyperslab(shape []int, data []float64, start, count []int) ([]float64, error) {
	if len(start) != len(shape) || len(count) != len(shape) {
		return nil, fmt.Errorf("%w: selection rank %d/%d != variable rank %d",
			ErrSchema, len(start), len(count), len(shape))
	}

	for i := range shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > shape[i] {
			return nil, fmt.Errorf("%w: selection out of bounds in dimension %d: start=%d + count=%d > size=%d",
				ErrSchema, i, start[i], count[i], shape[i])
		}
	}

	total := Elements(count)
	out := make([]float64, 0, total)

	if total == 0 {
		return out, nil
	}

	// Row-major strides.
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	idx := make([]int, len(shape))
	last := len(shape) - 1

	for {
		offset := 0
		for d := range idx {
			offset += (start[d] + idx[d]) * strides[d]
		}

		out = append(out, data[offset:offset+count[last]]...)

		// Advance every axis except the innermost, which was copied whole.
		d := last - 1
		for d >= 0 {
			idx[d]++
			if idx[d] < count[d] {
				break
			}

			idx[d] = 0
			d--
		}

		if d < 0 {
			return out, nil
		}
	}
}
