// Package container defines the narrow read-only capability the SOFA
// pipeline needs from a self-describing multidimensional data file.
//
// A Container hands out dense float64 copies of named variables, single
// hyperslabs of them, declared dimension sizes and string attributes. No
// view survives Close: everything returned is owned by the caller.
//
// Two backends exist: Memory (in-process, used for fixtures and tests) and
// the HDF5 backend in the h5 subpackage.
package container

import "errors"

// Errors.
var (
	// ErrIO reports that a file could not be opened, read or written.
	ErrIO = errors.New("container: i/o error")

	// ErrSchema reports a missing or inconsistent variable, attribute or
	// dimension.
	ErrSchema = errors.New("container: schema error")

	// ErrNoDimension reports that the container does not declare the
	// requested dimension. Callers may fall back to inferring it.
	ErrNoDimension = errors.New("container: dimension not declared")

	// ErrClosed reports use of a container after Close.
	ErrClosed = errors.New("container: closed")
)

// Container is an exclusively owned handle to one open data file.
//
// Close must be called exactly once on every exit path; implementations
// make repeated calls return nil so a deferred Close after an explicit one
// is harmless.
type Container interface {
	// Variable returns a row-major copy of every element of the named
	// variable.
	Variable(name string) ([]float64, error)

	// Slice returns a row-major copy of the hyperslab of the named
	// variable starting at start with extent count in each dimension.
	Slice(name string, start, count []int) ([]float64, error)

	// Dimension returns the declared size of the named dimension.
	Dimension(name string) (int, error)

	// GlobalAttribute returns a string attribute of the file root.
	GlobalAttribute(name string) (string, error)

	// VariableAttribute returns a string attribute attached to a variable.
	VariableAttribute(variable, name string) (string, error)

	// Close releases the underlying file.
	Close() error
}

// Elements returns the number of elements described by shape.
func Elements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}
