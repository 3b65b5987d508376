package sofa

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"sofa-convert/pkg/container"
)

// Variable names of the SOFA convention consumed by the pipeline.
const (
	VarListenerPosition = "ListenerPosition"
	VarReceiverPosition = "ReceiverPosition"
	VarSourcePosition   = "SourcePosition"
	VarEmitterPosition  = "EmitterPosition"
	VarIR               = "Data.IR"
	VarSamplingRate     = "Data.SamplingRate"
)

// Dimension names as declared in SOFA files.
const (
	DimListeners    = "I"
	DimComponents   = "C"
	DimReceivers    = "R"
	DimEmitters     = "E"
	DimSamples      = "N"
	DimMeasurements = "M"
)

// ErrSchema is container.ErrSchema, re-exported for callers of this package.
var ErrSchema = container.ErrSchema

// Dimensions holds the declared sizes of a SOFA file.
type Dimensions struct {
	I int // listeners
	C int // coordinate components
	R int // receivers
	E int // emitters
	N int // samples per measurement
	M int // measurements
}

// String returns the dimensions in I,C,R,E,N,M order.
func (d Dimensions) String() string {
	return fmt.Sprintf("I=%d C=%d R=%d E=%d N=%d M=%d", d.I, d.C, d.R, d.E, d.N, d.M)
}

// Position is a coordinate triplet, either (x, y, z) in metres or
// (azimuth deg, elevation deg, radius m) depending on the variable's Type.
type Position [3]float64

// Schema is the validated, typed view of a SOFA file. Everything except the
// impulse responses themselves is copied in during Validate.
type Schema struct {
	Dimensions Dimensions

	ListenerPosition []Position // I
	ReceiverPosition []Position // R (listener axis squeezed)
	EmitterPosition  []Position // E (listener axis squeezed)
	SourcePosition   []Position // M

	SourcePositionType  string
	SourcePositionUnits string

	SamplingRate []float64 // I
}

// Validate reads the required variables and checks them against the
// supported layout. Dimensions declared by the container are used as-is;
// undeclared ones are inferred from element counts.
func Validate(c container.Container) (*Schema, error) {
	listener, err := c.Variable(VarListenerPosition)
	if err != nil {
		return nil, err
	}

	receiver, err := c.Variable(VarReceiverPosition)
	if err != nil {
		return nil, err
	}

	source, err := c.Variable(VarSourcePosition)
	if err != nil {
		return nil, err
	}

	emitter, err := c.Variable(VarEmitterPosition)
	if err != nil {
		return nil, err
	}

	rate, err := c.Variable(VarSamplingRate)
	if err != nil {
		return nil, err
	}

	dims, err := resolveDimensions(c, len(listener), len(receiver), len(source), len(emitter))
	if err != nil {
		return nil, err
	}

	if err := checkDimensions(dims); err != nil {
		return nil, err
	}

	counts := []struct {
		name string
		got  int
		want int
	}{
		{VarListenerPosition, len(listener), dims.I * dims.C},
		{VarReceiverPosition, len(receiver), dims.R * dims.C * dims.I},
		{VarSourcePosition, len(source), dims.M * dims.C},
		{VarEmitterPosition, len(emitter), dims.E * dims.C * dims.I},
	}

	for _, cnt := range counts {
		if cnt.got != cnt.want {
			return nil, fmt.Errorf("%w: %s has %d elements, layout %s needs %d",
				ErrSchema, cnt.name, cnt.got, dims, cnt.want)
		}
	}

	if err := probeIR(c, dims); err != nil {
		return nil, err
	}

	if len(rate) < 1 {
		return nil, fmt.Errorf("%w: %s is empty", ErrSchema, VarSamplingRate)
	}

	if rate[0] <= 0 || math.IsNaN(rate[0]) || math.IsInf(rate[0], 0) {
		return nil, fmt.Errorf("%w: %s must be positive, got %v", ErrSchema, VarSamplingRate, rate[0])
	}

	schema := &Schema{
		Dimensions:       dims,
		ListenerPosition: positions(listener),
		ReceiverPosition: positions(receiver),
		EmitterPosition:  positions(emitter),
		SourcePosition:   positions(source),
		SamplingRate:     rate,
	}

	schema.SourcePositionType, schema.SourcePositionUnits, err = sourceConvention(c)
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// resolveDimensions combines declared sizes with sizes inferred from the
// element counts of the position variables. Data.IR is only read in full
// when one of M, R or N cannot be resolved otherwise.
func resolveDimensions(c container.Container, listener, receiver, source, emitter int) (Dimensions, error) {
	var (
		dims Dimensions
		err  error
	)

	if dims.C, err = declared(c, DimComponents, 3); err != nil {
		return dims, err
	}

	if dims.C == 0 {
		return dims, fmt.Errorf("%w: component dimension C is 0", ErrSchema)
	}

	if dims.I, err = declared(c, DimListeners, listener/dims.C); err != nil {
		return dims, err
	}

	perListener := dims.C * max(dims.I, 1)

	if dims.R, err = declared(c, DimReceivers, receiver/perListener); err != nil {
		return dims, err
	}

	if dims.E, err = declared(c, DimEmitters, emitter/perListener); err != nil {
		return dims, err
	}

	if dims.M, err = declared(c, DimMeasurements, source/dims.C); err != nil {
		return dims, err
	}

	// Data.IR shares the measurement axis of SourcePosition; any
	// disagreement surfaces in the element-count and extent checks.
	dims.N, err = c.Dimension(DimSamples)
	if err == nil {
		return dims, nil
	}

	if !errors.Is(err, container.ErrNoDimension) {
		return dims, err
	}

	ir, err := c.Variable(VarIR)
	if err != nil {
		return dims, err
	}

	rows := dims.M * dims.R
	if rows == 0 {
		return dims, nil
	}

	if len(ir)%rows != 0 {
		return dims, fmt.Errorf("%w: %s has %d elements, not a multiple of M*R=%d",
			ErrSchema, VarIR, len(ir), rows)
	}

	dims.N = len(ir) / rows

	return dims, nil
}

// declared returns the declared size of dim, or fallback when the container
// does not declare it.
func declared(c container.Container, dim string, fallback int) (int, error) {
	size, err := c.Dimension(dim)
	if err == nil {
		return size, nil
	}

	if errors.Is(err, container.ErrNoDimension) {
		return fallback, nil
	}

	return 0, err
}

func checkDimensions(d Dimensions) error {
	switch {
	case d.I != 1:
		return fmt.Errorf("%w: unsupported listener count I=%d, want 1", ErrSchema, d.I)
	case d.E != 1:
		return fmt.Errorf("%w: unsupported emitter count E=%d, want 1", ErrSchema, d.E)
	case d.R < 2:
		return fmt.Errorf("%w: receiver count R=%d, want at least 2", ErrSchema, d.R)
	case d.C != 3:
		return fmt.Errorf("%w: component count C=%d, want 3", ErrSchema, d.C)
	case d.N == 0:
		return fmt.Errorf("%w: %s has no samples (N=0)", ErrSchema, VarIR)
	case d.M == 0:
		return fmt.Errorf("%w: %s has no measurements (M=0)", ErrSchema, VarIR)
	}

	return nil
}

// probeIR confirms Data.IR has exactly the (M, R, N) extent: the last
// element must be readable and the element one past the end of each axis
// must not be.
func probeIR(c container.Container, d Dimensions) error {
	_, err := c.Slice(VarIR, []int{d.M - 1, d.R - 1, d.N - 1}, []int{1, 1, 1})
	if err != nil {
		return fmt.Errorf("%w: %s does not match layout (M,R,N)=(%d,%d,%d): %w",
			ErrSchema, VarIR, d.M, d.R, d.N, err)
	}

	axes := []struct {
		dim  string
		size int
	}{
		{DimMeasurements, d.M},
		{DimReceivers, d.R},
		{DimSamples, d.N},
	}

	for i, axis := range axes {
		start := []int{0, 0, 0}
		start[i] = axis.size

		if _, err := c.Slice(VarIR, start, []int{1, 1, 1}); err == nil {
			return fmt.Errorf("%w: %s extends beyond %s=%d", ErrSchema, VarIR, axis.dim, axis.size)
		}
	}

	return nil
}

// sourceConvention returns the Type and Units attributes of SourcePosition.
// Files that omit them are taken to be spherical in degree/degree/metre.
func sourceConvention(c container.Container) (typ, units string, err error) {
	typ, err = optionalAttribute(c, VarSourcePosition, "Type", "spherical")
	if err != nil {
		return "", "", err
	}

	units, err = optionalAttribute(c, VarSourcePosition, "Units", "degree, degree, metre")
	if err != nil {
		return "", "", err
	}

	if !strings.EqualFold(strings.TrimSpace(typ), "spherical") {
		return "", "", fmt.Errorf("%w: unsupported %s type %q, want spherical", ErrSchema, VarSourcePosition, typ)
	}

	return typ, units, nil
}

func optionalAttribute(c container.Container, variable, name, fallback string) (string, error) {
	value, err := c.VariableAttribute(variable, name)
	if err == nil {
		return value, nil
	}

	if errors.Is(err, container.ErrSchema) {
		return fallback, nil
	}

	return "", err
}

// positions splits a row-major (rows, 3[, 1]) array into triplets.
func positions(data []float64) []Position {
	out := make([]Position, len(data)/3)
	for i := range out {
		copy(out[i][:], data[i*3:i*3+3])
	}

	return out
}
