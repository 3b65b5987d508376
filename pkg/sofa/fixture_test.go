package sofa

import (
	"sofa-convert/pkg/container"
)

// sofaFixture describes an in-memory SOFA container for tests.
type sofaFixture struct {
	I, R, E, M, N int

	rate       float64
	declare    bool           // declare dimension sizes
	overrides  map[string]int // declared sizes replacing the real ones
	skip       string         // variable to leave out
	sourceType string         // SourcePosition Type attribute; "" omits it
	irMeasures int            // Data.IR measurement extent; 0 means M
}

func defaultFixture() sofaFixture {
	return sofaFixture{
		I: 1, R: 2, E: 1, M: 8, N: 16,
		rate:       48000,
		declare:    true,
		sourceType: "spherical",
	}
}

// irValue is the sample stored at Data.IR[m, r, n].
func irValue(m, r, n int) float64 {
	return float64(r)*1e6 + float64(m)*1e3 + float64(n)
}

// sourcePosition is the (azimuth deg, elevation deg, radius m) of
// measurement m. Measurement 0 is straight ahead at 1 m.
func sourcePosition(m int) Position {
	elevations := []float64{0, 30, -30}

	return Position{
		float64(m * 45 % 360),
		elevations[m%3],
		1 + float64(m%2)*0.5,
	}
}

func (f sofaFixture) build() *container.Memory {
	const c = 3

	mem := container.NewMemory()

	set := func(name string, shape []int, data []float64) {
		if name != f.skip {
			mem.SetVariable(name, shape, data)
		}
	}

	set(VarListenerPosition, []int{f.I, c}, make([]float64, f.I*c))

	receivers := make([]float64, f.R*c*f.I)
	for r := range f.R {
		y := 0.09
		if r%2 == 1 {
			y = -0.09
		}

		for i := range f.I {
			receivers[(r*c+1)*f.I+i] = y
		}
	}

	set(VarReceiverPosition, []int{f.R, c, f.I}, receivers)
	set(VarEmitterPosition, []int{f.E, c, f.I}, make([]float64, f.E*c*f.I))

	sources := make([]float64, 0, f.M*c)
	for m := range f.M {
		p := sourcePosition(m)
		sources = append(sources, p[:]...)
	}

	set(VarSourcePosition, []int{f.M, c}, sources)

	irM := f.irMeasures
	if irM == 0 {
		irM = f.M
	}

	ir := make([]float64, 0, irM*f.R*f.N)
	for m := range irM {
		for r := range f.R {
			for n := range f.N {
				ir = append(ir, irValue(m, r, n))
			}
		}
	}

	set(VarIR, []int{irM, f.R, f.N}, ir)

	rates := make([]float64, f.I)
	for i := range rates {
		rates[i] = f.rate
	}

	set(VarSamplingRate, []int{f.I}, rates)

	if f.declare {
		for name, size := range map[string]int{
			DimListeners: f.I, DimComponents: c, DimReceivers: f.R,
			DimEmitters: f.E, DimSamples: f.N, DimMeasurements: f.M,
		} {
			if o, ok := f.overrides[name]; ok {
				size = o
			}

			mem.SetDimension(name, size)
		}
	}

	if f.sourceType != "" {
		mem.SetVariableAttribute(VarSourcePosition, "Type", f.sourceType)
		mem.SetVariableAttribute(VarSourcePosition, "Units", "degree, degree, metre")
	}

	mem.SetGlobalAttribute("Conventions", "SOFA")
	mem.SetGlobalAttribute("SOFAConventions", "SimpleFreeFieldHRIR")
	mem.SetGlobalAttribute("Title", "Test HRIR")
	mem.SetGlobalAttribute("DataType", "FIR")

	return mem
}
