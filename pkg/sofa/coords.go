package sofa

import (
	"math"

	"sofa-convert/pkg/signal"
)

const degToRad = math.Pi / 180

// ConvertSourcePositions converts (azimuth deg, elevation deg, radius m)
// triplets to azimuth and colatitude in radians with the radius unchanged.
// No wrapping or clamping is applied: azimuth outside [0, 360) degrees and
// elevation outside [-90, 90] degrees pass straight through.
func ConvertSourcePositions(positions []Position) (azimuth, colatitude, radius []float64) {
	azimuth = make([]float64, len(positions))
	colatitude = make([]float64, len(positions))
	radius = make([]float64, len(positions))

	for i, p := range positions {
		azimuth[i] = p[0] * degToRad
		colatitude[i] = math.Pi/2 - p[1]*degToRad
		radius[i] = p[2]
	}

	return azimuth, colatitude, radius
}

// NewGrid builds the spherical grid shared by every receiver channel.
func NewGrid(s *Schema) *signal.SphericalGrid {
	az, colat, r := ConvertSourcePositions(s.SourcePosition)
	return signal.NewSphericalGrid(az, colat, r)
}
