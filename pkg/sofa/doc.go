// Package sofa converts SOFA spatial impulse-response files (HRIR, BRIR,
// DRIR) into per-receiver Array Signals.
//
// The pipeline is strictly linear:
//
//	container -> Validate -> ExtractReceiverMatrix -> ConvertSourcePositions
//	          -> signal.Assemble -> arrayformat.WriteFile
//
// Validate checks the dimensional layout once and returns a Schema whose
// typed fields every later stage relies on without re-checking shapes.
// Only the conventional layout is supported: one listener, one emitter and
// at least two receivers, with source positions in spherical coordinates
// (azimuth and elevation in degrees, radius in metres).
//
// # Usage
//
//	paths, err := sofa.Convert("hrtf.sofa", "out/hrtf", sofa.Options{})
//	// out/hrtf_left.asig, out/hrtf_right.asig
//
// The container is closed on every exit path. An error aborts the run;
// files already written for earlier channels are left in place.
package sofa
