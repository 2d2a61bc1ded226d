// Package capture validates recorded replay captures and exposes them as an
// ordered timeline.
//
// Parse checks the structure of every frame before returning anything: a
// capture with no frames, a frame without players, or a map part lacking
// pos/rot/meshId fails with a MalformedError naming the field and the 1-based
// frame index. Rotations arrive in degrees and are converted to radians here,
// once, so nothing downstream converts again.
package capture
