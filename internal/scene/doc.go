// Package scene rebuilds a host-agnostic, keyframed scene description from a
// capture timeline and a resolved asset index.
//
// Reconstruction is driven through an explicit Builder: PlaceLibrary adds
// materials, character rigs, GUI image planes, speakers and animation clips
// from the asset index; PlaceStatic positions map parts; SeedRoster fixes the
// player roster from the first frame; ApplyFrame keys players and GUI
// elements; Finalize sets the frame extent and returns the Scene.
//
// Player channels interpolate linearly. GUI text and visibility channels use
// constant (step) interpolation and only receive keys on frames where the
// element appears, so a host holds the last value in between.
package scene
