// Package services holds the cross-cutting error markers and context helpers
// shared by the resolver, the reconstructor, and the daemon.
//
// The sentinel errors classify failures into the asset/capture taxonomy so
// callers can decide between collecting a per-asset problem and aborting a
// whole run. Context helpers carry run and request identifiers that the
// logging package turns into structured fields.
package services
