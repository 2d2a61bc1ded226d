// Package assetstore materializes remote assets on local disk with
// at-most-one fetch per key.
//
// Store.Ensure short-circuits when the destination already exists, collapses
// concurrent callers for the same key onto one fetch, and reuses bytes already
// on disk when the same key is requested at a second location (for example a
// mesh referenced both at the top level and by a character). Existence checks
// and writes go through the pluggable Cache interface; FileCache is the
// filesystem-backed default.
package assetstore
