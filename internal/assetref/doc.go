// Package assetref turns raw manifest entries into typed asset references,
// canonical deduplication keys, and deterministic on-disk locations.
//
// A raw entry is either a string carrying a numeric asset ID (possibly
// surrounded by noise such as "rbxassetid://") or an inline primitive
// descriptor object. Normalize resolves that union once; downstream code
// switches on Reference.Kind and never re-inspects the JSON.
//
// Keys take the form "<category>_<id>" for remote assets and
// "prim_<shape>_<sx>x<sy>x<sz>" for primitives. Primitives sharing shape and
// size share a key, and therefore a file.
package assetref
