// Package config loads, normalizes, and validates sodareplay configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays environment variables such as
// SODA_API_TOKEN for values the file leaves empty. The Config type centralizes
// every knob the daemon and CLI need so the asset store layout, CDN endpoint,
// and replay options are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
