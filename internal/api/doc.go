// Package api defines wire-format types and converters for the HTTP API.
// It translates resolution reports, ledger runs, and reconstructed scenes
// into transport-friendly DTOs that the CLI and other consumers can render
// without coupling to internal types.
//
// # Key Types
//
// AssetsResponse: outcome of a manifest submission or retry. Status is "ok"
// when every reference resolved and "partial" otherwise, with itemized
// AssetError entries for the rest.
//
// Run/RunResponse: ledger runs and their per-asset results.
//
// DaemonStatus: lock/ledger paths, ledger stats, latest capture, cached scene
// summary, and preflight checks.
//
// # Services
//
// RunService wraps a RunReader (the ledger) and returns DTOs. Retry rebuilds
// a manifest of a run's retryable failures and resolves it again.
//
// Client talks to a running daemon over HTTP.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Raw manifest references are passed through as json.RawMessage so a client
// can resubmit them unchanged.
package api
