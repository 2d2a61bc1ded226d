// Package daemon coordinates the long-running sodareplay process.
//
// It wires configuration, the run ledger, the manifest resolver, and the
// scene reconstructor into a single lifecycle with flock-based locking to
// prevent multiple instances. The HTTP API accepts manifest and capture
// submissions, exposes ledger runs and retries, and serves the cached scene.
// When capture watching is enabled the cached scene is rebuilt whenever the
// capture file changes on disk.
//
// Keep orchestration logic here: resolution and reconstruction live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
