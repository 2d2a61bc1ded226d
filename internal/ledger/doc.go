// Package ledger persists resolution runs, per-asset outcomes, and capture
// submissions in SQLite.
//
// Each manifest resolution is stored with its summary counts and one row per
// reference, including the raw entry, so a later retry can rebuild a manifest
// holding only the references that failed. The store applies WAL pragmas and
// retries SQLITE_BUSY with bounded backoff, since the daemon and CLI may open
// the same database concurrently.
package ledger
