// Package preflight provides readiness checks for the filesystem paths and
// the asset CDN that sodareplay depends on.
//
// The daemon runs RunAll at startup and logs each failure as a warning; the
// CLI "soda status" command renders the same results as a table.
package preflight
