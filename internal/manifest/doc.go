// Package manifest models asset manifest submissions and resolves them into a
// deduplicated local asset store.
//
// Resolver.Resolve normalizes every entry, plans one job per reference, and
// runs the jobs on a bounded worker pool backed by assetstore.Store. Per-asset
// failures never abort the run: each job produces a Result record and the
// Report aggregates them with a summary, an index of resolved paths, and the
// character groupings consumed by the scene reconstructor. Logging and ledger
// persistence observe the finished report instead of steering the run.
//
// ScanAssets rebuilds the same index from an existing export directory so a
// capture can be reconstructed without resolving again.
package manifest
