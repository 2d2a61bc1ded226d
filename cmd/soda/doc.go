// Command soda is the sodareplay CLI.
//
// It runs the ingest daemon (serve), resolves manifests and reconstructs
// scenes locally (resolve, reconstruct), inspects and retries ledger runs
// (runs list|show|retry), reports readiness (status), and manages the
// configuration file (config init|validate). Run commands talk to a running
// daemon when one answers on api_bind and open the ledger directly otherwise.
package main
