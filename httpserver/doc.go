// Package httpserver serves a read-only view of a provisioned host: health
// probes, credential presence with public key fingerprints, and the running
// state snapshot of the last run.
//
// Routes:
//
//	GET /livez        process is alive
//	GET /readyz       a running-state snapshot exists and the server is not drained
//	GET /api/status   credential files and fingerprints
//	GET /api/running  the running-state snapshot
//	GET /drain        mark not ready
//	GET /undrain      mark ready
//
// Private key content is never read; only its presence is reported.
package httpserver
