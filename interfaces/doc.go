// Package interfaces defines core interfaces and types for the provisioner,
// separating interface definitions from implementations.
//
// # Managed Files
//
// FileSpec describes a filesystem artifact by path, owner, group and mode.
// Guarded writes report a WriteResult (Created, Skipped, Failed), collected
// per file into FileResult values and per run into a RunReport.
//
// # Storage Interfaces
//
// StorageBackend: Provides content-addressed storage used to escrow newly
// created credentials and running-state snapshots (file, S3, Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
package interfaces
