// Package storage escrows credential material and running-state snapshots to
// content-addressed storage backends.
//
// Content is identified by the SHA-256 hash of its data. Credentials are
// stored as SecretType and snapshots and escrow manifests as ConfigType, in
// separate namespaces of each backend.
//
// # Storage URI Format
//
// Backends are specified as URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//
//   - file:///var/backups/private-chef
//   - s3://bucket-name/prefix?region=us-west-2&endpoint=minio.local:9000
//   - vault://vault.example.com:8200/secret/private-chef?tls=false
//
// S3 credentials come from the URI user info or from the default AWS
// credential chain. Vault authenticates with the token in VAULT_TOKEN, or
// the environment variable named by the token_env parameter.
//
// # Escrow
//
// After a run, Escrow.Deposit stores every credential file created by that
// run together with the running-state snapshot, and finally a manifest
// mapping each path to its content ID. The manifest's ID is what an operator
// needs to locate the material later:
//
//	factory := storage.NewStorageBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend(locations)
//	escrow := storage.NewEscrow(backend, files, logger)
//	manifestID, err := escrow.Deposit(ctx, report, hostname)
//
// # Multi-backend
//
// MultiStorageBackend stores to every available backend and fetches from the
// first one that has the content.
package storage
