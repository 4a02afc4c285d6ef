// Package main (cmd/private-chef-ctl) provisions and inspects a private Chef
// server host.
//
// Commands:
//
//   - reconfigure: run every phase, from configuration merge to the
//     running-state snapshot, and escrow new credentials when --escrow is set
//   - bootstrap-credentials: create missing credential pairs only
//   - show-config: print the merged configuration as it would be recorded
//   - show-escrow: print an escrow manifest by its content ID
//   - serve-status: serve health probes and credential status over HTTP
//   - vendor: vendor a component (partybus by default) into the installation
//
// Example:
//
//	private-chef-ctl --log-debug reconfigure --escrow s3://backups/chef01?region=eu-west-1
package main
