// Package reconfigure runs the ordered phases that bring a host in line with
// its private Chef server configuration.
//
// A run ensures the configuration directory, merges the configuration,
// disables the one-time bootstrap once it has happened, ensures the service
// account, writes the dark launch feature flags, bootstraps the credential
// pairs, prepares the data directories and runit, enables or disables every
// service, configures the post-install tools, records the running-state
// snapshot and, when configured, escrows new credentials. The first failing
// phase aborts the run.
package reconfigure
