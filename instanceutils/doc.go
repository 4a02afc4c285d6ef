// Package instanceutils provides host level utilities used while provisioning
// a private Chef server instance.
//
// # Commands
//
// External programs (useradd, bundle, rsync, service bootstrap commands) are
// run through the Runner interface. ExecRunner executes them with os/exec and
// logs their combined output; Recorder captures invocations without running
// anything so callers can be tested on an unprivileged machine.
//
// # Service account
//
// EnsureUser makes sure the account the services run as exists, creating it
// with useradd when the identity lookup fails.
package instanceutils
