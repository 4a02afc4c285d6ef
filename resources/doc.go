// Package resources implements the filesystem primitives used by a
// provisioning run: guarded and unconditional file writes with fixed
// ownership and permission bits, directories and symlinks.
//
// WriteIfAbsent is the "create unless a marker exists" primitive. It returns
// interfaces.Created, interfaces.Skipped or interfaces.Failed and never calls
// the content function when the marker is present, so expensive content such
// as key material is generated only when it is going to be written.
//
// Ownership is given by name and resolved through an Identity. The default
// SystemIdentity consults the host user database; tests substitute a
// StaticIdentity and a recording ChownFunc so they run unprivileged.
package resources
