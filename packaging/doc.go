// Package packaging vendors a source tree into the embedded service
// directory of an installation, as described by a YAML manifest.
//
// A build creates <install_dir>/embedded/service/<name>, installs the bundle
// in the source tree and mirrors the tree into place with rsync --delete.
package packaging
