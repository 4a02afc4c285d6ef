// Package config builds the merged private_chef configuration of a run from
// the built-in defaults, host facts and the operator override file.
package config
