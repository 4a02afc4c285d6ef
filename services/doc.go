// Package services enables and disables the supervised components of a
// private Chef server.
//
// Each component identifier maps to a Handler in a Table. A run walks the
// identifiers in config.Services order and calls Enable or Disable depending
// on the component's enable flag. Most components are runit services; the
// bootstrap step and DRBD have their own handlers.
package services
