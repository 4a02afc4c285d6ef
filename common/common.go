// Package common holds process-wide helpers shared by the command line tools:
// build metadata and logger construction.
package common

import (
	"log/slog"
	"os"
)

var (
	// PackageName is used as the service tag and metrics namespace.
	PackageName = "private-chef-provisioner"

	// Version is overridden at build time with -ldflags "-X ...common.Version=".
	Version = "dev"
)

// LoggingOpts selects the slog handler and the static attributes attached to
// every record.
type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string
}

// SetupLogger builds the process logger. Records go to stdout so that the
// supervisor's log collector picks them up together with command output.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
