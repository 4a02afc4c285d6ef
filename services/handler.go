package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/resources"
)

var (
	// ErrUnknownService is returned for identifiers without a handler.
	ErrUnknownService = errors.New("unknown service")
	// ErrMissingCommand is returned when a supervised service has no command configured.
	ErrMissingCommand = errors.New("service has no command")
)

// Handler brings a component into its enabled or disabled state. Both
// operations are idempotent.
type Handler interface {
	Enable(ctx context.Context, service string, cfg *config.Config) error
	Disable(ctx context.Context, service string, cfg *config.Config) error
}

// Outcome records the state a service was brought into.
type Outcome struct {
	Service string `json:"service"`
	Enabled bool   `json:"enabled"`
}

// Table maps service identifiers to handlers.
type Table struct {
	handlers map[string]Handler
	log      *slog.Logger
}

// NewTable returns the handler table for every identifier in config.Services.
func NewTable(files *resources.Files, runner instanceutils.Runner, log *slog.Logger) *Table {
	runit := NewRunit(files, log)
	t := &Table{handlers: make(map[string]Handler, len(config.Services)), log: log}
	for _, svc := range config.Services {
		t.handlers[svc] = runit
	}
	t.handlers["bootstrap"] = &BootstrapHandler{files: files, runner: runner, log: log}
	t.handlers["drbd"] = &DRBDHandler{files: files, log: log}
	return t
}

// Register replaces the handler of a service.
func (t *Table) Register(service string, h Handler) {
	t.handlers[service] = h
}

// Lookup returns the handler of a service.
func (t *Table) Lookup(service string) (Handler, error) {
	h, ok := t.handlers[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return h, nil
}

// Apply enables or disables every service in config.Services order. The
// first failing handler aborts.
func (t *Table) Apply(ctx context.Context, cfg *config.Config) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(config.Services))
	for _, svc := range config.Services {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		h, err := t.Lookup(svc)
		if err != nil {
			return outcomes, err
		}

		enabled := cfg.ServiceEnabled(svc)
		if enabled {
			err = h.Enable(ctx, svc, cfg)
		} else {
			err = h.Disable(ctx, svc, cfg)
		}
		if err != nil {
			return outcomes, fmt.Errorf("service %s: %w", svc, err)
		}

		t.log.Debug("Service configured", slog.String("service", svc), slog.Bool("enabled", enabled))
		outcomes = append(outcomes, Outcome{Service: svc, Enabled: enabled})
	}
	return outcomes, nil
}
