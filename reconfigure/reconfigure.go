package reconfigure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/private-chef-provisioner/bootstrap"
	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/cryptoutils"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
	"github.com/ruteri/private-chef-provisioner/services"
	"github.com/ruteri/private-chef-provisioner/storage"
)

// ErrUnknownPhase is returned when a phase is requested by a name no phase has.
var ErrUnknownPhase = errors.New("unknown phase")

// Reconfigurer runs phases against the files of one host.
type Reconfigurer struct {
	files   *resources.Files
	runner  instanceutils.Runner
	facts   config.HostFacts
	table   *services.Table
	policy  bootstrap.Policy
	keyBits int
	escrow  *storage.Escrow
	log     *slog.Logger
}

// Option customizes a Reconfigurer.
type Option func(*Reconfigurer)

// WithPolicy overrides the credential policy from the configuration.
func WithPolicy(p bootstrap.Policy) Option {
	return func(r *Reconfigurer) { r.policy = p }
}

// WithKeyBits overrides the RSA key size from the configuration.
func WithKeyBits(bits int) Option {
	return func(r *Reconfigurer) { r.keyBits = bits }
}

// WithEscrow deposits credentials created by a run.
func WithEscrow(e *storage.Escrow) Option {
	return func(r *Reconfigurer) { r.escrow = e }
}

// WithServiceTable replaces the default service handler table.
func WithServiceTable(t *services.Table) Option {
	return func(r *Reconfigurer) { r.table = t }
}

func New(files *resources.Files, runner instanceutils.Runner, facts config.HostFacts, log *slog.Logger, opts ...Option) *Reconfigurer {
	r := &Reconfigurer{
		files:  files,
		runner: runner,
		facts:  facts,
		log:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.table == nil {
		r.table = services.NewTable(files, runner, log)
	}
	return r
}

// LoadConfig merges the defaults, host facts and the override file present on
// the host.
func (r *Reconfigurer) LoadConfig() (*config.Config, string, error) {
	override, used, err := config.LoadOverrides(config.Sources{
		Deprecated: r.files.Path(layout.DeprecatedConfigFile),
		YAML:       r.files.Path(layout.OverrideFile),
		JSON:       r.files.Path(layout.OverrideFileJSON),
	}, r.log)
	if err != nil {
		return nil, "", err
	}
	return config.Merge(config.Defaults(), override, r.facts), used, nil
}

// Run executes every phase in order.
func (r *Reconfigurer) Run(ctx context.Context) (*interfaces.RunReport, error) {
	return r.RunPhases(ctx, PhaseNames()...)
}

// RunPhases executes the named phases, in the canonical phase order.
func (r *Reconfigurer) RunPhases(ctx context.Context, names ...string) (*interfaces.RunReport, error) {
	selected, err := r.selectPhases(names)
	if err != nil {
		return nil, err
	}

	report := &interfaces.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := r.log.With(slog.String("run_id", report.RunID))
	st := &runState{report: report, log: log}

	log.Info("Starting run", slog.Int("phases", len(selected)), slog.String("fqdn", r.facts.FQDN))

	for _, p := range selected {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}

		start := time.Now()
		err := p.run(ctx, st)
		result := interfaces.PhaseResult{Name: p.name, Duration: time.Since(start)}
		if err != nil {
			result.Error = err.Error()
		}
		report.Phases = append(report.Phases, result)

		if err != nil {
			report.FinishedAt = time.Now().UTC()
			log.Error("Phase failed", slog.String("phase", p.name), "err", err)
			return report, fmt.Errorf("phase %s: %w", p.name, err)
		}
		log.Debug("Phase complete", slog.String("phase", p.name), slog.Duration("duration", result.Duration))
	}

	report.FinishedAt = time.Now().UTC()
	log.Info("Run complete",
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		slog.Int("created_credentials", len(report.CreatedFiles())))
	return report, nil
}

func (r *Reconfigurer) selectPhases(names []string) ([]phase, error) {
	all := r.phases()
	known := make(map[string]bool, len(all))
	for _, p := range all {
		known[p.name] = true
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if !known[n] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPhase, n)
		}
		want[n] = true
	}

	var selected []phase
	for _, p := range all {
		if want[p.name] {
			selected = append(selected, p)
		}
	}
	return selected, nil
}

func (r *Reconfigurer) keySize(cfg *config.Config) int {
	if r.keyBits != 0 {
		return r.keyBits
	}
	return cfg.Int(cryptoutils.DefaultRSABits, "credentials", "key_bits")
}

func (r *Reconfigurer) credentialPolicy(cfg *config.Config) (bootstrap.Policy, error) {
	if r.policy != "" {
		return r.policy, nil
	}
	return bootstrap.ParsePolicy(cfg.String("credentials", "policy"))
}
