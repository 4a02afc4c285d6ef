package reconfigure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/private-chef-provisioner/bootstrap"
	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/services"
)

// Phase names, in run order.
const (
	PhaseConfigDir    = "ensure-config-dir"
	PhaseLoadConfig   = "load-config"
	PhaseBootstrapped = "check-bootstrapped"
	PhaseUser         = "ensure-user"
	PhaseDarkLaunch   = "dark-launch"
	PhaseCredentials  = "credentials"
	PhaseDirectories  = "directories"
	PhaseRunit        = "runit"
	PhaseServices     = "services"
	PhasePostSteps    = "post-steps"
	PhaseRunningState = "running-state"
	PhaseEscrow       = "escrow"
)

// CredentialPhases bootstrap the credential pairs without touching services.
// New credentials are escrowed when an escrow backend is configured.
var CredentialPhases = []string{PhaseConfigDir, PhaseLoadConfig, PhaseUser, PhaseCredentials, PhaseEscrow}

var errNoConfig = errors.New("configuration not loaded")

type runState struct {
	cfg    *config.Config
	report *interfaces.RunReport
	log    *slog.Logger
}

type phase struct {
	name string
	run  func(ctx context.Context, st *runState) error
}

func (r *Reconfigurer) phases() []phase {
	return []phase{
		{PhaseConfigDir, r.ensureConfigDir},
		{PhaseLoadConfig, r.loadConfig},
		{PhaseBootstrapped, r.checkBootstrapped},
		{PhaseUser, r.ensureUser},
		{PhaseDarkLaunch, r.writeDarkLaunch},
		{PhaseCredentials, r.bootstrapCredentials},
		{PhaseDirectories, r.ensureDirectories},
		{PhaseRunit, r.installRunit},
		{PhaseServices, r.applyServices},
		{PhasePostSteps, r.applyPostSteps},
		{PhaseRunningState, r.writeRunningState},
		{PhaseEscrow, r.depositEscrow},
	}
}

// PhaseNames lists every phase in run order.
func PhaseNames() []string {
	r := &Reconfigurer{}
	var names []string
	for _, p := range r.phases() {
		names = append(names, p.name)
	}
	return names
}

func (r *Reconfigurer) ensureConfigDir(_ context.Context, _ *runState) error {
	spec := interfaces.FileSpec{Path: layout.ConfigDir, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}
	return r.files.EnsureDirectory(spec, true)
}

func (r *Reconfigurer) loadConfig(_ context.Context, st *runState) error {
	cfg, used, err := r.LoadConfig()
	if err != nil {
		return err
	}
	st.cfg = cfg
	st.log.Info("Configuration loaded", slog.String("override", used), slog.String("config", cfg.Describe()))
	return nil
}

func (r *Reconfigurer) checkBootstrapped(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	done, err := r.files.Exists(layout.BootstrappedMarker)
	if err != nil {
		return err
	}
	if done {
		st.cfg = st.cfg.WithBootstrapDisabled()
		st.log.Debug("Server already bootstrapped, bootstrap disabled")
	}
	return nil
}

func (r *Reconfigurer) ensureUser(ctx context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	_, err := instanceutils.EnsureUser(ctx, r.files.Identity(), r.runner, instanceutils.Account{
		Name:  st.cfg.Username(),
		Home:  st.cfg.String("user", "home"),
		Shell: st.cfg.String("user", "shell"),
	}, st.log)
	return err
}

func (r *Reconfigurer) writeDarkLaunch(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	spec := interfaces.FileSpec{Path: layout.DarkLaunchFeatures, Owner: st.cfg.Username(), Group: layout.RootGroup, Mode: 0644}
	return r.writeJSON(spec, st.cfg.DarkLaunch())
}

func (r *Reconfigurer) bootstrapCredentials(ctx context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	policy, err := r.credentialPolicy(st.cfg)
	if err != nil {
		return err
	}

	pairs := bootstrap.DefaultPairs(st.cfg.Username(), r.keySize(st.cfg))
	results, err := bootstrap.NewSequencer(r.files, pairs, policy, st.log).Run(ctx)
	st.report.Credentials = results
	return err
}

func (r *Reconfigurer) ensureDirectories(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	dirs := []struct {
		spec      interfaces.FileSpec
		recursive bool
	}{
		{interfaces.FileSpec{Path: layout.ChefDir, Owner: layout.RootUser, Group: st.cfg.Username(), Mode: 0775}, false},
		{interfaces.FileSpec{Path: layout.VarDir, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}, true},
	}
	for _, d := range dirs {
		if err := r.files.EnsureDirectory(d.spec, d.recursive); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconfigurer) installRunit(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	return services.NewRunit(r.files, st.log).Install(st.cfg)
}

func (r *Reconfigurer) applyServices(ctx context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	outcomes, err := r.table.Apply(ctx, st.cfg)
	if err != nil {
		return err
	}
	enabled := 0
	for _, o := range outcomes {
		if o.Enabled {
			enabled++
		}
	}
	st.log.Info("Services configured", slog.Int("enabled", enabled), slog.Int("disabled", len(outcomes)-enabled))
	return nil
}

func (r *Reconfigurer) applyPostSteps(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	return services.ApplyPostSteps(r.files, st.cfg, st.log)
}

func (r *Reconfigurer) writeRunningState(_ context.Context, st *runState) error {
	if st.cfg == nil {
		return errNoConfig
	}
	spec := interfaces.FileSpec{Path: layout.RunningState, Owner: st.cfg.Username(), Group: layout.RootGroup, Mode: 0644}
	return r.writeJSON(spec, st.cfg.RunningState())
}

func (r *Reconfigurer) depositEscrow(ctx context.Context, st *runState) error {
	if r.escrow == nil {
		return nil
	}
	id, err := r.escrow.Deposit(ctx, st.report, r.facts.FQDN)
	if err != nil {
		return err
	}
	st.log.Info("Escrow manifest stored", slog.String("manifest", id.String()))
	return nil
}

func (r *Reconfigurer) writeJSON(spec interfaces.FileSpec, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", spec.Path, err)
	}
	_, err = r.files.Write(spec, append(data, '\n'))
	return err
}
