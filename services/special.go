package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
)

// BootstrapHandler runs the one-time data bootstrap and records it with the
// bootstrapped marker. Once the marker exists the service is disabled for
// every later run.
type BootstrapHandler struct {
	files  *resources.Files
	runner instanceutils.Runner
	log    *slog.Logger
}

func (b *BootstrapHandler) Enable(ctx context.Context, _ string, cfg *config.Config) error {
	done, err := b.files.Exists(layout.BootstrappedMarker)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	fields := strings.Fields(cfg.String("bootstrap", "command"))
	if len(fields) == 0 {
		return fmt.Errorf("%w: bootstrap", ErrMissingCommand)
	}

	b.log.Info("Bootstrapping server data", slog.String("cmd", fields[0]))
	if err := b.runner.Run(ctx, instanceutils.Command{Name: fields[0], Args: fields[1:]}); err != nil {
		return err
	}

	marker := interfaces.FileSpec{Path: layout.BootstrappedMarker, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0644}
	_, err = b.files.Write(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"))
	return err
}

func (b *BootstrapHandler) Disable(context.Context, string, *config.Config) error {
	b.log.Debug("Bootstrap disabled")
	return nil
}

// DRBDHandler prepares the replicated storage directories. DRBD itself is
// managed by the kernel module and is not supervised.
type DRBDHandler struct {
	files *resources.Files
	log   *slog.Logger
}

func (d *DRBDHandler) Enable(_ context.Context, _ string, cfg *config.Config) error {
	base := path.Join(cfg.String("var_dir"), "drbd")
	for _, dir := range []string{base, base + "/data", base + "/etc"} {
		spec := interfaces.FileSpec{Path: dir, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}
		if err := d.files.EnsureDirectory(spec, true); err != nil {
			return err
		}
	}
	return nil
}

func (d *DRBDHandler) Disable(context.Context, string, *config.Config) error {
	return nil
}
