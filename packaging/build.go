package packaging

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/ruteri/private-chef-provisioner/instanceutils"
)

// Steps returns the commands that vendor the component, in order.
func (m *Manifest) Steps() []instanceutils.Command {
	dest := m.Destination()
	steps := []instanceutils.Command{
		{Name: "mkdir", Args: []string{"-p", dest}},
	}
	if len(m.BundleArgs) > 0 {
		steps = append(steps, instanceutils.Command{
			Name: path.Join(m.InstallDir, "embedded", "bin", "bundle"),
			Args: m.BundleArgs,
			Dir:  m.Source,
		})
	}
	steps = append(steps, instanceutils.Command{
		Name: path.Join(m.InstallDir, "embedded", "bin", "rsync"),
		Args: []string{"--delete", "-a", "./", dest},
		Dir:  m.Source,
	})
	return steps
}

// Build runs the steps of the manifest. The first failing step aborts.
func Build(ctx context.Context, m *Manifest, runner instanceutils.Runner, log *slog.Logger) error {
	log.Info("Vendoring component",
		slog.String("name", m.Name),
		slog.String("source", m.Source),
		slog.String("destination", m.Destination()),
		slog.Any("dependencies", m.Dependencies))

	for i, step := range m.Steps() {
		if err := runner.Run(ctx, step); err != nil {
			return fmt.Errorf("%s: step %d (%s): %w", m.Name, i+1, step.Name, err)
		}
	}

	log.Info("Component vendored", slog.String("name", m.Name))
	return nil
}
