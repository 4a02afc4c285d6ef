package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
)

// PostStepConfigPath is where a post step's configuration is written.
func PostStepConfigPath(cfg *config.Config, name string) string {
	return path.Join(cfg.String("var_dir"), name, "etc", name+".json")
}

// ApplyPostSteps writes the configuration of the tools configured on every
// run, regardless of which services are enabled.
func ApplyPostSteps(files *resources.Files, cfg *config.Config, log *slog.Logger) error {
	for _, name := range config.PostSteps {
		doc := map[string]any{
			"api_fqdn": cfg.String("api_fqdn"),
			"var_dir":  cfg.String("var_dir"),
			name:       cfg.Section(name),
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s config: %w", name, err)
		}

		target := PostStepConfigPath(cfg, name)
		dir := interfaces.FileSpec{Path: path.Dir(target), Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}
		if err := files.EnsureDirectory(dir, true); err != nil {
			return err
		}

		spec := interfaces.FileSpec{Path: target, Owner: cfg.Username(), Group: layout.RootGroup, Mode: 0644}
		if _, err := files.Write(spec, append(data, '\n')); err != nil {
			return err
		}
		log.Debug("Post step configured", slog.String("step", name))
	}
	return nil
}
