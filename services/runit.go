package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"text/template"

	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
)

var runTemplate = template.Must(template.New("run").Parse(`#!/bin/sh
exec 2>&1
exec {{ .InstallDir }}/embedded/bin/chpst -P -u {{ .User }} -U {{ .User }} {{ .Command }}
`))

var logRunTemplate = template.Must(template.New("log-run").Parse(`#!/bin/sh
exec {{ .InstallDir }}/embedded/bin/svlogd -tt {{ .LogDir }}
`))

type runScript struct {
	InstallDir string
	User       string
	Command    string
	LogDir     string
}

// Runit manages runit service directories.
type Runit struct {
	files *resources.Files
	log   *slog.Logger
}

func NewRunit(files *resources.Files, log *slog.Logger) *Runit {
	return &Runit{files: files, log: log}
}

// Install creates the service definition and supervision directories.
func (r *Runit) Install(cfg *config.Config) error {
	for _, dir := range []string{svDir(cfg), serviceDir(cfg)} {
		spec := interfaces.FileSpec{Path: dir, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}
		if err := r.files.EnsureDirectory(spec, true); err != nil {
			return err
		}
	}
	return nil
}

// Enable writes the run scripts of a service and links it into the
// supervision directory.
func (r *Runit) Enable(_ context.Context, service string, cfg *config.Config) error {
	command := cfg.String(service, "command")
	if command == "" {
		return fmt.Errorf("%w: %s", ErrMissingCommand, service)
	}

	user := cfg.Username()
	dir := path.Join(svDir(cfg), service)
	logDir := cfg.String(service, "log_directory")
	if logDir == "" {
		logDir = path.Join(cfg.String("log_dir"), service)
	}

	dirs := []interfaces.FileSpec{
		{Path: dir, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755},
		{Path: dir + "/log", Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755},
		{Path: path.Dir(logDir), Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755},
		{Path: logDir, Owner: user, Group: layout.RootGroup, Mode: 0700},
	}
	for _, spec := range dirs {
		if err := r.files.EnsureDirectory(spec, true); err != nil {
			return err
		}
	}

	data := runScript{
		InstallDir: cfg.String("install_dir"),
		User:       user,
		Command:    command,
		LogDir:     logDir,
	}
	scripts := []struct {
		tmpl *template.Template
		path string
	}{
		{runTemplate, dir + "/run"},
		{logRunTemplate, dir + "/log/run"},
	}
	for _, s := range scripts {
		var buf bytes.Buffer
		if err := s.tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to render %s: %w", s.path, err)
		}
		spec := interfaces.FileSpec{Path: s.path, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0755}
		if _, err := r.files.Write(spec, buf.Bytes()); err != nil {
			return err
		}
	}

	linked, err := r.files.Symlink(dir, path.Join(serviceDir(cfg), service))
	if err != nil {
		return err
	}
	if linked {
		r.log.Info("Enabled service", slog.String("service", service))
	}
	return nil
}

// Disable removes the supervision link. The service definition is kept.
func (r *Runit) Disable(_ context.Context, service string, cfg *config.Config) error {
	removed, err := r.files.Remove(path.Join(serviceDir(cfg), service))
	if err != nil {
		return err
	}
	if removed {
		r.log.Info("Disabled service", slog.String("service", service))
	}
	return nil
}

func svDir(cfg *config.Config) string {
	return cfg.String("runit", "sv_dir")
}

func serviceDir(cfg *config.Config) string {
	return cfg.String("runit", "service_dir")
}
