package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestFiles(t *testing.T) *resources.Files {
	t.Helper()
	id := resources.StaticIdentity{
		Users:  map[string]int{"root": 0, "opscode": 497},
		Groups: map[string]int{"root": 0},
	}
	noChown := func(string, int, int) error { return nil }
	return resources.NewFiles(t.TempDir(), testLogger, resources.WithIdentity(id), resources.WithChown(noChown))
}

func testConfig(override map[string]any) *config.Config {
	return config.Merge(config.Defaults(), override, config.HostFacts{Hostname: "chef", FQDN: "chef.example.com"})
}

func TestRunit_EnableDisable(t *testing.T) {
	files := newTestFiles(t)
	cfg := testConfig(nil)
	runit := NewRunit(files, testLogger)
	require.NoError(t, runit.Install(cfg))

	require.NoError(t, runit.Enable(context.Background(), "nginx", cfg))

	run, err := files.ReadFile("/opt/opscode/sv/nginx/run")
	require.NoError(t, err)
	assert.Contains(t, string(run), "-u opscode")
	assert.Contains(t, string(run), "/opt/opscode/embedded/sbin/nginx -c /var/opt/opscode/nginx/etc/nginx.conf")

	logRun, err := files.ReadFile("/opt/opscode/sv/nginx/log/run")
	require.NoError(t, err)
	assert.Contains(t, string(logRun), "svlogd -tt /var/log/opscode/nginx")

	info, err := os.Stat(files.Path("/opt/opscode/sv/nginx/run"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	info, err = os.Stat(files.Path("/var/log/opscode/nginx"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	link := files.Path("/opt/opscode/service/nginx")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, files.Path("/opt/opscode/sv/nginx"), target)

	// idempotent
	require.NoError(t, runit.Enable(context.Background(), "nginx", cfg))

	require.NoError(t, runit.Disable(context.Background(), "nginx", cfg))
	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, runit.Disable(context.Background(), "nginx", cfg))

	_, err = os.Stat(files.Path("/opt/opscode/sv/nginx/run"))
	assert.NoError(t, err, "definition survives disable")
}

func TestRunit_MissingCommand(t *testing.T) {
	files := newTestFiles(t)
	cfg := testConfig(map[string]any{"redis": map[string]any{"command": ""}})
	runit := NewRunit(files, testLogger)
	require.NoError(t, runit.Install(cfg))

	err := runit.Enable(context.Background(), "redis", cfg)
	assert.ErrorIs(t, err, ErrMissingCommand)
}

func TestTable_Lookup(t *testing.T) {
	table := NewTable(newTestFiles(t), &instanceutils.Recorder{}, testLogger)
	for _, svc := range config.Services {
		_, err := table.Lookup(svc)
		assert.NoError(t, err, svc)
	}
	_, err := table.Lookup("opscode-unknown")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestTable_Apply(t *testing.T) {
	files := newTestFiles(t)
	rec := &instanceutils.Recorder{}
	cfg := testConfig(map[string]any{"nagios": map[string]any{"enable": false}})
	require.NoError(t, NewRunit(files, testLogger).Install(cfg))

	table := NewTable(files, rec, testLogger)
	outcomes, err := table.Apply(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, outcomes, len(config.Services))
	assert.Equal(t, Outcome{Service: "drbd", Enabled: false}, outcomes[0])

	for _, o := range outcomes {
		if o.Service == "bootstrap" || o.Service == "drbd" {
			continue
		}
		_, err := os.Lstat(files.Path(filepath.Join("/opt/opscode/service", o.Service)))
		if o.Enabled {
			assert.NoError(t, err, o.Service)
		} else {
			assert.True(t, os.IsNotExist(err), o.Service)
		}
	}

	assert.Equal(t, []string{"/opt/opscode/embedded/bin/chef-server-bootstrap"}, rec.Names())
	exists, err := files.Exists(layout.BootstrappedMarker)
	require.NoError(t, err)
	assert.True(t, exists)

	// the marker keeps a second enable from bootstrapping again
	_, err = table.Apply(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, rec.Commands(), 1)
}

func TestTable_ApplyAbortsOnFailure(t *testing.T) {
	files := newTestFiles(t)
	rec := &instanceutils.Recorder{Fail: map[string]error{"/opt/opscode/embedded/bin/chef-server-bootstrap": errors.New("exit status 1")}}
	cfg := testConfig(nil)
	require.NoError(t, NewRunit(files, testLogger).Install(cfg))

	outcomes, err := NewTable(files, rec, testLogger).Apply(context.Background(), cfg)
	require.ErrorIs(t, err, instanceutils.ErrCommandFailed)
	assert.Equal(t, "opscode-expander", outcomes[len(outcomes)-1].Service)

	exists, err := files.Exists(layout.BootstrappedMarker)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDRBDHandler(t *testing.T) {
	files := newTestFiles(t)
	cfg := testConfig(map[string]any{"drbd": map[string]any{"enable": true}})
	h := &DRBDHandler{files: files, log: testLogger}
	require.NoError(t, h.Enable(context.Background(), "drbd", cfg))

	info, err := os.Stat(files.Path("/var/opt/opscode/drbd/data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestApplyPostSteps(t *testing.T) {
	files := newTestFiles(t)
	cfg := testConfig(nil)
	require.NoError(t, ApplyPostSteps(files, cfg, testLogger))

	for _, name := range config.PostSteps {
		data, err := files.ReadFile(PostStepConfigPath(cfg, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(data), `"api_fqdn": "chef.example.com"`)
	}
}
