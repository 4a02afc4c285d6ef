package storage

import (
	"context"
	"os"
	"testing"

	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEscrowFiles(t *testing.T) *resources.Files {
	t.Helper()
	files := resources.NewFiles(t.TempDir(), testLogger,
		resources.WithIdentity(resources.StaticIdentity{Users: map[string]int{"root": 0}, Groups: map[string]int{"root": 0}}),
		resources.WithChown(func(string, int, int) error { return nil }))
	require.NoError(t, files.EnsureDirectory(interfaces.FileSpec{Path: layout.ConfigDir, Owner: "root", Group: "root", Mode: 0755}, true))
	for path, content := range map[string]string{
		layout.WebUIPublicKey:  "webui public",
		layout.WebUIPrivateKey: "webui private",
		layout.PivotalKey:      "pivotal key",
		layout.RunningState:    `{"private_chef": {}, "run_list": []}`,
	} {
		_, err := files.Write(interfaces.FileSpec{Path: path, Owner: "root", Group: "root", Mode: 0600}, []byte(content))
		require.NoError(t, err)
	}
	return files
}

func TestEscrow_Deposit(t *testing.T) {
	files := newEscrowFiles(t)
	backend, err := NewFileBackend(t.TempDir(), testLogger)
	require.NoError(t, err)

	report := &interfaces.RunReport{
		RunID: "run-1",
		Credentials: []interfaces.FileResult{
			{Path: layout.WebUIPublicKey, Result: interfaces.Created},
			{Path: layout.WebUIPrivateKey, Result: interfaces.Created},
			{Path: layout.PivotalKey, Result: interfaces.Skipped},
		},
	}

	id, err := NewEscrow(backend, files, testLogger).Deposit(context.Background(), report, "chef.example.com")
	require.NoError(t, err)

	manifest, err := FetchManifest(context.Background(), backend, id)
	require.NoError(t, err)
	assert.Equal(t, "run-1", manifest.RunID)
	assert.Equal(t, "chef.example.com", manifest.Hostname)
	assert.Len(t, manifest.Credentials, 2)
	assert.NotContains(t, manifest.Credentials, layout.PivotalKey)

	secretID, err := interfaces.NewContentIDFromHex(manifest.Credentials[layout.WebUIPrivateKey])
	require.NoError(t, err)
	data, err := backend.Fetch(context.Background(), secretID, interfaces.SecretType)
	require.NoError(t, err)
	assert.Equal(t, "webui private", string(data))

	stateID, err := interfaces.NewContentIDFromHex(manifest.RunningState)
	require.NoError(t, err)
	_, err = backend.Fetch(context.Background(), stateID, interfaces.ConfigType)
	require.NoError(t, err)
}

func TestEscrow_PartialFailure(t *testing.T) {
	files := newEscrowFiles(t)

	backend := &MockStorageBackend{name: "flaky"}
	backend.On("Store", mock.Anything, []byte("webui public"), interfaces.SecretType).Return(interfaces.ContentID{}, interfaces.ErrBackendUnavailable)
	backend.On("Store", mock.Anything, mock.Anything, interfaces.ConfigType).Return(interfaces.ComputeID([]byte("x")), nil)

	report := &interfaces.RunReport{
		RunID:       "run-2",
		Credentials: []interfaces.FileResult{{Path: layout.WebUIPublicKey, Result: interfaces.Created}},
	}

	id, err := NewEscrow(backend, files, testLogger).Deposit(context.Background(), report, "chef")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	assert.Equal(t, interfaces.ComputeID([]byte("x")), id)
	backend.AssertNumberOfCalls(t, "Store", 3)
}

func TestEscrow_DepositWithoutRunningState(t *testing.T) {
	files := newEscrowFiles(t)
	require.NoError(t, os.Remove(files.Path(layout.RunningState)))
	backend, err := NewFileBackend(t.TempDir(), testLogger)
	require.NoError(t, err)

	report := &interfaces.RunReport{
		RunID:       "run-3",
		Credentials: []interfaces.FileResult{{Path: layout.PivotalKey, Result: interfaces.Created}},
	}

	id, err := NewEscrow(backend, files, testLogger).Deposit(context.Background(), report, "chef")
	require.NoError(t, err)

	manifest, err := FetchManifest(context.Background(), backend, id)
	require.NoError(t, err)
	assert.Empty(t, manifest.RunningState)
	assert.Contains(t, manifest.Credentials, layout.PivotalKey)
}
