package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ruteri/private-chef-provisioner/bootstrap"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T) (*Server, *resources.Files, []bootstrap.Pair) {
	t.Helper()
	files := resources.NewFiles(t.TempDir(), testLogger,
		resources.WithIdentity(resources.StaticIdentity{
			Users:  map[string]int{"root": 0, "opscode": 497},
			Groups: map[string]int{"root": 0},
		}),
		resources.WithChown(func(string, int, int) error { return nil }))
	require.NoError(t, files.EnsureDirectory(interfaces.FileSpec{Path: layout.ConfigDir, Owner: "root", Group: "root", Mode: 0755}, true))

	pairs := bootstrap.DefaultPairs("opscode", 1024)
	srv := New(&HTTPServerConfig{Log: testLogger}, NewHandler(files, pairs, testLogger))
	return srv, files, pairs
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestReadiness(t *testing.T) {
	srv, files, _ := newTestServer(t)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/running").Code)

	state := []byte(`{"private_chef":{},"run_list":[]}`)
	_, err := files.Write(interfaces.FileSpec{Path: layout.RunningState, Owner: "opscode", Group: "root", Mode: 0644}, state)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
	running := get(t, h, "/api/running")
	assert.Equal(t, http.StatusOK, running.Code)
	assert.JSONEq(t, string(state), running.Body.String())

	assert.Contains(t, get(t, h, "/drain").Body.String(), `"draining"`)
	assert.Contains(t, get(t, h, "/drain").Body.String(), "already draining")
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	assert.Contains(t, get(t, h, "/undrain").Body.String(), `"ready"`)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestStatus(t *testing.T) {
	srv, files, pairs := newTestServer(t)
	h := srv.Handler()

	var empty StatusResponse
	require.NoError(t, json.Unmarshal(get(t, h, "/api/status").Body.Bytes(), &empty))
	require.Len(t, empty.Pairs, 3)
	for _, p := range empty.Pairs {
		assert.False(t, p.MarkerPresent)
		assert.False(t, p.Public.Present)
		assert.False(t, p.Private.Present)
	}

	_, err := bootstrap.NewSequencer(files, pairs, bootstrap.PolicyCoupled, testLogger).Run(context.Background())
	require.NoError(t, err)

	rr := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))

	require.Len(t, status.Pairs, 3)
	assert.Equal(t, []string{"webui", "worker", "pivotal"}, []string{status.Pairs[0].Name, status.Pairs[1].Name, status.Pairs[2].Name})
	for _, p := range status.Pairs {
		assert.True(t, p.MarkerPresent, p.Name)
		assert.True(t, p.Private.Present, p.Name)
		assert.Empty(t, p.Private.Fingerprint, "private content is never read")
		assert.True(t, p.Public.Present, p.Name)
		assert.Regexp(t, `^SHA256:`, p.Public.Fingerprint)
	}
	assert.NotEqual(t, status.Pairs[0].Public.Fingerprint, status.Pairs[1].Public.Fingerprint)
}
