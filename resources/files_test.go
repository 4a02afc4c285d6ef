package resources

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chownCall struct {
	path     string
	uid, gid int
}

type chownRecorder struct {
	mu    sync.Mutex
	calls []chownCall
}

func (r *chownRecorder) chown(path string, uid, gid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, chownCall{path, uid, gid})
	return nil
}

func newTestFiles(t *testing.T) (*Files, *chownRecorder) {
	t.Helper()
	rec := &chownRecorder{}
	identity := StaticIdentity{
		Users:  map[string]int{"root": 0, "opscode": 497},
		Groups: map[string]int{"root": 0, "opscode": 497},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files := NewFiles(t.TempDir(), logger, WithIdentity(identity), WithChown(rec.chown))
	require.NoError(t, os.MkdirAll(files.Path("/etc/opscode"), 0755))
	return files, rec
}

func TestWrite_ModeAndOwner(t *testing.T) {
	files, rec := newTestFiles(t)

	spec := interfaces.FileSpec{Path: "/etc/opscode/secret.pem", Owner: "opscode", Group: "root", Mode: 0600}
	res, err := files.Write(spec, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, interfaces.Created, res)

	info, err := os.Stat(files.Path(spec.Path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := files.ReadFile(spec.Path)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, 497, rec.calls[0].uid)
	assert.Equal(t, 0, rec.calls[0].gid)

	// no temporary files left behind
	entries, err := os.ReadDir(files.Path("/etc/opscode"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIfAbsent(t *testing.T) {
	files, _ := newTestFiles(t)
	spec := interfaces.FileSpec{Path: "/etc/opscode/pub.pem", Owner: "root", Group: "root", Mode: 0644}

	calls := 0
	content := func() ([]byte, error) {
		calls++
		return []byte("first"), nil
	}

	res, err := files.WriteIfAbsent(spec.Path, spec, content)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Created, res)

	res, err = files.WriteIfAbsent(spec.Path, spec, func() ([]byte, error) {
		calls++
		return []byte("second"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.Skipped, res)
	assert.Equal(t, 1, calls, "content must not be produced when the marker exists")

	data, err := files.ReadFile(spec.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestWriteIfAbsent_ForeignMarker(t *testing.T) {
	files, _ := newTestFiles(t)
	marker := interfaces.FileSpec{Path: "/etc/opscode/marker", Owner: "root", Group: "root", Mode: 0644}
	_, err := files.Write(marker, []byte("x"))
	require.NoError(t, err)

	target := interfaces.FileSpec{Path: "/etc/opscode/target", Owner: "root", Group: "root", Mode: 0600}
	res, err := files.WriteIfAbsent(marker.Path, target, func() ([]byte, error) { return []byte("y"), nil })
	require.NoError(t, err)
	assert.Equal(t, interfaces.Skipped, res)

	exists, err := files.Exists(target.Path)
	require.NoError(t, err)
	assert.False(t, exists, "a skipped write never creates the target")
}

func TestWriteIfAbsent_Failures(t *testing.T) {
	files, _ := newTestFiles(t)
	spec := interfaces.FileSpec{Path: "/etc/opscode/pub.pem", Owner: "root", Group: "root", Mode: 0644}

	res, err := files.WriteIfAbsent(spec.Path, spec, func() ([]byte, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, interfaces.Failed, res)

	missingDir := interfaces.FileSpec{Path: "/nonexistent/dir/file", Owner: "root", Group: "root", Mode: 0644}
	res, err = files.WriteIfAbsent(missingDir.Path, missingDir, func() ([]byte, error) { return []byte("x"), nil })
	require.Error(t, err)
	assert.Equal(t, interfaces.Failed, res)

	unknownOwner := interfaces.FileSpec{Path: "/etc/opscode/other", Owner: "nobody-here", Group: "root", Mode: 0644}
	res, err = files.Write(unknownOwner, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, interfaces.Failed, res)
}

func TestWriteIfAbsent_EnforcesModeOnSkip(t *testing.T) {
	files, _ := newTestFiles(t)
	spec := interfaces.FileSpec{Path: "/etc/opscode/priv.pem", Owner: "opscode", Group: "root", Mode: 0600}
	require.NoError(t, os.WriteFile(files.Path(spec.Path), []byte("keep"), 0666))
	require.NoError(t, os.Chmod(files.Path(spec.Path), 0666))

	res, err := files.WriteIfAbsent(spec.Path, spec, func() ([]byte, error) { return []byte("new"), nil })
	require.NoError(t, err)
	assert.Equal(t, interfaces.Skipped, res)

	info, err := os.Stat(files.Path(spec.Path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	data, err := files.ReadFile(spec.Path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestEnsureDirectory(t *testing.T) {
	files, rec := newTestFiles(t)

	spec := interfaces.FileSpec{Path: "/var/opt/opscode", Owner: "root", Group: "root", Mode: 0755}
	require.Error(t, files.EnsureDirectory(spec, false), "parent missing without recursive")
	require.NoError(t, files.EnsureDirectory(spec, true))
	require.NoError(t, files.EnsureDirectory(spec, true))

	info, err := os.Stat(files.Path(spec.Path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NotEmpty(t, rec.calls)

	fileSpec := interfaces.FileSpec{Path: "/etc/opscode/plain", Owner: "root", Group: "root", Mode: 0644}
	_, err = files.Write(fileSpec, nil)
	require.NoError(t, err)
	require.Error(t, files.EnsureDirectory(fileSpec, false))
}

func TestSymlinkAndRemove(t *testing.T) {
	files, _ := newTestFiles(t)
	require.NoError(t, os.MkdirAll(files.Path("/opt/sv/nginx"), 0755))
	require.NoError(t, os.MkdirAll(files.Path("/opt/service"), 0755))

	changed, err := files.Symlink("/opt/sv/nginx", "/opt/service/nginx")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = files.Symlink("/opt/sv/nginx", "/opt/service/nginx")
	require.NoError(t, err)
	assert.False(t, changed)

	target, err := os.Readlink(files.Path("/opt/service/nginx"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(files.Root(), "/opt/sv/nginx"), target)

	changed, err = files.Remove("/opt/service/nginx")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = files.Remove("/opt/service/nginx")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCurrentIdentity(t *testing.T) {
	id := CurrentIdentity("root", "opscode")
	uid, err := id.LookupUser("opscode")
	require.NoError(t, err)
	assert.Equal(t, os.Getuid(), uid)
	_, err = id.LookupGroup("missing")
	assert.Error(t, err)
}
