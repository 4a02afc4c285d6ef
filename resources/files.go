package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/private-chef-provisioner/interfaces"
)

// ContentFunc produces file content on demand. It is only invoked when a
// write actually happens.
type ContentFunc func() ([]byte, error)

// Files manages files and directories under a root prefix. Every path passed
// to its methods is the logical absolute path (e.g. /etc/opscode/pivotal.pem);
// it is resolved beneath the root on disk.
type Files struct {
	root     string
	identity Identity
	chown    ChownFunc
	log      *slog.Logger
}

// Option customizes Files.
type Option func(*Files)

// WithIdentity overrides owner and group resolution.
func WithIdentity(id Identity) Option {
	return func(f *Files) { f.identity = id }
}

// WithChown overrides how ownership is applied.
func WithChown(chown ChownFunc) Option {
	return func(f *Files) { f.chown = chown }
}

// NewFiles creates a file manager rooted at root ("/" on a real host).
func NewFiles(root string, log *slog.Logger, opts ...Option) *Files {
	if root == "" {
		root = "/"
	}
	f := &Files{
		root:     root,
		identity: SystemIdentity{},
		chown:    os.Lchown,
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the on-disk root prefix.
func (f *Files) Root() string {
	return f.root
}

// Path resolves a logical path beneath the root.
func (f *Files) Path(p string) string {
	return filepath.Join(f.root, p)
}

// Identity returns the name resolver used for ownership.
func (f *Files) Identity() Identity {
	return f.identity
}

// Exists reports whether the logical path exists. Errors other than
// "not exist" are returned.
func (f *Files) Exists(p string) (bool, error) {
	_, err := os.Lstat(f.Path(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

// ReadFile reads a logical path.
func (f *Files) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(f.Path(p))
}

// WriteIfAbsent writes spec only when marker does not exist. The marker may be
// spec.Path itself or another file whose presence means the step already ran.
// When the guard fires the content function is never called; if the target
// exists its ownership and mode are re-asserted but its content is untouched.
func (f *Files) WriteIfAbsent(marker string, spec interfaces.FileSpec, content ContentFunc) (interfaces.WriteResult, error) {
	present, err := f.Exists(marker)
	if err != nil {
		return interfaces.Failed, err
	}

	if present {
		f.log.Debug("Marker present, leaving file untouched",
			slog.String("marker", marker),
			slog.String("path", spec.Path))
		if err := f.enforceIfExists(spec); err != nil {
			return interfaces.Failed, err
		}
		return interfaces.Skipped, nil
	}

	data, err := content()
	if err != nil {
		return interfaces.Failed, fmt.Errorf("failed to produce content for %s: %w", spec.Path, err)
	}

	return f.Write(spec, data)
}

// Write replaces spec.Path with data unconditionally. The new content is
// written to a temporary file in the same directory, given its final mode and
// ownership, and renamed into place.
func (f *Files) Write(spec interfaces.FileSpec, data []byte) (interfaces.WriteResult, error) {
	uid, gid, err := f.resolve(spec)
	if err != nil {
		return interfaces.Failed, err
	}

	target := f.Path(spec.Path)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return interfaces.Failed, fmt.Errorf("failed to create temporary file for %s: %w", spec.Path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(spec.Mode); err != nil {
		tmp.Close()
		return interfaces.Failed, fmt.Errorf("failed to set mode on %s: %w", spec.Path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return interfaces.Failed, fmt.Errorf("failed to write %s: %w", spec.Path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return interfaces.Failed, fmt.Errorf("failed to sync %s: %w", spec.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return interfaces.Failed, fmt.Errorf("failed to close %s: %w", spec.Path, err)
	}
	if err := f.chown(tmpName, uid, gid); err != nil {
		return interfaces.Failed, fmt.Errorf("failed to chown %s: %w", spec.Path, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return interfaces.Failed, fmt.Errorf("failed to move %s into place: %w", spec.Path, err)
	}

	f.log.Debug("Wrote file",
		slog.String("path", spec.Path),
		slog.String("mode", fmt.Sprintf("%#o", spec.Mode)),
		slog.Int("size", len(data)))

	return interfaces.Created, nil
}

// Enforce re-applies ownership and mode to an existing file.
func (f *Files) Enforce(spec interfaces.FileSpec) error {
	uid, gid, err := f.resolve(spec)
	if err != nil {
		return err
	}

	target := f.Path(spec.Path)
	if err := os.Chmod(target, spec.Mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", spec.Path, err)
	}
	if err := f.chown(target, uid, gid); err != nil {
		return fmt.Errorf("failed to chown %s: %w", spec.Path, err)
	}
	return nil
}

func (f *Files) enforceIfExists(spec interfaces.FileSpec) error {
	exists, err := f.Exists(spec.Path)
	if err != nil || !exists {
		return err
	}
	return f.Enforce(spec)
}

// EnsureDirectory creates spec.Path if needed and applies ownership and mode.
// Without recursive the parent must already exist.
func (f *Files) EnsureDirectory(spec interfaces.FileSpec, recursive bool) error {
	target := f.Path(spec.Path)

	var err error
	if recursive {
		err = os.MkdirAll(target, spec.Mode)
	} else {
		err = os.Mkdir(target, spec.Mode)
		if errors.Is(err, fs.ErrExist) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", spec.Path, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", spec.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", spec.Path)
	}

	return f.Enforce(spec)
}

// Symlink points link at target, replacing a link that points elsewhere.
// Reports whether anything changed.
func (f *Files) Symlink(target, link string) (bool, error) {
	linkPath := f.Path(link)
	targetPath := f.Path(target)

	current, err := os.Readlink(linkPath)
	switch {
	case err == nil && current == targetPath:
		return false, nil
	case err == nil:
		if err := os.Remove(linkPath); err != nil {
			return false, fmt.Errorf("failed to replace link %s: %w", link, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("readlink %s: %w", link, err)
	}

	if err := os.Symlink(targetPath, linkPath); err != nil {
		return false, fmt.Errorf("failed to link %s: %w", link, err)
	}
	return true, nil
}

// Remove deletes a logical path if present. Reports whether anything changed.
func (f *Files) Remove(p string) (bool, error) {
	err := os.Remove(f.Path(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove %s: %w", p, err)
}

func (f *Files) resolve(spec interfaces.FileSpec) (int, int, error) {
	uid, err := f.identity.LookupUser(spec.Owner)
	if err != nil {
		return 0, 0, err
	}
	gid, err := f.identity.LookupGroup(spec.Group)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
