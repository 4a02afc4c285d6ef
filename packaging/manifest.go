package packaging

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ruteri/private-chef-provisioner/layout"
)

// ErrInvalidManifest is returned for manifests that cannot be built.
var ErrInvalidManifest = errors.New("invalid manifest")

//go:embed manifests/partybus.yml
var partybusManifest []byte

// Manifest describes one vendored component.
type Manifest struct {
	Name         string   `yaml:"name"`
	Dependencies []string `yaml:"dependencies"`
	// Source is the tree to vendor. Relative paths are resolved against
	// the directory of the manifest file.
	Source     string   `yaml:"source"`
	InstallDir string   `yaml:"install_dir"`
	BundleArgs []string `yaml:"bundle_args"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.InstallDir == "" {
		m.InstallDir = layout.InstallDir
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads a manifest file.
func LoadManifest(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(m.Source) {
		m.Source = filepath.Join(filepath.Dir(file), m.Source)
	}
	return m, nil
}

// PartybusManifest returns the built-in manifest of the upgrade framework,
// with its source tree located under root.
func PartybusManifest(root string) (*Manifest, error) {
	m, err := ParseManifest(partybusManifest)
	if err != nil {
		return nil, err
	}
	m.Source = filepath.Join(root, m.Source)
	return m, nil
}

func (m *Manifest) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	case strings.ContainsAny(m.Name, `/\`) || m.Name == "." || m.Name == "..":
		return fmt.Errorf("%w: name %q is not a single path element", ErrInvalidManifest, m.Name)
	case m.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidManifest)
	case !path.IsAbs(m.InstallDir):
		return fmt.Errorf("%w: install_dir %q is not absolute", ErrInvalidManifest, m.InstallDir)
	}
	return nil
}

// Destination is the directory the component is vendored into.
func (m *Manifest) Destination() string {
	return path.Join(m.InstallDir, "embedded", "service", m.Name)
}
