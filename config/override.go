package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrInvalidOverride is returned when an override file cannot be parsed.
var ErrInvalidOverride = errors.New("invalid override file")

// ParseOverride decodes an override document. Files ending in .json are
// JSON and may carry comments and trailing commas; anything else is YAML.
// A document whose only key is private_chef is unwrapped, so a Chef JSON
// attribute file ({"private_chef": {...}, "run_list": [...]}) is accepted
// as well.
func ParseOverride(name string, data []byte) (map[string]any, error) {
	var doc map[string]any
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, name, err)
		}
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	if err := checkKeys("", doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, name, err)
	}

	if inner, ok := doc["private_chef"].(map[string]any); ok {
		unwrapped := inner
		if rl, ok := doc["run_list"]; ok {
			unwrapped = deepCopyMap(inner)
			unwrapped["run_list"] = rl
		}
		return unwrapped, nil
	}
	return doc, nil
}

// checkKeys rejects mappings with non-string keys, which YAML allows but the
// JSON documents written from the configuration cannot hold.
func checkKeys(path string, v any) error {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			if err := checkKeys(joinKey(path, k), child); err != nil {
				return err
			}
		}
	case map[any]any:
		for k := range v {
			if _, ok := k.(string); !ok {
				return fmt.Errorf("%s: non-string key %v", path, k)
			}
		}
		return fmt.Errorf("%s: unsupported mapping", path)
	case []any:
		for i, child := range v {
			if err := checkKeys(fmt.Sprintf("%s[%d]", path, i), child); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// LoadOverride reads and parses path. A missing file yields (nil, nil).
func LoadOverride(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}
	return ParseOverride(path, data)
}

// Sources are the candidate override files of a host, as on-disk paths.
type Sources struct {
	Deprecated string
	YAML       string
	JSON       string
}

// LoadOverrides picks the operator override for a run. The deprecated JSON
// attribute file takes precedence when present and a warning is logged;
// otherwise the YAML file is used, then the JSON file.
func LoadOverrides(src Sources, log *slog.Logger) (map[string]any, string, error) {
	if src.Deprecated != "" {
		ov, err := LoadOverride(src.Deprecated)
		if err != nil {
			return nil, "", err
		}
		if ov != nil {
			log.Warn("Please move to private-chef.yml for configuration - chef-server.json is deprecated.",
				slog.String("path", src.Deprecated))
			return ov, src.Deprecated, nil
		}
	}

	for _, path := range []string{src.YAML, src.JSON} {
		if path == "" {
			continue
		}
		ov, err := LoadOverride(path)
		if err != nil {
			return nil, "", err
		}
		if ov != nil {
			return ov, path, nil
		}
	}
	return nil, "", nil
}
