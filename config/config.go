package config

import (
	"fmt"
	"slices"
	"strings"
)

// Config is the merged configuration of one run. It is built once by Merge
// and never modified; accessors hand out copies, and the With* methods
// return a new Config.
type Config struct {
	tree    map[string]any
	runList []string
	facts   HostFacts
}

// Merge combines the built-in defaults, values derived from host facts and an
// optional operator override (highest precedence) into a Config. Maps are
// merged recursively; any other override value replaces the default. None of
// the inputs are modified.
func Merge(defaults, override map[string]any, facts HostFacts) *Config {
	tree := deepCopyMap(defaults)
	tree = mergeInto(tree, factDefaults(facts))

	runList := slices.Clone(DefaultRunList)
	if override != nil {
		ov := deepCopyMap(override)
		if rl, ok := ov["run_list"]; ok {
			if parsed, ok := toStringSlice(rl); ok {
				runList = parsed
			}
			delete(ov, "run_list")
		}
		tree = mergeInto(tree, ov)
	}

	return &Config{tree: tree, runList: runList, facts: facts}
}

func factDefaults(facts HostFacts) map[string]any {
	fqdn := facts.FQDN
	if fqdn == "" {
		fqdn = facts.Hostname
	}
	return map[string]any{
		"api_fqdn":           fqdn,
		"notification_email": "pivotal@" + fqdn,
		"from_email":         `"Opscode" <donotreply@` + fqdn + `>`,
		"backend_vips": map[string]any{
			"ipaddress": facts.IPAddress,
		},
	}
}

// mergeInto merges src into dst and returns dst.
func mergeInto(dst, src map[string]any) map[string]any {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = deepCopy(v)
	}
	return dst
}

// Facts returns the host facts the config was built from.
func (c *Config) Facts() HostFacts {
	return c.facts
}

// Get returns a copy of the value at path.
func (c *Config) Get(path ...string) (any, bool) {
	var cur any = c.tree
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return deepCopy(cur), true
}

// Bool returns the value at path interpreted as a flag. Missing values are false.
func (c *Config) Bool(path ...string) bool {
	v, ok := c.Get(path...)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "yes" || b == "1"
	default:
		return false
	}
}

// String returns the value at path formatted as a string. Missing values are "".
func (c *Config) String(path ...string) string {
	v, ok := c.Get(path...)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the numeric value at path, or def when missing or not a number.
func (c *Config) Int(def int, path ...string) int {
	v, ok := c.Get(path...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// Section returns a copy of a top level map, or an empty map.
func (c *Config) Section(name string) map[string]any {
	v, ok := c.Get(name)
	if !ok {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// ServiceEnabled reports the enable flag of a service.
func (c *Config) ServiceEnabled(service string) bool {
	return c.Bool(service, "enable")
}

// Username is the account the services run as.
func (c *Config) Username() string {
	if u := c.String("user", "username"); u != "" {
		return u
	}
	return "opscode"
}

// DarkLaunch returns the feature flag map.
func (c *Config) DarkLaunch() map[string]any {
	return c.Section("dark_launch")
}

// RunList returns the recorded run list.
func (c *Config) RunList() []string {
	return slices.Clone(c.runList)
}

// Tree returns a deep copy of the whole private_chef tree.
func (c *Config) Tree() map[string]any {
	return deepCopyMap(c.tree)
}

// With returns a new Config with value set at path.
func (c *Config) With(value any, path ...string) *Config {
	if len(path) == 0 {
		return c
	}
	tree := deepCopyMap(c.tree)
	cur := tree
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = deepCopy(value)
	return &Config{tree: tree, runList: slices.Clone(c.runList), facts: c.facts}
}

// WithBootstrapDisabled returns a new Config whose bootstrap service is off.
func (c *Config) WithBootstrapDisabled() *Config {
	return c.With(false, "bootstrap", "enable")
}

// RunningState is the document persisted as the running-state snapshot.
func (c *Config) RunningState() map[string]any {
	return map[string]any{
		"private_chef": c.Tree(),
		"run_list":     c.RunList(),
	}
}

// EnabledServices lists the enabled entries of Services, in order.
func (c *Config) EnabledServices() []string {
	var out []string
	for _, svc := range Services {
		if c.ServiceEnabled(svc) {
			out = append(out, svc)
		}
	}
	return out
}

// Describe renders a one-line summary for logs.
func (c *Config) Describe() string {
	return fmt.Sprintf("api_fqdn=%s user=%s services=[%s]", c.String("api_fqdn"), c.Username(), strings.Join(c.EnabledServices(), ","))
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t), true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
