package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File maps profile names to profiles.
type File map[string]Profile

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a configuration file. The format follows the extension: .yaml
// and .yml are YAML, anything else JSON. Keys missing from a profile keep
// their Default values.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return parseYAML(data)
	}
	return parseJSON(data)
}

func parseJSON(data []byte) (File, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	f := make(File, len(raw))
	for name, msg := range raw {
		p := Default()
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		f[name] = p
	}
	return f, nil
}

func parseYAML(data []byte) (File, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	f := make(File, len(raw))
	for name, node := range raw {
		p := Default()
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		f[name] = p
	}
	return f, nil
}

// Names returns the profile names, sorted.
func (f File) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile.
func (f File) Profile(name string) (Profile, error) {
	p, ok := f[name]
	if !ok {
		return Profile{}, fmt.Errorf("no profile %q (have %s)", name, strings.Join(f.Names(), ", "))
	}
	return p, nil
}

// Save writes f to path in the format given by its extension.
func Save(path string, f File) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(map[string]Profile(f))
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
