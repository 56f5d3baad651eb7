// Package config persists the tool-side registries that map human-chosen
// container and plugin names to their backend locations: two YAML files
// under $HOME/.nuts, read and rewritten wholesale on every change since
// neither file is expected to grow past a few hundred entries.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Dir returns $HOME/.nuts, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", xerrors.Errorf("config: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".nuts")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", xerrors.Errorf("config: create %s: %w", dir, err)
	}
	return dir, nil
}

// ContainerEntry records where a named container's header block lives:
// which backend (or plugin) owns it, and the backend-specific location
// string (a directory path for "directory", the block size for "memory",
// a registered plugin's name for "plugin").
type ContainerEntry struct {
	Name     string `yaml:"name"`
	Backend  string `yaml:"backend"`
	Location string `yaml:"location"`
	// PluginArgs are extra arguments passed to the plugin executable when
	// Backend == "plugin"; when Backend == "directory" they carry the
	// bsize=<n> block size.
	PluginArgs []string `yaml:"plugin_args,omitempty"`
}

// PluginEntry records a named plugin's executable path and default
// arguments.
type PluginEntry struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// Containers is the in-memory form of $HOME/.nuts/containers.
type Containers struct {
	Entries []ContainerEntry `yaml:"containers"`
}

// Plugins is the in-memory form of $HOME/.nuts/plugins.
type Plugins struct {
	Entries []PluginEntry `yaml:"plugins"`
}

func containersPath(dir string) string { return filepath.Join(dir, "containers") }
func pluginsPath(dir string) string    { return filepath.Join(dir, "plugins") }

// LoadContainers reads the container registry, returning an empty
// Containers if the file does not exist yet.
func LoadContainers(dir string) (*Containers, error) {
	var c Containers
	if err := loadYAML(containersPath(dir), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveContainers rewrites the container registry.
func SaveContainers(dir string, c *Containers) error {
	return saveYAML(containersPath(dir), c)
}

// LoadPlugins reads the plugin registry, returning an empty Plugins if
// the file does not exist yet.
func LoadPlugins(dir string) (*Plugins, error) {
	var p Plugins
	if err := loadYAML(pluginsPath(dir), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePlugins rewrites the plugin registry.
func SavePlugins(dir string, p *Plugins) error {
	return saveYAML(pluginsPath(dir), p)
}

// Find returns the entry named name, or nil if absent.
func (c *Containers) Find(name string) *ContainerEntry {
	for i := range c.Entries {
		if c.Entries[i].Name == name {
			return &c.Entries[i]
		}
	}
	return nil
}

// Upsert replaces the entry named e.Name, or appends it if absent.
func (c *Containers) Upsert(e ContainerEntry) {
	for i := range c.Entries {
		if c.Entries[i].Name == e.Name {
			c.Entries[i] = e
			return
		}
	}
	c.Entries = append(c.Entries, e)
}

// Remove drops the entry named name, reporting whether one was found.
func (c *Containers) Remove(name string) bool {
	for i := range c.Entries {
		if c.Entries[i].Name == name {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the entry named name, or nil if absent.
func (p *Plugins) Find(name string) *PluginEntry {
	for i := range p.Entries {
		if p.Entries[i].Name == name {
			return &p.Entries[i]
		}
	}
	return nil
}

// Upsert replaces the entry named e.Name, or appends it if absent.
func (p *Plugins) Upsert(e PluginEntry) {
	for i := range p.Entries {
		if p.Entries[i].Name == e.Name {
			p.Entries[i] = e
			return
		}
	}
	p.Entries = append(p.Entries, e)
}

// Remove drops the entry named name, reporting whether one was found.
func (p *Plugins) Remove(name string) bool {
	for i := range p.Entries {
		if p.Entries[i].Name == name {
			p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func loadYAML(path string, v interface{}) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return xerrors.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func saveYAML(path string, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return xerrors.Errorf("config: encode %s: %w", path, err)
	}
	if err := ioutil.WriteFile(path, b, 0600); err != nil {
		return xerrors.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
