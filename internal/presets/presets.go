// Package presets resolves named time controls from an embedded YAML
// catalog, optionally overridden by a file on disk.
package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed time_controls.yaml
var defaultFiles embed.FS

// Preset is one named time control.
type Preset struct {
	StartMinutes     int `yaml:"start_minutes"`
	IncrementSeconds int `yaml:"increment_seconds"`
}

// Initial returns the per-player starting budget.
func (p Preset) Initial() time.Duration {
	return time.Duration(p.StartMinutes) * time.Minute
}

// Increment returns the per-move bonus.
func (p Preset) Increment() time.Duration {
	return time.Duration(p.IncrementSeconds) * time.Second
}

// Catalog maps preset names to time controls. Read-only after Load.
type Catalog struct {
	presets map[string]Preset
}

// Load reads the embedded defaults and, when overridePath names a file,
// merges its entries over them.
func Load(overridePath string) (*Catalog, error) {
	c := &Catalog{presets: map[string]Preset{}}
	raw, err := fs.ReadFile(defaultFiles, "time_controls.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded presets: %w", err)
	}
	if err := c.merge(raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overridePath) != "" {
		b, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read presets override: %w", err)
		}
		if err := c.merge(b); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) merge(raw []byte) error {
	var in map[string]Preset
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("parse presets: %w", err)
	}
	for name, p := range in {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || p.StartMinutes <= 0 || p.IncrementSeconds < 0 {
			return fmt.Errorf("invalid preset %q", name)
		}
		c.presets[name] = p
	}
	return nil
}

// Get resolves a preset by name, case-insensitively.
func (c *Catalog) Get(name string) (Preset, bool) {
	p, ok := c.presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists the available preset names.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.presets))
	for name := range c.presets {
		out = append(out, name)
	}
	return out
}
