package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the project list read when no --config is given.
const DefaultConfigFile = "cloud_apps.yml"

// Config is the top-level platform build configuration: the projects to
// build and the settings every builder shares.
type Config struct {
	Applications []Project `yaml:"applications"`
	Settings     Settings  `yaml:"settings"`

	// Dir is the directory the configuration was loaded from. Relative
	// extra_files and template paths resolve against it.
	Dir string `yaml:"-"`
}

// Load reads configuration from a YAML file. If path is empty the default
// file is used. Unlike optional tool configs, a missing project list is an
// error: there is nothing to build without one.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(abs)
	return cfg, nil
}

// Defaults returns a configuration with every settings section at its
// default and no applications.
func Defaults() *Config {
	return &Config{
		Settings: DefaultSettings(),
	}
}

// Resolve returns p joined to the config directory unless p is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
