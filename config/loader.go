// Package config loads a factory configuration from YAML or JSON.
//
//	defaults:
//	  adapter: filesystem
//	  options:
//	    enabled: true
//	adapters:
//	  filesystem:
//	    class: filesystem
//	    options:
//	      basedir: ${CACHE_DIR}
//	      default_ttl: 24h
//	      dir_permission: "0700"
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/unkn0wn-root/nscache"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*nscache.Config, error) { return NewLoader().Load(path) }

// Parse parses configuration bytes.
func Parse(data []byte) (*nscache.Config, error) { return NewLoader().Parse(data) }

func (l *Loader) Load(path string) (*nscache.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse expands ${VAR} references, checks the document shape and decodes it.
// Adapter classes are validated by Factory.SetConfig.
func (l *Loader) Parse(data []byte) (*nscache.Config, error) {
	expanded := []byte(l.expandEnvVars(string(data)))

	var raw map[string]any
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := checkShape(raw); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	var cfg nscache.Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func checkShape(raw map[string]any) error {
	adapters, ok := raw["adapters"]
	if !ok || adapters == nil {
		return fmt.Errorf("missing adapters configuration")
	}
	m, ok := adapters.(map[string]any)
	if !ok {
		return fmt.Errorf("adapters must be a mapping, got %T", adapters)
	}
	for name, a := range m {
		if _, ok := a.(map[string]any); !ok {
			return fmt.Errorf("adapter %q must be a mapping, got %T", name, a)
		}
	}
	if d, ok := raw["defaults"]; ok && d != nil {
		if _, ok := d.(map[string]any); !ok {
			return fmt.Errorf("defaults must be a mapping, got %T", d)
		}
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values. Unset
// variables are kept verbatim.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
