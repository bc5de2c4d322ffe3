package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// HookConfig binds an event id to an external command.
type HookConfig struct {
	Event       string            `yaml:"event" json:"event"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of hooks.yaml
type ConfigFile struct {
	Hooks []HookConfig `yaml:"hooks" json:"hooks"`
}

// LoadHooks reads a configuration file (YAML or JSON) and returns the hooks
// keyed by event id. A missing file means no hooks are configured.
func LoadHooks(path string) (map[string]HookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]HookConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	hooks := make(map[string]HookConfig, len(cfg.Hooks))
	for _, h := range cfg.Hooks {
		if h.Event == "" || h.Command == "" {
			continue
		}
		if _, dup := hooks[h.Event]; dup {
			return nil, fmt.Errorf("event %q is hooked twice in %s", h.Event, path)
		}
		hooks[h.Event] = h
	}
	return hooks, nil
}
