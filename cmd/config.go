package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/gitk-sync/internal/git"
)

const configFileName = "config.yaml"

// config is the optional YAML file. Unset keys keep the library defaults.
type config struct {
	Diff struct {
		ContextLines    *int `yaml:"context_lines"`
		RenameThreshold *int `yaml:"rename_threshold"`
		RenameLimit     *int `yaml:"rename_limit"`
	} `yaml:"diff"`
	Log struct {
		Limit int `yaml:"limit"`
	} `yaml:"log"`
}

// defaultConfigPath is $XDG_CONFIG_HOME/gitk-sync/config.yaml or the
// platform equivalent.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gitk-sync", configFileName)
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly.
func loadConfig(path string, explicit bool) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c config) validate() error {
	if v := c.Diff.ContextLines; v != nil && *v < 0 {
		return fmt.Errorf("diff.context_lines must not be negative")
	}
	if v := c.Diff.RenameThreshold; v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("diff.rename_threshold must be between 0 and 100")
	}
	if v := c.Diff.RenameLimit; v != nil && *v < 0 {
		return fmt.Errorf("diff.rename_limit must not be negative")
	}
	if c.Log.Limit < 0 {
		return fmt.Errorf("log.limit must not be negative")
	}
	return nil
}

func (c config) diffOptions() git.DiffOptions {
	opts := git.DefaultDiffOptions()
	if v := c.Diff.ContextLines; v != nil {
		opts.ContextLines = *v
	}
	if v := c.Diff.RenameThreshold; v != nil {
		opts.RenameThreshold = *v
	}
	if v := c.Diff.RenameLimit; v != nil {
		opts.RenameLimit = *v
	}
	return opts
}
