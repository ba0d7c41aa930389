package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"agora/internal/protocol"
)

// Config is the per-user CLI state: who this agent is and which shared
// medium it coordinates through.
type Config struct {
	Version     int                    `json:"version"`
	Identity    protocol.AgentIdentity `json:"identity"`
	Medium      string                 `json:"medium"`
	DataDir     string                 `json:"data_dir,omitempty"`
	DBPath      string                 `json:"db_path,omitempty"`
	Preferences map[string]string      `json:"preferences,omitempty"`
}

func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".agora", "config.json"), nil
}

func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{
				Version: 1,
				Medium:  "file",
				Preferences: map[string]string{
					"default_format": "table",
				},
			}, nil
		}
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Medium == "" {
		c.Medium = "file"
	}
	return &c, nil
}

func Save(c *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, append(b, '\n'), 0o600)
}

// StorePath returns the path for the configured medium.
func (c *Config) StorePath() string {
	if c.Medium == "sqlite" {
		return c.DBPath
	}
	return c.DataDir
}

// Joined reports whether the CLI has an identity and a medium configured.
func (c *Config) Joined() bool {
	return c.Identity.AgentID != "" && c.StorePath() != ""
}
