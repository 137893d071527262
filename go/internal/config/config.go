package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/slapboard/go/internal/leagues/base"
	"github.com/mcdev12/slapboard/go/internal/memes"
	"github.com/mcdev12/slapboard/go/internal/reaction"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Config is the slapboard YAML configuration shared by all processes
type Config struct {
	League struct {
		Enabled string                            `yaml:"enabled"`
		Plugins map[string]map[string]interface{} `yaml:"plugins"`
	} `yaml:"league"`

	// DocumentID is the counter document every process reads and writes
	DocumentID string `yaml:"document_id"`

	Reaction reaction.Config `yaml:"reaction"`

	Assets struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"assets"`

	Submission memes.Submission `yaml:"submission"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{
		DocumentID: "br",
		Reaction:   reaction.DefaultConfig(),
		Submission: memes.DefaultSubmission(),
	}
	cfg.League.Enabled = "ipl"
	return cfg
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.League.Enabled == "" {
		return fmt.Errorf("league.enabled is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if strings.ContainsAny(c.DocumentID, ". *>") {
		return fmt.Errorf("document_id %q must not contain subject tokens", c.DocumentID)
	}
	if err := c.Reaction.Validate(); err != nil {
		return err
	}
	if c.Assets.BaseURL != "" {
		if _, err := url.Parse(c.Assets.BaseURL); err != nil {
			return fmt.Errorf("assets.base_url: %w", err)
		}
	}
	return c.Submission.Validate()
}

// Roster initializes the enabled league plugin and returns its validated roster
func (c *Config) Roster() (*tally.Roster, error) {
	return base.LoadRoster(c.League.Enabled, c.League.Plugins[c.League.Enabled])
}

// AssetURL resolves an asset reference against assets.base_url
func (c *Config) AssetURL(ref string) string {
	if c.Assets.BaseURL == "" {
		return ref
	}
	return strings.TrimRight(c.Assets.BaseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}
