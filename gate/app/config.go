// Package app wires the gatekeeper into the core Telegram runtime.
package app

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/m3rciful/gatekeeper/core/cmd"
	coreconfig "github.com/m3rciful/gatekeeper/core/config"
	coredatabase "github.com/m3rciful/gatekeeper/core/database"
	gateconfig "github.com/m3rciful/gatekeeper/gate/config"
)

// Config is the full process configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Gate     gateconfig.Config   `yaml:"gate"`
	Database coredatabase.Config `yaml:"database"`
}

var _ cmd.ConfigCarrier = (*Config)(nil)

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads the optional YAML file at path, overlays the environment
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := gateconfig.Normalize(&cfg.Gate); err != nil {
		return nil, err
	}
	if cfg.Database.Enabled() {
		cfg.Database.Normalize()
	}
	return &cfg, nil
}
