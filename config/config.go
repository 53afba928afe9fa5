// Package config handles configuration loading from TOML files and
// environment variable overrides, grounded on sacenox-symb's
// internal/config/config.go (same Load/Validate/env-override shape), in
// place of the teacher's own plain-Go-literal Option construction since
// the teacher never loads configuration from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/HPD-AI/agentrt/core"
	"github.com/HPD-AI/agentrt/provider"
)

// Config is the root configuration structure for an agentrt deployment.
type Config struct {
	DefaultProvider string                    `toml:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers"`
	Agent           AgentConfig               `toml:"agent"`
	Logging         LoggingConfig             `toml:"logging"`
}

// ProviderConfig configures one entry in the provider registry (C7).
type ProviderConfig struct {
	Kind       string        `toml:"kind"` // registry key, e.g. "litellm"
	Model      string        `toml:"model"`
	APIKeyEnv  string        `toml:"api_key_env"` // env var holding the secret; never stored in the file
	BaseURL    string        `toml:"base_url"`
	TimeoutSec int           `toml:"timeout_seconds"`
}

// AgentConfig maps onto core.AgentOptions's TOML-serializable fields.
// MaxToolErrors has no AgentOptions counterpart and AgentOptions() does not
// read it.
type AgentConfig struct {
	MaxIterations         int     `toml:"max_iterations"`
	ContinuationExtension int     `toml:"continuation_extension"`
	ParallelToolThreshold int     `toml:"parallel_tool_threshold"`
	ToolSelection         string  `toml:"tool_selection"` // "all" | "contextual"
	SimilarityThreshold   float64 `toml:"similarity_threshold"`
	MaxRelevantTools      int     `toml:"max_relevant_tools"`
	RecentMessageWindow   int     `toml:"recent_message_window"`
	MaxToolErrors         int     `toml:"max_tool_errors"`
}

// LoggingConfig holds the [logging] section of the file. The observability
// package does not read it: its loggers take only an output writer.
type LoggingConfig struct {
	Level string `toml:"level"` // "debug" | "info" | "warn" | "error"
}

// Load reads configuration from a TOML file; path is required, matching
// sacenox-symb's Load ("config path is required" / "config file not found").
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}

	cfg := &Config{Providers: make(map[string]ProviderConfig)}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured providers and default are coherent,
// grounded on sacenox-symb's Validate/validateProviderConfig pattern.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	}
	for name, p := range c.Providers {
		if p.Kind == "" {
			errs = append(errs, fmt.Errorf("providers.%s.kind is required", name))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
		}
	}
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider=%q does not exist in providers", c.DefaultProvider))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ProviderClientConfig resolves one named provider entry into a
// provider.Config, reading its API key from the environment per
// APIKeyEnv — configuration files never carry secrets directly.
func (c *Config) ProviderClientConfig(name string) (provider.Config, error) {
	p, ok := c.Providers[name]
	if !ok {
		return provider.Config{}, fmt.Errorf("config: unknown provider %q", name)
	}
	timeout := time.Duration(p.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return provider.Config{
		Model:   p.Model,
		APIKey:  os.Getenv(p.APIKeyEnv),
		BaseURL: p.BaseURL,
		Timeout: timeout,
	}, nil
}

// AgentOptions builds core.AgentOptions from the configured defaults,
// starting from core.DefaultAgentOptions and overriding only the fields
// Config sets explicitly (zero-value fields in TOML are left to the
// runtime default).
func (c *Config) AgentOptions() core.AgentOptions {
	opts := core.DefaultAgentOptions()
	a := c.Agent

	if a.MaxIterations > 0 {
		opts.MaxIterations = a.MaxIterations
	}
	if a.ContinuationExtension > 0 {
		opts.ContinuationExtension = a.ContinuationExtension
	}
	if a.ParallelToolThreshold > 0 {
		opts.ParallelToolThreshold = a.ParallelToolThreshold
	}
	if a.ToolSelection == string(core.SelectionContextual) {
		opts.ToolSelection = core.SelectionContextual
	}
	if a.SimilarityThreshold > 0 {
		opts.SimilarityThreshold = a.SimilarityThreshold
	}
	if a.MaxRelevantTools > 0 {
		opts.MaxRelevantTools = a.MaxRelevantTools
	}
	if a.RecentMessageWindow > 0 {
		opts.RecentMessageWindow = a.RecentMessageWindow
	}
	return opts
}
