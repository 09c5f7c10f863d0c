// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults for the orchestration loop.
const (
	// DefaultMaxToolIterations bounds the provider/tool loop per turn.
	DefaultMaxToolIterations = 10

	// DefaultHistoryCap bounds retained conversation turns per session.
	DefaultHistoryCap = 10

	// DefaultSnapshotPath is where the directory snapshot lives relative
	// to the working directory.
	DefaultSnapshotPath = "resources/qmgr_dump.csv"
)

// ProviderConfig selects and authenticates one LLM provider.
type ProviderConfig struct {
	// Provider is the backend: "anthropic", "openai", or "gemini".
	Provider string

	// Model is an optional provider-specific model override; empty means
	// the client's default.
	Model string

	// APIKey is the provider credential, loaded from the environment.
	APIKey string
}

// Config is the assistant's runtime configuration.
//
// Description:
//
//	Values resolve in three layers: compiled defaults, then an optional
//	YAML file named by MQASSIST_CONFIG, then individual environment
//	variables. Environment always wins so container deployments can
//	override a baked-in config file.
type Config struct {
	// Provider selects the LLM backend.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// MaxToolIterations is the per-turn loop budget.
	MaxToolIterations int `yaml:"max_tool_iterations"`

	// HistoryCap is the retained-turn bound per session.
	HistoryCap int `yaml:"history_cap"`

	// SnapshotPath is the directory snapshot file.
	SnapshotPath string `yaml:"snapshot_path"`
}

// LoadConfig resolves the runtime configuration.
//
// Outputs:
//   - Config: The resolved configuration.
//   - error: Non-nil for an unreadable config file or invalid values.
func LoadConfig() (Config, error) {
	cfg := Config{
		Provider:          ProviderAnthropic,
		MaxToolIterations: DefaultMaxToolIterations,
		HistoryCap:        DefaultHistoryCap,
		SnapshotPath:      DefaultSnapshotPath,
	}

	if path := os.Getenv("MQASSIST_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("agent: reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("agent: parsing config file: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	if v := os.Getenv("MQASSIST_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MQASSIST_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MQ_DUMP_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("MQASSIST_MAX_TOOL_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("agent: invalid MQASSIST_MAX_TOOL_ITERATIONS %q", v)
		}
		cfg.MaxToolIterations = n
	}

	if !isValidProvider(cfg.Provider) {
		return Config{}, fmt.Errorf("agent: invalid provider %q (valid: %v)", cfg.Provider, ValidProviders)
	}
	if cfg.MaxToolIterations < 1 {
		return Config{}, fmt.Errorf("agent: max_tool_iterations must be positive, got %d", cfg.MaxToolIterations)
	}
	if cfg.HistoryCap < 1 {
		cfg.HistoryCap = DefaultHistoryCap
	}

	return cfg, nil
}

func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ProviderConfig builds the provider selection with its API key resolved
// from the environment.
func (c Config) ProviderConfig() ProviderConfig {
	pc := ProviderConfig{Provider: c.Provider, Model: c.Model}
	switch c.Provider {
	case ProviderAnthropic:
		pc.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		pc.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		pc.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return pc
}
