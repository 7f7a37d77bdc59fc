// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atlasgraph/atlas/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".atlas"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .atlas/project.yaml configuration file.
type Config struct {
	Version    string           `yaml:"version"`
	ProjectID  string           `yaml:"project_id"`
	Repository RepositoryConfig `yaml:"repository"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Summarizer StageConfig      `yaml:"summarizer,omitempty"`
	Embedder   StageConfig      `yaml:"embedder,omitempty"`
}

// RepositoryConfig names the source the orchestrator clones or reopens.
type RepositoryConfig struct {
	RemoteURL string `yaml:"remote_url,omitempty"` // empty means LocalPath is an existing checkout
	LocalPath string `yaml:"local_path,omitempty"`
}

// EmbeddingConfig configures pkg/embeddings.Provider construction.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // mock, ollama, openai
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// LLMConfig configures pkg/llm.Provider construction for summarization.
type LLMConfig struct {
	Provider string `yaml:"provider"` // mock, ollama, openai, anthropic
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// IndexingConfig contains parse-phase settings.
type IndexingConfig struct {
	Exclude []string `yaml:"exclude"` // glob patterns, joined with the parser's own extension filter
}

// StageConfig tunes a level-driven phase (summarizer or embedder); zero
// fields fall back to that package's own DefaultConfig.
type StageConfig struct {
	MinBatchSize         int     `yaml:"min_batch_size,omitempty"`
	MaxConcurrent        int     `yaml:"max_concurrent,omitempty"`
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second,omitempty"`
}

// DefaultConfig returns a config with sensible defaults for local development.
func DefaultConfig(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Embedding: EmbeddingConfig{
			Provider:   "mock",
			BaseURL:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:      getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Dimensions: 768,
		},
		LLM: LLMConfig{
			Provider: "mock",
		},
		Indexing: IndexingConfig{
			Exclude: []string{
				".git/**",
				"node_modules/**",
				"vendor/**",
				"dist/**",
				"build/**",
			},
		},
	}
}

// LoadConfig loads configuration from the specified path or finds it automatically.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("ATLAS_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'atlas init --force' to recreate", configPath),
			err,
		)
	}

	if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version '%s' is not supported (expected '%s')", cfg.Version, configVersion),
			"Run 'atlas init --force' to regenerate the configuration file",
			nil,
		)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// SaveConfig writes the configuration to the specified path as YAML.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", configPath),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}
	return nil
}

// ConfigPath returns <dir>/.atlas/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns <dir>/.atlas.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

// DataDir returns the CozoDB data directory for a project, following
// the teacher's ~/.atlas/data/<project_id> layout with the new prefix.
func DataDir(projectID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot determine home directory",
			"os.UserHomeDir failed",
			"Set HOME (or USERPROFILE on Windows) and retry",
			err,
		)
	}
	return filepath.Join(home, ".atlas", "data", projectID), nil
}

func findConfigFile() (string, error) {
	if configPath := os.Getenv("ATLAS_CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", errors.NewConfigError(
			"Configuration file not found",
			fmt.Sprintf("ATLAS_CONFIG_PATH is set to '%s' but the file does not exist", configPath),
			"Fix the ATLAS_CONFIG_PATH environment variable or run 'atlas init' to create a config",
			nil,
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		configPath := ConfigPath(dir)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NewConfigError(
		"Configuration not found",
		"No .atlas/project.yaml file found in current directory or any parent directory",
		"Run 'atlas init' to create a new configuration",
		nil,
	)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("ATLAS_PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Embedding.BaseURL = host
	}
	if model := os.Getenv("OLLAMA_EMBED_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if key := os.Getenv("EMBEDDINGS_API_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if url := os.Getenv("EMBEDDINGS_BASE_URL"); url != "" {
		c.Embedding.BaseURL = url
	}
	if model := os.Getenv("EMBEDDINGS_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if provider := os.Getenv("ATLAS_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if url := os.Getenv("ATLAS_LLM_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("ATLAS_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("ATLAS_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
