package mic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CredentialSource resolves a provider's API key. It is consulted lazily,
// at first-request time, never at provider construction (spec §6:
// "Missing keys yield MissingAPIKeyError on first request, never at
// construction"). EnvCredentialSource wraps the common case; callers may
// supply any other callable (e.g. a secrets-manager lookup).
type CredentialSource func() (string, error)

// EnvCredentialSource resolves an API key from an environment variable,
// returning MissingAPIKeyError if unset or empty.
func EnvCredentialSource(provider, envVar string) CredentialSource {
	return func() (string, error) {
		v := os.Getenv(envVar)
		if v == "" {
			return "", &ModelError{Kind: KindMissingAPIKey, Provider: provider, Message: fmt.Sprintf("environment variable %s is not set", envVar)}
		}
		return v, nil
	}
}

// StaticCredentialSource always resolves to key, useful for tests and for
// callers who already have the credential in hand.
func StaticCredentialSource(key string) CredentialSource {
	return func() (string, error) { return key, nil }
}

// ProviderConfig is the construction-time configuration shared by every
// provider adapter: its credential source and optional transport
// overrides (base URL, for self-hosted/compatible endpoints).
type ProviderConfig struct {
	Credentials CredentialSource
	BaseURL     string
}

// FileConfig is the optional YAML-file shape for provider/model
// configuration overrides (SPEC_FULL.md ambient stack), mirroring the
// teacher's agent/config_loader.go: defaults first, then env overrides.
type FileConfig struct {
	Provider string  `yaml:"provider"`
	Model    string  `yaml:"model"`
	BaseURL  string  `yaml:"base_url"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// LoadFileConfig reads and parses a YAML provider/model configuration
// file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mic: failed to read config file: %w", err)
	}
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("mic: failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFileConfigWithEnvOverrides loads a FileConfig then applies
// MIC_MODEL/MIC_BASE_URL environment overrides, mirroring the teacher's
// LoadAgentConfigWithEnvOverrides.
func LoadFileConfigWithEnvOverrides(path string) (*FileConfig, error) {
	cfg, err := LoadFileConfig(path)
	if err != nil {
		return nil, err
	}
	if model := os.Getenv("MIC_MODEL"); model != "" {
		cfg.Model = model
	}
	if baseURL := os.Getenv("MIC_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg, nil
}

// ToParams builds the Params a FileConfig implies, for seeding a Model's
// defaults.
func (c *FileConfig) ToParams() Params {
	p := Params{MaxTokens: c.MaxTokens}
	if c.Temperature != nil {
		p.Temperature = c.Temperature
	}
	return p
}
