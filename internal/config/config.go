// Package config loads the global configuration file and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "paperfetch"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
)

// LLMConfig configures the chat-completions endpoint used for title
// proposal and pool reranking.
type LLMConfig struct {
	BaseURL          string `yaml:"base_url,omitempty"`
	APIKey           string `yaml:"api_key,omitempty"`
	Model            string `yaml:"model,omitempty"`
	DisableReasoning bool   `yaml:"disable_reasoning,omitempty"`
	SystemPrompt     string `yaml:"system_prompt,omitempty"`
}

// ProvidersConfig configures the bibliographic search providers. Both
// fields are optional: S2 works keyless at a lower rate limit, and
// OpenAlex only uses the email for its polite pool.
type ProvidersConfig struct {
	S2APIKey      string `yaml:"s2_api_key,omitempty"`
	OpenAlexEmail string `yaml:"openalex_email,omitempty"`
}

// Config is the file layout at ~/.config/paperfetch/config.yml.
type Config struct {
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
}

// Placeholder values shipped in example configs are treated as unset.
var placeholders = map[string]bool{
	"YOUR_LLM_API_KEY": true,
	"YOUR_S2_API_KEY":  true,
	"you@example.com":  true,
}

// Path returns the config file location. PAPERFETCH_CONFIG overrides;
// otherwise XDG_CONFIG_HOME (default ~/.config) applies.
func Path() string {
	if configured := strings.TrimSpace(os.Getenv("PAPERFETCH_CONFIG")); configured != "" {
		return configured
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load reads the config file, clears placeholder values and applies
// environment overrides. A missing file yields an empty config, not an
// error; an explicitly configured path must exist.
func Load() (*Config, error) {
	path := Path()
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			if os.Getenv("PAPERFETCH_CONFIG") != "" {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.clearPlaceholders()
	cfg.applyEnv()
	return cfg, nil
}

func clearPlaceholder(value string) string {
	value = strings.TrimSpace(value)
	if placeholders[value] {
		return ""
	}
	return value
}

func (c *Config) clearPlaceholders() {
	c.LLM.BaseURL = clearPlaceholder(c.LLM.BaseURL)
	c.LLM.APIKey = clearPlaceholder(c.LLM.APIKey)
	c.LLM.Model = clearPlaceholder(c.LLM.Model)
	c.LLM.SystemPrompt = strings.TrimSpace(c.LLM.SystemPrompt)
	c.Providers.S2APIKey = clearPlaceholder(c.Providers.S2APIKey)
	c.Providers.OpenAlexEmail = clearPlaceholder(c.Providers.OpenAlexEmail)
}

// applyEnv lets environment variables override file values, so secrets
// can stay out of the config file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		c.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		c.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("S2_API_KEY")); v != "" {
		c.Providers.S2APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENALEX_EMAIL")); v != "" {
		c.Providers.OpenAlexEmail = v
	}
}

// LLMConfigured reports whether the model endpoint is usable. The LLM
// paths (title proposal, llm selector) require all three fields.
func (c *Config) LLMConfigured() bool {
	return c.LLM.BaseURL != "" && c.LLM.APIKey != "" && c.LLM.Model != ""
}
