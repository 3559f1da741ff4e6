package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI     AIConfig     `yaml:"ai" validate:"required"`
	Search SearchConfig `yaml:"search"`
	Flow   FlowConfig   `yaml:"flow" validate:"required"`
	Paths  PathsConfig  `yaml:"paths"`
}

type AIConfig struct {
	APIKey  string `yaml:"api_key" validate:"omitempty,min=20"`
	Model   string `yaml:"model" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Timeout int    `yaml:"timeout" validate:"required,min=10,max=3600"`
}

// SearchConfig configures the external retrieval provider. The whole block
// is optional; without an API key external queries return no results.
type SearchConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type PathsConfig struct {
	GraphDir string `yaml:"graph_dir"`
}

// Load reads the config file at path, falling back to the standard
// locations when path is empty. Defaults are applied before validation so a
// minimal file with just an API key is usable. Overrides run after the file
// and environment are merged and before validation, so command-line flags
// get the same checks as file values.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	_ = godotenv.Load()

	configPath := path
	if configPath == "" {
		configPath = getConfigPath()
	}

	cfg := Config{Flow: DefaultFlow()}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		// No file: env-only configuration.
		cfg.AI = defaultAI()
		cfg.Search = defaultSearch()
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// API keys come from the environment when the file omits them or uses
	// the placeholder form.
	if cfg.AI.APIKey == "" || strings.HasPrefix(cfg.AI.APIKey, "${") {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.AI.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.AI.APIKey = key
		}
	}
	if cfg.Search.APIKey == "" || strings.HasPrefix(cfg.Search.APIKey, "${") {
		cfg.Search.APIKey = os.Getenv("PERPLEXITY_API_KEY")
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("DOCAGENT_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "docagent", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "docagent", "config.yaml")
}

func defaultAI() AIConfig {
	return AIConfig{
		Model:   "claude-3-5-sonnet-20241022",
		BaseURL: "https://api.anthropic.com/v1",
		Timeout: 300,
	}
}

func defaultSearch() SearchConfig {
	return SearchConfig{
		Model:   "sonar",
		BaseURL: "https://api.perplexity.ai",
	}
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate() error {
	if c.AI.Model == "" {
		c.AI.Model = defaultAI().Model
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaultAI().BaseURL
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = defaultAI().Timeout
	}
	if c.Search.Model == "" {
		c.Search.Model = defaultSearch().Model
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaultSearch().BaseURL
	}

	if c.Paths.GraphDir == "" {
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			c.Paths.GraphDir = filepath.Join(xdgData, "docagent", "graphs")
		} else {
			home, _ := os.UserHomeDir()
			c.Paths.GraphDir = filepath.Join(home, ".local", "share", "docagent", "graphs")
		}
	} else {
		c.Paths.GraphDir = expandTilde(c.Paths.GraphDir)
	}

	validate := validator.New()

	validate.RegisterValidation("ordermode", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "dependency_first", "random_node", "random_file":
			return true
		}
		return false
	})

	validate.RegisterValidation("testmode", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "none", "placeholder", "context_print":
			return true
		}
		return false
	})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Test modes bypass the generation capability, so only a real run
	// needs credentials.
	if c.Flow.TestMode == "none" && c.AI.APIKey == "" {
		return fmt.Errorf("config validation failed: ai.api_key is required unless a test mode is set")
	}

	return nil
}
