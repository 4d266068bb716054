package sageagent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "sage_agent_config.json"
	DefaultBaseURL    = "http://localhost:1234/v1"
	DefaultAPIKey     = "lm-studio"
	DefaultModel      = "local-model"
)

type ModelConfig struct {
	// ModelID overrides the model named in the agent config file when set.
	ModelID           string  `env:"MODEL_ID"`
	MaxTokens         int32   `env:"MAX_TOKENS,default=1000"`
	Temperature       float32 `env:"TEMPERATURE,default=0.1"`
	StrictTemperature float32 `env:"STRICT_TEMPERATURE,default=0.05"`
}

type AgentConfig struct {
	ConfigPath        string   `env:"SAGE_CONFIG_PATH,default=sage_agent_config.json"`
	RecipesDir        string   `env:"RECIPES_DIR,default=./recipes"`
	// RecipesBucket selects S3 storage in Lambda; RecipesDir is then the key prefix.
	RecipesBucket     string   `env:"RECIPES_S3_BUCKET"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS,default=.md"`
	MaxFilesPerBatch  int      `env:"MAX_FILES_PER_BATCH,default=5"`
	IgnorePatterns    []string `env:"IGNORE_PATTERNS"`
	MaxToolRounds     int      `env:"MAX_TOOL_ROUNDS,default=1"`
	Validate          bool     `env:"VALIDATE,default=false"`
	RegeneratePolicy  string   `env:"REGENERATE_POLICY,default=never"`
	FactExtraction    bool     `env:"FACT_EXTRACTION,default=false"`
	ModelProvider     string   `env:"MODEL_PROVIDER,default=lmstudio"`
	SlackWebhookURL   string   `env:"SLACK_WEBHOOK_URL"`
	SlackChannel      string   `env:"SLACK_CHANNEL,default=#sage"`
	DebugDump         bool     `env:"DEBUG_DUMP,default=false"`
}

// FileConfig is the agent config file: model endpoint plus auxiliary tool servers.
type FileConfig struct {
	BaseURL string         `mapstructure:"base_url" json:"base_url"`
	APIKey  string         `mapstructure:"api_key" json:"api_key"`
	Model   string         `mapstructure:"model" json:"model"`
	Servers []ServerConfig `mapstructure:"-" json:"servers"`
}

// ServerConfig describes an auxiliary tool server. Only "stdio" is supported.
type ServerConfig struct {
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Config StdioConfig `json:"config"`
}

type StdioConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// LoadFileConfig reads the agent config file. A missing file yields the
// defaults. base_url, api_key and model can be overridden with SAGE_BASE_URL,
// SAGE_API_KEY and SAGE_MODEL.
func LoadFileConfig(path string) (FileConfig, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_key", DefaultAPIKey)
	v.SetDefault("model", DefaultModel)
	v.SetEnvPrefix("sage")
	v.AutomaticEnv()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("SETUP: Agent config file not found, using defaults", "path", path)
		raw = nil
	case err != nil:
		return FileConfig{}, fmt.Errorf("failed to read agent config: %w", err)
	default:
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return FileConfig{}, fmt.Errorf("failed to parse agent config: %w", err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode agent config: %w", err)
	}

	// viper folds map keys to lower case, which would mangle env var names,
	// so servers are decoded from the raw document.
	if raw != nil {
		var doc struct {
			Servers []ServerConfig `json:"servers"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return FileConfig{}, fmt.Errorf("failed to decode agent config servers: %w", err)
		}
		for i, s := range doc.Servers {
			if s.Type != "" && s.Type != "stdio" {
				return FileConfig{}, fmt.Errorf("server %d: unsupported type %q", i, s.Type)
			}
			if s.Name == "" {
				doc.Servers[i].Name = fmt.Sprintf("server-%d", i)
			}
		}
		cfg.Servers = doc.Servers
	}

	return cfg, nil
}
