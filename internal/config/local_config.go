package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LocalConfig holds machine-local preferences read from config.yaml inside
// the tasks directory. These never belong in the shared .mcp-tasks.edn:
// they differ per checkout (author identity, push policy, terminal color).
type LocalConfig struct {
	GitAuthor string `yaml:"git-author"`
	NoPush    bool   `yaml:"no-push"`
	NoGPGSign bool   `yaml:"no-gpg-sign"`
	Color     string `yaml:"color"`
}

// LoadLocalConfig reads and parses config.yaml from the tasks directory.
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't
// be parsed.
func LoadLocalConfig(tasksDir string) *LocalConfig {
	configPath := filepath.Join(tasksDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies MCP_TASKS_*
// environment overrides. Environment variables take precedence over file
// values.
func LoadLocalConfigWithEnv(tasksDir string) *LocalConfig {
	cfg := LoadLocalConfig(tasksDir)

	v := viper.New()
	v.BindEnv("git-author", "MCP_TASKS_GIT_AUTHOR")
	v.BindEnv("no-push", "MCP_TASKS_NO_PUSH")
	v.BindEnv("no-gpg-sign", "MCP_TASKS_NO_GPG_SIGN")
	v.BindEnv("color", "MCP_TASKS_COLOR")

	if author := v.GetString("git-author"); author != "" {
		cfg.GitAuthor = author
	}
	if v.GetString("no-push") != "" {
		cfg.NoPush = v.GetBool("no-push")
	}
	if v.GetString("no-gpg-sign") != "" {
		cfg.NoGPGSign = v.GetBool("no-gpg-sign")
	}
	if color := v.GetString("color"); color != "" {
		cfg.Color = color
	}
	return cfg
}
