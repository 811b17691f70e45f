package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	xdgAppName = "kanban"
	configFile = "config.json"

	apiKeyEnv = "SUPERMEMORY_API_KEY"
)

type SupermemoryConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	Space    string `json:"space" mapstructure:"space"`
	KeysFile string `json:"keys_file" mapstructure:"keys_file"`
	// APIKey is resolved from the environment or KeysFile and never written back.
	APIKey string `json:"-" mapstructure:"api_key"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" mapstructure:"addr"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

type ExportConfig struct {
	Template string `json:"template" mapstructure:"template"`
	Output   string `json:"output" mapstructure:"output"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Config holds every setting of the kanban tool. Paths are resolved against
// the config directory when relative.
type Config struct {
	TasksFile    string            `json:"tasks_file" mapstructure:"tasks_file"`
	BoardURL     string            `json:"board_url" mapstructure:"board_url"`
	ProjectLabel string            `json:"project_label" mapstructure:"project_label"`
	Calendar     string            `json:"calendar" mapstructure:"calendar"`
	Supermemory  SupermemoryConfig `json:"supermemory" mapstructure:"supermemory"`
	Server       ServerConfig      `json:"server" mapstructure:"server"`
	Export       ExportConfig      `json:"export" mapstructure:"export"`
	Log          LogConfig         `json:"log" mapstructure:"log"`

	// Dir is the directory holding config.json, tokens and sync indexes.
	Dir string `json:"-" mapstructure:"-"`
	// Path is the config file that was read or will be written.
	Path string `json:"-" mapstructure:"-"`
}

// GetConfigDir returns ~/.config/kanban.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tasks_file", "tasks.json")
	v.SetDefault("board_url", "")
	v.SetDefault("project_label", "project-kanban")
	v.SetDefault("calendar", "")
	v.SetDefault("supermemory.enabled", true)
	v.SetDefault("supermemory.base_url", "https://api.supermemory.ai/v3")
	v.SetDefault("supermemory.space", "default")
	v.SetDefault("supermemory.keys_file", "keys.env")
	v.SetDefault("supermemory.api_key", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("export.template", "")
	v.SetDefault("export.output", "index.html")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then the config file at path (or the default location
// when path is empty), then KANBAN_* environment variables. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	v.SetEnvPrefix("KANBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Path = path
	cfg.Dir = filepath.Dir(path)
	cfg.TasksFile = cfg.Resolve(cfg.TasksFile)
	cfg.Supermemory.KeysFile = cfg.Resolve(cfg.Supermemory.KeysFile)
	cfg.Supermemory.APIKey = resolveAPIKey(cfg.Supermemory)
	return cfg, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// resolveAPIKey prefers an explicit setting, then the environment, then the keys file.
func resolveAPIKey(sm SupermemoryConfig) string {
	if sm.APIKey != "" {
		return sm.APIKey
	}
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key
	}
	if sm.KeysFile == "" {
		return ""
	}
	env, err := godotenv.Read(sm.KeysFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(env[apiKeyEnv])
}

// Resolve makes p absolute relative to the config directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(c.Dir, p)
}

// Save writes cfg as JSON to cfg.Path (or the default location).
func Save(cfg *Config) error {
	path := cfg.Path
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
