package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	xdgAppName = "taskmind"
	configFile = "config.yaml"
	envPrefix  = "TASKMIND"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Account  AccountConfig  `mapstructure:"account"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// AccountConfig describes the Google account the fetchers act for.
// Tier "work" enables Google Chat fetching.
type AccountConfig struct {
	Tier        string `mapstructure:"tier"`
	AccessToken string `mapstructure:"access_token"`
}

type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SourcesConfig struct {
	Gmail    bool          `mapstructure:"gmail"`
	Chat     bool          `mapstructure:"chat"`
	MaxItems int           `mapstructure:"max_items"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	Mode string `mapstructure:"mode"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	DatabaseURL   string `mapstructure:"database_url"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

type BackupConfig struct {
	Filename string `mapstructure:"filename"`
}

type CalendarConfig struct {
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Enhanced reports whether the account tier unlocks Google Chat.
func (a AccountConfig) Enhanced() bool {
	return strings.EqualFold(a.Tier, "work")
}

func GetXdgHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetXdgHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func setDefaults(v *viper.Viper) {
	dataDir, err := GetXdgHome()
	if err != nil {
		dataDir = "."
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("account.tier", "personal")
	v.SetDefault("account.access_token", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("sources.gmail", true)
	v.SetDefault("sources.chat", true)
	v.SetDefault("sources.max_items", 10)
	v.SetDefault("sources.timeout", 20*time.Second)
	v.SetDefault("sync.mode", "replace")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", dataDir)
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "taskmind.db"))
	v.SetDefault("backup.filename", "taskmind_backup.json")
	v.SetDefault("calendar.name", "Tasks")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
}

// Load reads the config file at path (the XDG location when empty), then
// applies TASKMIND_* environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	v, err := open(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch reloads the config file whenever it changes and hands the result to
// onChange. Decode failures are logged and skipped.
func Watch(path string, onChange func(*Config)) error {
	v, err := open(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("ignoring invalid config change", "path", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "path", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func open(path string) (*viper.Viper, error) {
	_ = godotenv.Load()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", "TASKMIND_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("storage.database_url", "TASKMIND_STORAGE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, err
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Sources.MaxItems <= 0 {
		cfg.Sources.MaxItems = 10
	}
	return &cfg, nil
}

// Set persists a single key into the config file at path.
func Set(path, key, value string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &nf)
}
