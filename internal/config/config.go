// Package config provides configuration management for docsite using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports a .docsite.yml file, environment
// variable overrides with the DOCSITE_ prefix, defaults applied after
// unmarshalling, and validation of ports, hosts and directories.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	docerrors "github.com/conneroisu/docsite/internal/errors"
)

// Runtime modes. The client listener is only active in ModeDevelopment.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
	ModeTest        = "test"
)

const (
	DefaultHost           = "localhost"
	DefaultPort           = 3001
	DefaultContentDir     = "content"
	DefaultPublicDir      = "public"
	DefaultPublicSubdir   = "content"
	DefaultReconnectDelay = time.Second
)

type Config struct {
	Mode    string        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Content ContentConfig `mapstructure:"content" yaml:"content" json:"content"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch" json:"watch"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client" json:"client"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

type ContentConfig struct {
	// Dir is the watched content root.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
	// PublicDir is the directory the site serves static assets from.
	PublicDir string `mapstructure:"public_dir" yaml:"public_dir" json:"public_dir"`
	// PublicSubdir is where changed content files are mirrored inside
	// PublicDir when RelocateOnChange is set.
	PublicSubdir string `mapstructure:"public_subdir" yaml:"public_subdir" json:"public_subdir"`
}

type WatchConfig struct {
	Ignore           []string      `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
	Debounce         time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	RelocateOnChange bool          `mapstructure:"relocate_on_change" yaml:"relocate_on_change" json:"relocate_on_change"`
	RefreshRegistry  bool          `mapstructure:"refresh_registry" yaml:"refresh_registry" json:"refresh_registry"`
}

type ClientConfig struct {
	URL            string        `mapstructure:"url" yaml:"url" json:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay" json:"reconnect_delay"`
	// MaxRetries bounds reconnect attempts; 0 retries forever.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// RegisterDefaults makes every key known to v so environment overrides
// (DOCSITE_SERVER_PORT and friends) reach Unmarshal.
func RegisterDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowed_origins", []string{"localhost:*", "127.0.0.1:*"})
	v.SetDefault("content.dir", DefaultContentDir)
	v.SetDefault("content.public_dir", DefaultPublicDir)
	v.SetDefault("content.public_subdir", DefaultPublicSubdir)
	v.SetDefault("watch.ignore", []string{})
	v.SetDefault("watch.debounce", time.Duration(0))
	v.SetDefault("watch.relocate_on_change", false)
	v.SetDefault("watch.refresh_registry", true)
	v.SetDefault("client.reconnect_delay", DefaultReconnectDelay)
	v.SetDefault("client.max_retries", 0)
	v.SetDefault("log.format", "text")

	// mode has no default so NODE_ENV can stand in for it.
	_ = v.BindEnv("mode", "DOCSITE_MODE", "NODE_ENV")
	_ = v.BindEnv("client.url", "DOCSITE_CLIENT_URL")
	_ = v.BindEnv("log.level", "DOCSITE_LOG_LEVEL")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, docerrors.NewConfigError("config", "unmarshal: %v", err)
	}

	// log-level is a root persistent flag, bound outside the log section.
	if v.IsSet("log-level") && !v.IsSet("log.level") {
		config.Log.Level = v.GetString("log-level")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Mode == "" {
		config.Mode = modeFromEnv()
	}
	config.Mode = strings.ToLower(config.Mode)

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{"localhost:*", "127.0.0.1:*"}
	}

	if config.Content.Dir == "" {
		config.Content.Dir = DefaultContentDir
	}
	if config.Content.PublicDir == "" {
		config.Content.PublicDir = DefaultPublicDir
	}
	if config.Content.PublicSubdir == "" {
		config.Content.PublicSubdir = DefaultPublicSubdir
	}

	if config.Client.URL == "" {
		config.Client.URL = "ws://" + config.Server.Host + ":" + itoa(config.Server.Port)
	}
	if config.Client.ReconnectDelay == 0 {
		config.Client.ReconnectDelay = DefaultReconnectDelay
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// modeFromEnv mirrors the NODE_ENV convention of the site build so the
// same environment drives both the site and the dev tooling.
func modeFromEnv() string {
	if m := os.Getenv("NODE_ENV"); m != "" {
		return m
	}
	return ModeDevelopment
}

// IsDevelopment reports whether the client listener should be active.
func (c *Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

// Addr is the broadcaster listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + itoa(c.Server.Port)
}

// ContentRoot returns the absolute content directory.
func (c *Config) ContentRoot() (string, error) {
	return filepath.Abs(c.Content.Dir)
}

// PublicRoot returns the absolute public directory.
func (c *Config) PublicRoot() (string, error) {
	return filepath.Abs(c.Content.PublicDir)
}

// MirrorRoot returns the absolute directory changed content files are
// mirrored into.
func (c *Config) MirrorRoot() (string, error) {
	return filepath.Abs(filepath.Join(c.Content.PublicDir, c.Content.PublicSubdir))
}
