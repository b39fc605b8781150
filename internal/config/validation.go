package config

import (
	"path/filepath"
	"strconv"
	"strings"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/validation"
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	switch config.Mode {
	case ModeDevelopment, ModeProduction, ModeTest:
	default:
		return docerrors.NewConfigError("mode", "unknown mode %q (want development, production or test)", config.Mode)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}

	if err := validateDir("content.dir", config.Content.Dir); err != nil {
		return err
	}
	if err := validateDir("content.public_dir", config.Content.PublicDir); err != nil {
		return err
	}
	if err := validateSubdir("content.public_subdir", config.Content.PublicSubdir); err != nil {
		return err
	}

	if config.Watch.Debounce < 0 {
		return docerrors.NewConfigError("watch.debounce", "must not be negative")
	}
	if config.Client.ReconnectDelay < 0 {
		return docerrors.NewConfigError("client.reconnect_delay", "must not be negative")
	}
	if config.Client.MaxRetries < 0 {
		return docerrors.NewConfigError("client.max_retries", "must not be negative")
	}
	if err := validation.ValidateURL(config.Client.URL, "ws", "wss"); err != nil {
		return docerrors.NewConfigError("client.url", "%v", err)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return docerrors.NewConfigError("log.format", "unknown format %q", config.Log.Format)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Port 0 is rewritten to the default before validation; anything
	// outside the range is a typo.
	if config.Port < 0 || config.Port > 65535 {
		return docerrors.NewConfigError("server.port", "port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return docerrors.NewConfigError("server.host", "host contains dangerous character: %q", char)
		}
	}

	for _, pattern := range config.AllowedOrigins {
		if err := validation.ValidateOriginPattern(pattern); err != nil {
			return docerrors.NewConfigError("server.allowed_origins", "%v", err)
		}
	}

	return nil
}

// validateDir rejects empty directories and traversal outside the project.
func validateDir(field, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return docerrors.NewConfigError(field, "must not be empty")
	}
	if filepath.IsAbs(dir) {
		return nil
	}
	clean := filepath.Clean(dir)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return docerrors.NewConfigError(field, "path traversal: %s", dir)
	}
	return nil
}

// validateSubdir requires a relative path that stays inside its parent.
func validateSubdir(field, dir string) error {
	if filepath.IsAbs(dir) {
		return docerrors.NewConfigError(field, "must be relative, got %s", dir)
	}
	return validateDir(field, dir)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
