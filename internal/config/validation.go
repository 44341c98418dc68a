package config

import (
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
)

var (
	hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

	// Characters with shell or markup meaning have no business in paths and
	// host names read from configuration.
	dangerousChars = ";&|$`()<>\"'"
)

func validateConfig(config *Config) error {
	if err := validateParserConfig(&config.Parser); err != nil {
		return err
	}
	if err := validateTagsConfig(&config.Tags); err != nil {
		return err
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return err
	}
	return validateLogConfig(&config.Log)
}

func validateParserConfig(config *ParserConfig) error {
	if config.MaxDepth < 0 {
		return errors.ConfigurationError("parser.max_depth", "must be zero (unlimited) or positive", config.MaxDepth)
	}
	return nil
}

func validateTagsConfig(config *TagsConfig) error {
	for _, file := range config.Files {
		if err := validatePath(file); err != nil {
			return errors.ConfigurationError("tags.files", err.Error(), file)
		}
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yml", ".yaml", ".toml", ".json":
		default:
			return errors.ConfigurationError("tags.files", "unsupported tag file format", file)
		}
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system pick one, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return errors.ConfigurationError("server.port", "not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return errors.ConfigurationError("server.host", err.Error(), config.Host)
		}
	}
	for _, origin := range config.AllowedOrigins {
		if strings.ContainsAny(origin, dangerousChars) {
			return errors.ConfigurationError("server.allowed_origins", "origin contains a dangerous character", origin)
		}
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	for _, path := range config.Paths {
		if err := validatePath(path); err != nil {
			return errors.ConfigurationError("watch.paths", err.Error(), path)
		}
	}
	if len(config.Extensions) == 0 {
		return errors.ConfigurationError("watch.extensions", "at least one extension is required", config.Extensions)
	}
	if config.OutputDir != "" {
		if err := validatePath(config.OutputDir); err != nil {
			return errors.ConfigurationError("watch.output_dir", err.Error(), config.OutputDir)
		}
	}
	if config.Debounce < 0 {
		return errors.ConfigurationError("watch.debounce", "must not be negative", config.Debounce)
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return errors.ConfigurationError("log.level", err.Error(), config.Level)
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return errors.ConfigurationError("log.format", "must be text or json", config.Format)
	}
}

func validateHostname(host string) error {
	if strings.ContainsAny(host, dangerousChars+"\\") {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "contains dangerous character")
	}
	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "invalid hostname format")
	}
	return nil
}

// validatePath rejects empty paths, traversal and shell metacharacters.
func validatePath(path string) error {
	if path == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "empty path")
	}

	clean := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return errors.NewValidationError(errors.ErrCodeInvalidPath, "path contains traversal")
		}
	}
	if strings.ContainsAny(clean, dangerousChars) {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "path contains dangerous character")
	}
	return nil
}
