// Package config provides configuration loading for the hiro MCP server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for hiro.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("hiro")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: HIRO_SERVER_HTTP_ADDR, etc.
	viper.SetEnvPrefix("HIRO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a hiro config file with
// an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(configDir(), "hiro"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "hiro"))
		}
	} else {
		paths = append(paths, "/etc/hiro")
	}
	_ = home
	return findConfigFileInPaths(paths)
}

// configDir returns the XDG config home, falling back to ~/.config.
func configDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// dataDir returns the XDG data home, falling back to ~/.local/share.
func dataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

// DefaultCookieConfigPath returns the default cookie sessions manifest path.
func DefaultCookieConfigPath() string {
	return filepath.Join(configDir(), "hiro", "cookie_sessions.yaml")
}

// DefaultCookieDataDir returns the default allowed directory for cookie files.
func DefaultCookieDataDir() string {
	return filepath.Join(dataDir(), "hiro", "cookies")
}

// DefaultPromptsDir returns the directory user-authored prompt guides live in.
func DefaultPromptsDir() string {
	return filepath.Join(configDir(), "hiro", "prompts")
}

// findConfigFileInPaths searches the given directories for hiro.yaml or .yml.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "hiro"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds config keys for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.transport")
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.path")
	_ = viper.BindEnv("server.name")
	_ = viper.BindEnv("server.version")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.metrics_addr")

	_ = viper.BindEnv("database.dsn")
	_ = viper.BindEnv("database.driver")
	_ = viper.BindEnv("database.pool_size")
	_ = viper.BindEnv("database.max_overflow")
	_ = viper.BindEnv("database.pool_timeout")

	_ = viper.BindEnv("http.proxy_url")
	_ = viper.BindEnv("http.timeout_seconds")
	_ = viper.BindEnv("http.verify_ssl")
	_ = viper.BindEnv("http.max_request_body_size")
	_ = viper.BindEnv("http.max_response_body_size")
	_ = viper.BindEnv("http.logging_enabled")
	_ = viper.BindEnv("http.tracing_header_prefix")

	_ = viper.BindEnv("cookies.enabled")
	_ = viper.BindEnv("cookies.config_path")
	_ = viper.BindEnv("cookies.data_dir")
	_ = viper.BindEnv("cookies.default_cache_ttl")

	_ = viper.BindEnv("audit.retention_days")

	_ = viper.BindEnv("vector.enabled")
	_ = viper.BindEnv("vector.similarity_floor")

	_ = viper.BindEnv("prompts.dir")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate. Use this when CLI flags may override
// DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
