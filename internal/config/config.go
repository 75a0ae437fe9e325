// Package config provides configuration types for the hiro MCP server.
//
// The schema covers the server's ambient concerns only: transport
// selection, the SQLite-backed store, the HTTP tool's outbound client,
// and the cookie session provider. Schema migration, multi-tenant
// auth, and policy evaluation are out of scope for this server.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for the hiro MCP server.
type Config struct {
	// Server configures the MCP transport (stdio or streamable HTTP).
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Database configures the relational store.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// HTTP configures the outbound http_request tool.
	HTTP HTTPToolConfig `yaml:"http" mapstructure:"http"`

	// Cookies configures the cookie session resource provider.
	Cookies CookieConfig `yaml:"cookies" mapstructure:"cookies"`

	// Audit configures retention of persisted HttpRequest rows.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Vector configures the embedding capability backing recall and the
	// technique library's semantic search.
	Vector VectorConfig `yaml:"vector" mapstructure:"vector"`

	// Prompts configures the prompt:// resource's built-in/user guide set.
	Prompts PromptsConfig `yaml:"prompts" mapstructure:"prompts"`

	// DevMode enables verbose logging and relaxes a handful of defaults.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the MCP server transport.
type ServerConfig struct {
	// Transport selects how the server exposes MCP: "stdio" or "http".
	Transport string `yaml:"transport" mapstructure:"transport" validate:"omitempty,oneof=stdio http"`

	// HTTPAddr is the listen address when Transport is "http".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Path is the HTTP path the streamable MCP handler is mounted on.
	Path string `yaml:"path" mapstructure:"path"`

	// Name is the MCP server's advertised implementation name.
	Name string `yaml:"name" mapstructure:"name"`

	// Version is the MCP server's advertised implementation version.
	Version string `yaml:"version" mapstructure:"version"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the metrics listener.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// DatabaseConfig configures the SQLite-backed store.
type DatabaseConfig struct {
	// DSN is the sqlite data source name, e.g. "file:hiro.db?_pragma=busy_timeout(5000)".
	DSN string `yaml:"dsn" mapstructure:"dsn" validate:"required"`

	// Driver must be "sqlite"; reserved for future drivers.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"omitempty,oneof=sqlite"`

	// PoolSize is the maximum number of open connections.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size" validate:"omitempty,min=1"`

	// MaxOverflow is added to PoolSize for idle connection headroom.
	MaxOverflow int `yaml:"max_overflow" mapstructure:"max_overflow" validate:"omitempty,min=0"`

	// PoolTimeout bounds the connectivity ping made when the pool is first
	// opened, e.g. "5s". Individual queries get no deadline from it.
	PoolTimeout string `yaml:"pool_timeout" mapstructure:"pool_timeout"`
}

// HTTPToolConfig configures the outbound http_request tool.
type HTTPToolConfig struct {
	// ProxyURL routes outbound requests through an intercepting proxy.
	ProxyURL string `yaml:"proxy_url" mapstructure:"proxy_url" validate:"omitempty,url"`

	// TimeoutSeconds bounds a single outbound request.
	TimeoutSeconds float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"omitempty,min=0"`

	// VerifySSL controls TLS certificate verification for outbound requests.
	VerifySSL bool `yaml:"verify_ssl" mapstructure:"verify_ssl"`

	// MaxRequestBodySize bounds the request body bytes kept in the
	// persisted HttpRequest row; the outbound request carries the full body.
	MaxRequestBodySize int `yaml:"max_request_body_size" mapstructure:"max_request_body_size" validate:"omitempty,min=1"`

	// MaxResponseBodySize bounds the response body bytes kept in the
	// persisted HttpRequest row; the tool output carries the full body.
	MaxResponseBodySize int `yaml:"max_response_body_size" mapstructure:"max_response_body_size" validate:"omitempty,min=1"`

	// SensitiveHeaders are redacted from the persisted audit record.
	SensitiveHeaders []string `yaml:"sensitive_headers" mapstructure:"sensitive_headers"`

	// LoggingEnabled controls whether requests are persisted to the store.
	LoggingEnabled bool `yaml:"logging_enabled" mapstructure:"logging_enabled"`

	// TracingHeaderPrefix names the header set merged ahead of user headers.
	TracingHeaderPrefix string `yaml:"tracing_header_prefix" mapstructure:"tracing_header_prefix"`
}

// CookieConfig configures the cookie session resource provider.
type CookieConfig struct {
	// Enabled controls whether cookie-session:// resources are registered.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ConfigPath is the cookie sessions manifest (YAML).
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`

	// DataDir is the allowed base directory for relative cookie files.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// DefaultCacheTTL is used when a session omits cache_ttl, e.g. "60s".
	DefaultCacheTTL string `yaml:"default_cache_ttl" mapstructure:"default_cache_ttl"`
}

// VectorConfig configures the embedding capability. When Enabled is
// false every tool that needs a vector (recall, library search) reports
// "not available" rather than operating on zero vectors.
type VectorConfig struct {
	// Enabled turns on vector.HashEmbedder; off selects vector.NoopEmbedder.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// SimilarityFloor is the default θ applied when a tool call omits one.
	SimilarityFloor float64 `yaml:"similarity_floor" mapstructure:"similarity_floor" validate:"omitempty,min=0,max=1"`
}

// PromptsConfig configures the prompt:// resource.
type PromptsConfig struct {
	// Dir holds user-authored YAML prompt guides overriding built-ins by
	// filename stem. Empty disables loading user overrides.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AuditConfig configures retention of persisted HttpRequest rows.
// This is unrelated to structured audit logging (out of scope); it only
// bounds how long request history accumulates in the store.
type AuditConfig struct {
	// RetentionDays is how long HttpRequest rows are kept before cleanup.
	// 0 disables automatic cleanup.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=0"`
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied before validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "debug"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8090"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/mcp"
	}
	if c.Server.Name == "" {
		c.Server.Name = "hiro"
	}
	if c.Server.Version == "" {
		c.Server.Version = "dev"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if !viper.IsSet("server.metrics_addr") && c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "127.0.0.1:9090"
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:hiro.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.PoolSize == 0 {
		c.Database.PoolSize = 10
	}
	if c.Database.MaxOverflow == 0 {
		c.Database.MaxOverflow = 5
	}
	if c.Database.PoolTimeout == "" {
		c.Database.PoolTimeout = "5s"
	}

	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 30
	}
	if !viper.IsSet("http.verify_ssl") {
		c.HTTP.VerifySSL = true
	}
	if c.HTTP.MaxRequestBodySize == 0 {
		c.HTTP.MaxRequestBodySize = 1 << 20
	}
	if c.HTTP.MaxResponseBodySize == 0 {
		c.HTTP.MaxResponseBodySize = 1 << 20
	}
	if len(c.HTTP.SensitiveHeaders) == 0 {
		c.HTTP.SensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}
	}
	if !viper.IsSet("http.logging_enabled") {
		c.HTTP.LoggingEnabled = true
	}
	if c.HTTP.TracingHeaderPrefix == "" {
		c.HTTP.TracingHeaderPrefix = "hiro"
	}

	if !viper.IsSet("cookies.enabled") {
		c.Cookies.Enabled = true
	}
	if c.Cookies.DefaultCacheTTL == "" {
		c.Cookies.DefaultCacheTTL = "60s"
	}

	if !viper.IsSet("vector.enabled") {
		c.Vector.Enabled = true
	}
	if c.Vector.SimilarityFloor == 0 {
		c.Vector.SimilarityFloor = 0.5
	}
}
