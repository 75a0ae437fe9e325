package config

import "testing"

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with defaults = %v, want nil", err)
	}
}

func TestConfig_Validate_RejectsBadTransport(t *testing.T) {
	t.Parallel()

	cfg := Config{Server: ServerConfig{Transport: "carrier-pigeon"}}
	cfg.SetDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid transport")
	}
}

func TestConfig_Validate_HTTPRequiresAddrAndPath(t *testing.T) {
	t.Parallel()

	cfg := Config{Server: ServerConfig{Transport: "http"}}
	cfg.Database.DSN = "file::memory:"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing http_addr/path")
	}
}

func TestConfig_Validate_RejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()
	cfg.Server.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid log_level")
	}
}
