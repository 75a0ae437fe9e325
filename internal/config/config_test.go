package config

import "testing"

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.Transport != "stdio" {
		t.Errorf("Transport = %q, want %q", cfg.Server.Transport, "stdio")
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:8090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8090")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", cfg.Database.PoolSize)
	}
	if cfg.HTTP.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %v, want 30", cfg.HTTP.TimeoutSeconds)
	}
	if !cfg.HTTP.VerifySSL {
		t.Error("VerifySSL should default to true")
	}
	if len(cfg.HTTP.SensitiveHeaders) == 0 {
		t.Error("SensitiveHeaders should have defaults")
	}
	if !cfg.Cookies.Enabled {
		t.Error("Cookies.Enabled should default to true")
	}
}

func TestConfig_SetDevDefaults_NoopWithoutDevMode(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDevDefaults()

	if cfg.Server.LogLevel != "" {
		t.Errorf("LogLevel = %q, want empty when DevMode is false", cfg.Server.LogLevel)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "debug")
	}
}
