package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate in dir
func validConfig(dir string) *Config {
	return &Config{
		Mode:             "stdio",
		Host:             "127.0.0.1",
		Port:             8080,
		Directory:        dir,
		Template:         "form.pdf",
		TemplateFallback: "fail",
		DispatchTimeout:  time.Second,
		MaxPayload:       1024,
		LogLevel:         "info",
		MaxFileSize:      1024,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.ServerName != "mcp-form-filler" {
		t.Errorf("Expected default server name to be 'mcp-form-filler', got '%s'", cfg.ServerName)
	}

	if cfg.Template != "form.pdf" {
		t.Errorf("Expected default template to be 'form.pdf', got '%s'", cfg.Template)
	}

	if cfg.TemplateFallback != "fail" {
		t.Errorf("Expected default template fallback to be 'fail', got '%s'", cfg.TemplateFallback)
	}

	if cfg.MaxPayload != 15*1024*1024 {
		t.Errorf("Expected default max payload to be 15MiB, got %d", cfg.MaxPayload)
	}

	if cfg.Debounce != 400*time.Millisecond {
		t.Errorf("Expected default debounce to be 400ms, got %v", cfg.Debounce)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	currentDir, _ := os.Getwd()
	if cfg.Directory != currentDir {
		t.Errorf("Expected default directory to be '%s', got '%s'", currentDir, cfg.Directory)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config - stdio mode",
			modify: func(*Config) {},
		},
		{
			name:   "valid config - server mode",
			modify: func(c *Config) { c.Mode = "server" },
		},
		{
			name:    "invalid mode",
			modify:  func(c *Config) { c.Mode = "invalid" },
			wantErr: "mode must be either",
		},
		{
			name:    "invalid port - too low (server mode)",
			modify:  func(c *Config) { c.Mode = "server"; c.Port = 0 },
			wantErr: "port must be between",
		},
		{
			name:    "invalid port - too high (server mode)",
			modify:  func(c *Config) { c.Mode = "server"; c.Port = 70000 },
			wantErr: "port must be between",
		},
		{
			name:   "invalid port ignored in stdio mode",
			modify: func(c *Config) { c.Port = 0 },
		},
		{
			name:    "empty directory",
			modify:  func(c *Config) { c.Directory = "" },
			wantErr: "directory cannot be empty",
		},
		{
			name:    "missing template",
			modify:  func(c *Config) { c.Template = "" },
			wantErr: "template is required",
		},
		{
			name:   "missing template with blank fallback",
			modify: func(c *Config) { c.Template = ""; c.TemplateFallback = "blank" },
		},
		{
			name:    "invalid fallback",
			modify:  func(c *Config) { c.TemplateFallback = "retry" },
			wantErr: "invalid template fallback",
		},
		{
			name:    "invalid max file size",
			modify:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: "maximum file size",
		},
		{
			name:    "invalid max payload",
			modify:  func(c *Config) { c.MaxPayload = -1 },
			wantErr: "maximum payload",
		},
		{
			name:    "invalid dispatch timeout",
			modify:  func(c *Config) { c.DispatchTimeout = 0 },
			wantErr: "dispatch timeout",
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Debounce = -time.Millisecond },
			wantErr: "debounce",
		},
		{
			name:   "zero debounce",
			modify: func(c *Config) { c.Debounce = 0 },
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t.TempDir())
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Config.Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	nonExistentDir := filepath.Join(t.TempDir(), "non-existent", "forms")

	cfg := validConfig(nonExistentDir)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error: %v", err)
	}

	info, err := os.Stat(nonExistentDir)
	if err != nil {
		t.Fatalf("Directory should have been created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", nonExistentDir)
	}
}

func TestConfigValidateDirectoryIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig(filepath.Join(file, "sub"))
	if err := cfg.Validate(); err == nil {
		t.Error("Config.Validate() expected error for directory below a file")
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		logLevel string
		want     bool
	}{
		{logLevel: "debug", want: true},
		{logLevel: "info", want: false},
		{logLevel: "warn", want: false},
		{logLevel: "error", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:             "server",
		Host:             "localhost",
		Port:             8080,
		Directory:        "/srv/forms",
		Template:         "form.pdf",
		TemplateFallback: "blank",
		DispatchURL:      "https://mail.example/send",
		LogLevel:         "debug",
		MaxFileSize:      1024,
		MaxPayload:       2048,
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"Directory: /srv/forms",
		"Template: form.pdf",
		"Fallback: blank",
		"DispatchURL: https://mail.example/send",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"MaxPayload: 2048",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	tempDir := t.TempDir()

	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level
			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}

func TestConfigModes(t *testing.T) {
	tests := []struct {
		mode       string
		wantServer bool
		wantStdio  bool
	}{
		{mode: "server", wantServer: true},
		{mode: "stdio", wantStdio: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			if got := cfg.IsServerMode(); got != tt.wantServer {
				t.Errorf("Config.IsServerMode() = %v, want %v", got, tt.wantServer)
			}
			if got := cfg.IsStdioMode(); got != tt.wantStdio {
				t.Errorf("Config.IsStdioMode() = %v, want %v", got, tt.wantStdio)
			}
		})
	}
}
