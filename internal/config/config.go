package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultMaxPayload      = 15 * 1024 * 1024  // dispatch service ceiling
	DefaultDispatchTimeout = 30 * time.Second
	DefaultDebounce        = 400 * time.Millisecond
	DefaultMailSubject     = "Form submission"
	DefaultFallback        = "fail"
	DefaultTemplate        = "form.pdf"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the form filler server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Asset configuration, relative to Directory unless absolute or a URL
	Directory        string
	Template         string
	Background       string
	FieldsFile       string
	TemplateFallback string // "fail" or "blank"

	// Dispatch configuration
	DispatchURL     string
	MailTo          string
	MailSubject     string
	DispatchTimeout time.Duration
	MaxPayload      int

	// Preview configuration
	Debounce time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum uploaded PDF size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio,
		Host:             DefaultHost,
		Port:             DefaultPort,
		Directory:        currentDir,
		Template:         DefaultTemplate,
		TemplateFallback: DefaultFallback,
		MailSubject:      DefaultMailSubject,
		DispatchTimeout:  DefaultDispatchTimeout,
		MaxPayload:       DefaultMaxPayload,
		Debounce:         DefaultDebounce,
		Version:          "1.0.0",
		ServerName:       "mcp-form-filler",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.Directory != "" {
		if expandedPath, err := filepath.Abs(cfg.Directory); err == nil {
			cfg.Directory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys lists every key shared by pflag, viper and the environment
var flagKeys = []string{
	"mode", "host", "port", "dir", "template", "background", "fields",
	"template-fallback", "dispatch-url", "mail-to", "mail-subject",
	"dispatch-timeout", "max-payload", "debounce", "loglevel", "maxfilesize",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FORMFILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.Directory)
	viper.SetDefault("template", cfg.Template)
	viper.SetDefault("background", cfg.Background)
	viper.SetDefault("fields", cfg.FieldsFile)
	viper.SetDefault("template-fallback", cfg.TemplateFallback)
	viper.SetDefault("dispatch-url", cfg.DispatchURL)
	viper.SetDefault("mail-to", cfg.MailTo)
	viper.SetDefault("mail-subject", cfg.MailSubject)
	viper.SetDefault("dispatch-timeout", cfg.DispatchTimeout)
	viper.SetDefault("max-payload", cfg.MaxPayload)
	viper.SetDefault("debounce", cfg.Debounce)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.Directory, "Directory holding form assets and generated files")
	pflag.String("template", cfg.Template, "PDF template path or URL")
	pflag.String("background", cfg.Background, "Preview background image path or URL")
	pflag.String("fields", cfg.FieldsFile, "YAML field registry (built-in registry when empty)")
	pflag.String("template-fallback", cfg.TemplateFallback, "On template load failure: 'fail' or 'blank'")
	pflag.String("dispatch-url", cfg.DispatchURL, "Email service endpoint")
	pflag.String("mail-to", cfg.MailTo, "Default submission recipient")
	pflag.String("mail-subject", cfg.MailSubject, "Default submission subject")
	pflag.Duration("dispatch-timeout", cfg.DispatchTimeout, "Email service request timeout")
	pflag.Int("max-payload", cfg.MaxPayload, "Maximum submission payload in bytes")
	pflag.Duration("debounce", cfg.Debounce, "Delay before a preview is regenerated after an edit")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum uploaded PDF size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Form Filler - A Model Context Protocol server for filling and submitting PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/srv/forms --template=form.pdf --background=form.png\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --template=form.pdf --fields=fields.yaml --dispatch-url=https://mail.example/send\n",
			os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 --template=form.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range flagKeys {
			fmt.Fprintf(os.Stderr, "  FORMFILL_%s\n", strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Directory = viper.GetString("dir")
	cfg.Template = viper.GetString("template")
	cfg.Background = viper.GetString("background")
	cfg.FieldsFile = viper.GetString("fields")
	cfg.TemplateFallback = viper.GetString("template-fallback")
	cfg.DispatchURL = viper.GetString("dispatch-url")
	cfg.MailTo = viper.GetString("mail-to")
	cfg.MailSubject = viper.GetString("mail-subject")
	cfg.DispatchTimeout = viper.GetDuration("dispatch-timeout")
	cfg.MaxPayload = viper.GetInt("max-payload")
	cfg.Debounce = viper.GetDuration("debounce")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("form directory cannot be empty")
	}

	// Create the directory if it doesn't exist
	if _, err := os.Stat(c.Directory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.Directory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create form directory %s: %w", c.Directory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access form directory %s: %w", c.Directory, err)
	}

	if c.Template == "" && c.TemplateFallback != "blank" {
		return errors.New("template is required unless template-fallback is 'blank'")
	}

	if c.TemplateFallback != "fail" && c.TemplateFallback != "blank" {
		return fmt.Errorf("invalid template fallback: %s (must be 'fail' or 'blank')", c.TemplateFallback)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.MaxPayload <= 0 {
		return errors.New("maximum payload size must be positive")
	}

	if c.DispatchTimeout <= 0 {
		return errors.New("dispatch timeout must be positive")
	}

	if c.Debounce < 0 {
		return errors.New("debounce delay cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, Template: %s, Background: %s, "+
		"Fallback: %s, DispatchURL: %s, LogLevel: %s, MaxFileSize: %d, MaxPayload: %d}",
		c.Mode, c.Host, c.Port, c.Directory, c.Template, c.Background,
		c.TemplateFallback, c.DispatchURL, c.LogLevel, c.MaxFileSize, c.MaxPayload)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
