// Package config provides configuration management for the CIAM console and admin API
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openidx/ciam-console/internal/common/tracing"
	"github.com/openidx/ciam-console/internal/directory"
)

const (
	baseConfigName    = "appsettings"
	overlayConfigName = "appsettings.Development"
	envPrefix         = "CIAM"
)

// Config holds all configuration for the application
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	Port        int    `mapstructure:"port"`

	// AzureAD is the "AzureAd" section of appsettings.json
	AzureAD directory.Settings `mapstructure:"azuread"`

	Directory DirectoryConfig `mapstructure:"directory"`
	Tracing   TracingConfig   `mapstructure:"tracing"`

	// ConfigFile is the base settings file that was read, empty when none was found
	ConfigFile string `mapstructure:"-"`
	// Overlays lists the files merged over the base file
	Overlays []string `mapstructure:"-"`
}

// DirectoryConfig tunes directory round trips. Durations are in seconds.
type DirectoryConfig struct {
	RequestTimeout          int `mapstructure:"request_timeout"`
	DefaultListLimit        int `mapstructure:"default_list_limit"`
	CircuitBreakerThreshold int `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerReset     int `mapstructure:"circuit_breaker_reset"`
}

// TracingConfig holds OpenTelemetry export settings
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type loadOptions struct {
	path     string
	searchIn []string
}

// LoadOption customizes Load
type LoadOption func(*loadOptions)

// WithFile reads the base settings from path instead of searching for appsettings.json
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchPaths replaces the directories searched for appsettings.json
func WithSearchPaths(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.searchIn = dirs
	}
}

func defaultSearchPaths() []string {
	paths := []string{".", "./configs"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".ciam"))
	}
	return paths
}

// Load reads configuration from appsettings.json, the Development overlay and
// environment variables, in increasing order of precedence. A missing settings
// file is not an error; missing tenant settings are reported by Validate.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{searchIn: defaultSearchPaths()}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("json")
	if o.path != "" {
		v.SetConfigFile(o.path)
	} else {
		v.SetConfigName(baseConfigName)
		for _, dir := range o.searchIn {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	baseFile := v.ConfigFileUsed()
	var overlays []string
	if overlay := overlayPath(baseFile, o.searchIn); overlay != "" {
		v.SetConfigFile(overlay)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error merging %s: %w", overlay, err)
		}
		overlays = append(overlays, overlay)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.ConfigFile = baseFile
	cfg.Overlays = overlays

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// overlayPath finds appsettings.Development.json next to the base file, or in
// the search paths when no base file was read
func overlayPath(baseFile string, searchIn []string) string {
	dirs := searchIn
	if baseFile != "" {
		dirs = []string{filepath.Dir(baseFile)}
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, overlayConfigName+".json")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)

	// Empty tenant settings keep the keys known to Unmarshal so env overrides apply
	v.SetDefault("azuread.tenantid", "")
	v.SetDefault("azuread.clientid", "")
	v.SetDefault("azuread.clientsecret", "")
	v.SetDefault("azuread.tenantname", "")
	v.SetDefault("azuread.authorityhost", directory.DefaultAuthorityHost)
	v.SetDefault("azuread.graphbaseurl", directory.DefaultGraphBaseURL)

	v.SetDefault("directory.request_timeout", int(directory.DefaultRequestTimeout/time.Second))
	v.SetDefault("directory.default_list_limit", directory.DefaultListLimit)
	v.SetDefault("directory.circuit_breaker_threshold", 0)
	v.SetDefault("directory.circuit_breaker_reset", 30)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

func bindEnvVars(v *viper.Viper) {
	// Plain names used by Azure tooling and container platforms
	envMappings := map[string]string{
		"azuread.tenantid":     "AZURE_TENANT_ID",
		"azuread.clientid":     "AZURE_CLIENT_ID",
		"azuread.clientsecret": "AZURE_CLIENT_SECRET",
		"azuread.tenantname":   "AZURE_TENANT_NAME",
		"environment":          "APP_ENV",
		"log_level":            "LOG_LEVEL",
		"port":                 "PORT",
		"tracing.enabled":      "TRACING_ENABLED",
		"tracing.endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	}

	for key, env := range envMappings {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		// The prefixed name is listed first so it wins over the alias
		_ = v.BindEnv(key, prefixed, env)
	}
}

func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.Directory.RequestTimeout < 0 {
		return fmt.Errorf("directory.request_timeout must not be negative")
	}
	if cfg.Directory.DefaultListLimit < 0 || cfg.Directory.DefaultListLimit > directory.MaxListLimit {
		return fmt.Errorf("directory.default_list_limit must be between 0 and %d", directory.MaxListLimit)
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}

// ValidateTenant reports missing tenant settings as a CONFIGURATION_ERROR
func (c *Config) ValidateTenant() error {
	return c.AzureAD.Validate()
}

// ConnectOptions translates the directory section into wiring options
func (c *Config) ConnectOptions() directory.ConnectOptions {
	return directory.ConnectOptions{
		RequestTimeout:   time.Duration(c.Directory.RequestTimeout) * time.Second,
		DefaultListLimit: c.Directory.DefaultListLimit,
		BreakerThreshold: c.Directory.CircuitBreakerThreshold,
		BreakerReset:     time.Duration(c.Directory.CircuitBreakerReset) * time.Second,
	}
}

// TracingFor returns the tracer setup for the named service
func (c *Config) TracingFor(serviceName string) tracing.Config {
	return tracing.Config{
		Enabled:     c.Tracing.Enabled,
		Endpoint:    c.Tracing.Endpoint,
		ServiceName: serviceName,
		Environment: c.Environment,
		SampleRate:  c.Tracing.SampleRate,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
