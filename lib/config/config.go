// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/buildcache/lib/fingerprint"
)

// EnvironmentVariable names the variable holding the config path.
const EnvironmentVariable = "BUILDCACHE_CONFIG"

// Mode selects the role of this machine.
type Mode string

const (
	// Consumer builds reuse published artifacts.
	Consumer Mode = "consumer"
	// Producer builds publish artifacts.
	Producer Mode = "producer"
)

// Config is the buildcache configuration.
type Config struct {
	// Mode is consumer or producer.
	Mode Mode `yaml:"mode"`

	// CacheAddresses lists remote caches (http, https, s3 or file
	// URLs). The first one is used; the rest are kept for tooling
	// that inspects the configuration.
	CacheAddresses []string `yaml:"cache_addresses"`

	// MarkerName is the marker file name inside TARGET_TEMP_DIR.
	// Default: rc.enabled
	MarkerName string `yaml:"marker_name"`

	// StateDir holds build-wide state: the commit file and counters.
	// Default: ${TMPDIR:-/tmp}/buildcache
	StateDir string `yaml:"state_dir"`

	// Retries is the number of additional attempts for transient
	// network failures. Default: 2
	Retries int `yaml:"retries"`

	// RetryDelay is the pause between attempts. Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// RequestTimeout bounds each network request. Default: 20s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// DisableOnFirstTimeout turns the cache off for the whole build
	// after the first network timeout. Default: true
	DisableOnFirstTimeout bool `yaml:"disable_on_first_timeout"`

	// FrontendWaitTimeout bounds how long per-file Swift compiles wait
	// for the module-emission decision. Default: 30s
	FrontendWaitTimeout time.Duration `yaml:"frontend_wait_timeout"`

	// FingerprintEnv lists the build settings folded into the
	// environment fingerprint, in order.
	FingerprintEnv []string `yaml:"fingerprint_env"`

	// PathMappings adds placeholder tokens beyond the built-in
	// $(SRCROOT), $(SDKROOT), $(DEVELOPER_DIR) and $(BUILD_DIR).
	PathMappings []PathMapping `yaml:"path_mappings"`

	// ThinTargets are aggregation targets whose sub-targets are
	// fetched together.
	ThinTargets map[string][]string `yaml:"thin_targets"`

	// Tools maps wrapper tool names (swiftc, clang, libtool, ...) to the
	// real tool executables.
	Tools map[string]string `yaml:"tools"`

	// Concurrency bounds parallel network work. Default: 4
	Concurrency int `yaml:"concurrency"`

	// ArchiveCompression is the method producers compress artifact
	// archives with: zstd, lz4 or store. Default: zstd
	ArchiveCompression string `yaml:"archive_compression"`

	// LogLevel is debug, info, warn or error. Default: warn
	LogLevel string `yaml:"log_level"`

	// ObjectStore configures s3:// cache addresses.
	ObjectStore ObjectStoreConfig `yaml:"object_store"`

	// Mode-specific overrides, applied after the base config is
	// loaded.
	Consumer *Overrides `yaml:"consumer,omitempty"`
	Producer *Overrides `yaml:"producer,omitempty"`

	// directory is where the config file lives.
	directory string
}

// PathMapping is a user-defined placeholder token.
type PathMapping struct {
	Token string `yaml:"token"`
	Value string `yaml:"value"`
}

// ObjectStoreConfig configures an S3-compatible cache.
type ObjectStoreConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Insecure bool   `yaml:"insecure"`

	// AccessKeyEnv and SecretKeyEnv name environment variables holding
	// the credentials. When unset, the standard AWS variables are used.
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// Overrides contains fields that can be overridden per mode.
type Overrides struct {
	CacheAddresses        []string       `yaml:"cache_addresses,omitempty"`
	Retries               *int           `yaml:"retries,omitempty"`
	RetryDelay            *time.Duration `yaml:"retry_delay,omitempty"`
	RequestTimeout        *time.Duration `yaml:"request_timeout,omitempty"`
	DisableOnFirstTimeout *bool          `yaml:"disable_on_first_timeout,omitempty"`
	FrontendWaitTimeout   *time.Duration `yaml:"frontend_wait_timeout,omitempty"`
	Concurrency           *int           `yaml:"concurrency,omitempty"`
	LogLevel              string         `yaml:"log_level,omitempty"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file.
func Default() *Config {
	return &Config{
		Mode:                  Consumer,
		MarkerName:            "rc.enabled",
		StateDir:              "${TMPDIR:-/tmp}/buildcache",
		Retries:               2,
		RetryDelay:            time.Second,
		RequestTimeout:        20 * time.Second,
		DisableOnFirstTimeout: true,
		FrontendWaitTimeout:   30 * time.Second,
		FingerprintEnv:        slices.Clone(fingerprint.DefaultEnvironmentVariables),
		Concurrency:           4,
		ArchiveCompression:    "zstd",
		LogLevel:              "warn",
	}
}

// Load loads configuration from the BUILDCACHE_CONFIG environment
// variable.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your buildcache.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// Resolve loads from flagPath when it is set and from the environment
// otherwise.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	return Load()
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.directory = filepath.Dir(absolute)

	cfg.applyModeOverrides()
	cfg.expandVariables()
	cfg.resolvePaths()

	return cfg, nil
}

// applyModeOverrides applies the section matching Mode.
func (c *Config) applyModeOverrides() {
	var overrides *Overrides
	switch c.Mode {
	case Consumer:
		overrides = c.Consumer
	case Producer:
		overrides = c.Producer
	}
	if overrides == nil {
		return
	}

	if len(overrides.CacheAddresses) > 0 {
		c.CacheAddresses = overrides.CacheAddresses
	}
	if overrides.Retries != nil {
		c.Retries = *overrides.Retries
	}
	if overrides.RetryDelay != nil {
		c.RetryDelay = *overrides.RetryDelay
	}
	if overrides.RequestTimeout != nil {
		c.RequestTimeout = *overrides.RequestTimeout
	}
	if overrides.DisableOnFirstTimeout != nil {
		c.DisableOnFirstTimeout = *overrides.DisableOnFirstTimeout
	}
	if overrides.FrontendWaitTimeout != nil {
		c.FrontendWaitTimeout = *overrides.FrontendWaitTimeout
	}
	if overrides.Concurrency != nil {
		c.Concurrency = *overrides.Concurrency
	}
	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path-like fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.StateDir = expandVars(c.StateDir, vars)
	for i, address := range c.CacheAddresses {
		c.CacheAddresses[i] = expandVars(address, vars)
	}
	for i := range c.PathMappings {
		c.PathMappings[i].Value = expandVars(c.PathMappings[i].Value, vars)
	}
	for name, path := range c.Tools {
		c.Tools[name] = expandVars(path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// resolvePaths makes relative paths absolute against the config
// directory.
func (c *Config) resolvePaths() {
	c.StateDir = c.resolve(c.StateDir)
	for name, path := range c.Tools {
		if strings.ContainsRune(path, filepath.Separator) {
			c.Tools[name] = c.resolve(path)
		}
	}
	for i, address := range c.CacheAddresses {
		if relative, ok := strings.CutPrefix(address, "file://"); ok && relative != "" && !filepath.IsAbs(relative) {
			c.CacheAddresses[i] = "file://" + c.resolve(relative)
		}
	}
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.directory == "" {
		return path
	}
	return filepath.Join(c.directory, path)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Mode != Consumer && c.Mode != Producer {
		errs = append(errs, fmt.Errorf("invalid mode: %q (want consumer or producer)", c.Mode))
	}

	if len(c.CacheAddresses) == 0 {
		errs = append(errs, errors.New("cache_addresses must list at least one address"))
	}
	for _, address := range c.CacheAddresses {
		parsed, err := url.Parse(address)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache address %q: %w", address, err))
			continue
		}
		switch parsed.Scheme {
		case "http", "https", "file":
		case "s3":
			if c.ObjectStore.Endpoint == "" {
				errs = append(errs, fmt.Errorf("cache address %q requires object_store.endpoint", address))
			}
		default:
			errs = append(errs, fmt.Errorf("cache address %q: unsupported scheme %q", address, parsed.Scheme))
		}
	}

	if c.MarkerName == "" || strings.ContainsRune(c.MarkerName, '/') {
		errs = append(errs, fmt.Errorf("marker_name must be a plain file name, got %q", c.MarkerName))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.FrontendWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("frontend_wait_timeout must be positive, got %s", c.FrontendWaitTimeout))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	switch c.ArchiveCompression {
	case "zstd", "lz4", "store":
	default:
		errs = append(errs, fmt.Errorf("archive_compression must be zstd, lz4 or store, got %q", c.ArchiveCompression))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for i, mapping := range c.PathMappings {
		if mapping.Token == "" {
			errs = append(errs, fmt.Errorf("path_mappings[%d]: token is required", i))
		}
	}
	for name, subTargets := range c.ThinTargets {
		if len(subTargets) == 0 {
			errs = append(errs, fmt.Errorf("thin_targets.%s lists no targets", name))
		}
	}

	return errors.Join(errs...)
}

// Address returns the cache address in use.
func (c *Config) Address() string {
	if len(c.CacheAddresses) == 0 {
		return ""
	}
	return c.CacheAddresses[0]
}

// CommitFilePath is the build-wide commit file.
func (c *Config) CommitFilePath() string {
	return filepath.Join(c.StateDir, "commit.rc")
}

// CountersPath is the build statistics file.
func (c *Config) CountersPath() string {
	return filepath.Join(c.StateDir, "stats.bin")
}

// ToolPath returns the configured real tool for name, or "" when none
// is configured.
func (c *Config) ToolPath(name string) string {
	return c.Tools[name]
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// ObjectStoreCredentials reads the configured credential variables.
func (c *Config) ObjectStoreCredentials() (accessKey, secretKey string) {
	if c.ObjectStore.AccessKeyEnv != "" {
		accessKey = os.Getenv(c.ObjectStore.AccessKeyEnv)
	}
	if c.ObjectStore.SecretKeyEnv != "" {
		secretKey = os.Getenv(c.ObjectStore.SecretKeyEnv)
	}
	return accessKey, secretKey
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", name)
	}
}
