package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/refine/internal/domain/searchstate"
)

// Config holds the refine API configuration.
type Config struct {
	HTTP     HTTPConfig               `yaml:"http"`
	Database DatabaseConfig           `yaml:"database"`
	Auth     AuthConfig               `yaml:"auth"`
	Storage  StorageConfig            `yaml:"storage"`
	Logging  LoggingConfig            `yaml:"logging"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
	// ReadOnlyKeys may only read sessions and query params.
	ReadOnlyKeys []string `yaml:"read_only_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds session storage settings.
type StorageConfig struct {
	KeyPrefix     string `yaml:"key_prefix"`
	SessionTTLSec int    `yaml:"session_ttl_sec"` // refreshed on every write
}

// ProfileConfig declares the facets and default options a new session starts from.
type ProfileConfig struct {
	Facets             []string                        `yaml:"facets"`
	DisjunctiveFacets  []string                        `yaml:"disjunctive_facets"`
	HierarchicalFacets []searchstate.HierarchicalFacet `yaml:"hierarchical_facets"`
	// Options are scalar search options keyed by their wire names (hitsPerPage, distinct, ...).
	Options map[string]any `yaml:"options"`
}

// DefaultProfile is used when a session is created without naming a profile.
const DefaultProfile = "default"

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, expanding ${VAR} references, then applies
// defaults and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "refine:"
	}
	if c.Storage.SessionTTLSec <= 0 {
		c.Storage.SessionTTLSec = 24 * 60 * 60
	}
	if c.Profiles == nil {
		c.Profiles = map[string]ProfileConfig{}
	}
	if _, ok := c.Profiles[DefaultProfile]; !ok {
		c.Profiles[DefaultProfile] = ProfileConfig{}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	for _, name := range c.ProfileNames() {
		if _, err := searchstate.Make(c.Profiles[name].Patch()); err != nil {
			return fmt.Errorf("profiles.%s: %w", name, err)
		}
	}
	return nil
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Patches returns every profile as a search state patch, keyed by profile name.
func (c *Config) Patches() map[string]searchstate.Patch {
	out := make(map[string]searchstate.Patch, len(c.Profiles))
	for name, p := range c.Profiles {
		out[name] = p.Patch()
	}
	return out
}

// Patch converts the profile into the properties of a fresh search state.
func (p ProfileConfig) Patch() searchstate.Patch {
	patch := make(searchstate.Patch, len(p.Options)+3)
	for k, v := range p.Options {
		patch[k] = v
	}
	if len(p.Facets) > 0 {
		patch[searchstate.ParamFacets] = p.Facets
	}
	if len(p.DisjunctiveFacets) > 0 {
		patch[searchstate.ParamDisjunctiveFacets] = p.DisjunctiveFacets
	}
	if len(p.HierarchicalFacets) > 0 {
		patch[searchstate.ParamHierarchicalFacets] = p.HierarchicalFacets
	}
	return patch
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
