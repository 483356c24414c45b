// Package config loads the settings shared by the worker and the ingress service.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config.json"

// ErrMissingConfig is returned when the configuration file does not exist.
var ErrMissingConfig = errors.New("configuration file not found")

// Config holds every setting. Keys are snake_case in all formats.
type Config struct {
	SavePath             string   `json:"save_path" toml:"save_path" yaml:"save_path"`
	OPCServerURL         string   `json:"opc_server_url" toml:"opc_server_url" yaml:"opc_server_url"`
	ScanInterval         float64  `json:"scan_interval" toml:"scan_interval" yaml:"scan_interval"`
	MaxWorkers           int      `json:"max_workers" toml:"max_workers" yaml:"max_workers"`
	ProgressFile         string   `json:"progress_file" toml:"progress_file" yaml:"progress_file"`
	JournalPath          string   `json:"journal_path" toml:"journal_path" yaml:"journal_path"`
	OPCRequestTimeout    float64  `json:"opc_request_timeout" toml:"opc_request_timeout" yaml:"opc_request_timeout"`
	GenericSheetPrefixes []string `json:"generic_sheet_prefixes" toml:"generic_sheet_prefixes" yaml:"generic_sheet_prefixes"`

	Listen    string `json:"listen" toml:"listen" yaml:"listen"`
	BodyLimit string `json:"body_limit" toml:"body_limit" yaml:"body_limit"`

	LogLevel  string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" toml:"log_format" yaml:"log_format"`
	LogFile   string `json:"log_file" toml:"log_file" yaml:"log_file"`
}

// Default returns a config with every optional key set.
func Default() Config {
	return Config{
		ScanInterval:         10,
		MaxWorkers:           5,
		ProgressFile:         "last_row_info.json",
		OPCRequestTimeout:    10,
		GenericSheetPrefixes: []string{"Sheet"},
		Listen:               "0.0.0.0:8080",
		BodyLimit:            "512M",
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// Load reads path, applies environment overrides, resolves relative paths
// against the file's directory and validates the shared keys.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := decode(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.normalize()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(abs))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json", "":
		// the original deployments write config.json with a UTF-8 BOM
		return json.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// applyEnvironmentOverrides lets deployments override file values.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("FILEBRIDGE_SAVE_PATH"); v != "" {
		c.SavePath = v
	}
	if v := os.Getenv("FILEBRIDGE_OPC_SERVER_URL"); v != "" {
		c.OPCServerURL = v
	}
	if v := os.Getenv("FILEBRIDGE_LISTEN"); v != "" {
		c.Listen = v
	}
}

func (c *Config) normalize() {
	c.SavePath = strings.TrimSpace(c.SavePath)
	c.OPCServerURL = strings.TrimSpace(c.OPCServerURL)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if strings.TrimSpace(c.ProgressFile) == "" {
		c.ProgressFile = "last_row_info.json"
	}
	if c.GenericSheetPrefixes == nil {
		c.GenericSheetPrefixes = []string{"Sheet"}
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *Config) resolvePaths(configDir string) {
	for _, p := range []*string{&c.SavePath, &c.ProgressFile, &c.JournalPath, &c.LogFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Validate checks the keys both services need.
func (c *Config) Validate() error {
	if c.SavePath == "" {
		return fmt.Errorf("save_path is required")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %v", c.ScanInterval)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.OPCRequestTimeout <= 0 {
		return fmt.Errorf("opc_request_timeout must be positive, got %v", c.OPCRequestTimeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if _, err := ParseByteSize(c.BodyLimit); err != nil {
		return fmt.Errorf("body_limit: %w", err)
	}
	return nil
}

// ValidateWorker checks the keys only the worker needs.
func (c *Config) ValidateWorker() error {
	if c.OPCServerURL == "" {
		return fmt.Errorf("opc_server_url is required")
	}
	if !strings.HasPrefix(c.OPCServerURL, "opc.tcp://") {
		return fmt.Errorf("opc_server_url must start with opc.tcp://, got %q", c.OPCServerURL)
	}
	return nil
}

// Interval returns scan_interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.ScanInterval * float64(time.Second))
}

// RequestTimeout returns opc_request_timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.OPCRequestTimeout * float64(time.Second))
}

// EnsureDirectories creates the storage root and the progress file's directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.SavePath, filepath.Dir(c.ProgressFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
