// Package config resolves runtime settings from defaults, an optional YAML
// file, and VOLTSCHOOL_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voltschool/internal/remote"
)

// Environment variables.
//
//	VOLTSCHOOL_CONFIG:        path to a YAML config file
//	VOLTSCHOOL_REMOTE_DRIVER: postgres|sqlite|badger|s3|memory (default postgres)
//	VOLTSCHOOL_REMOTE_URL:    endpoint URL, DSN, file path or s3://bucket/prefix
//	VOLTSCHOOL_REMOTE_KEY:    public API key
//	VOLTSCHOOL_HTTP_ADDR:     listen address (default :8080)
//	VOLTSCHOOL_DISTRICT_CODE: read API access code (default 572394)
//	VOLTSCHOOL_WRITE_MODE:    through|behind (default through)
//	VOLTSCHOOL_LOG_LEVEL:     debug|info|warn|error (default info)
//	VOLTSCHOOL_LOG_FORMAT:    text|json (default text)
//	VOLTSCHOOL_TRACE_FILE:    append operation spans as JSON lines to this file
const (
	EnvConfig       = "VOLTSCHOOL_CONFIG"
	EnvRemoteDriver = "VOLTSCHOOL_REMOTE_DRIVER"
	EnvRemoteURL    = "VOLTSCHOOL_REMOTE_URL"
	EnvRemoteKey    = "VOLTSCHOOL_REMOTE_KEY"
	EnvHTTPAddr     = "VOLTSCHOOL_HTTP_ADDR"
	EnvDistrictCode = "VOLTSCHOOL_DISTRICT_CODE"
	EnvWriteMode    = "VOLTSCHOOL_WRITE_MODE"
	EnvLogLevel     = "VOLTSCHOOL_LOG_LEVEL"
	EnvLogFormat    = "VOLTSCHOOL_LOG_FORMAT"
	EnvTraceFile    = "VOLTSCHOOL_TRACE_FILE"
)

// DefaultDistrictCode is the district access code shipped with the service.
const DefaultDistrictCode = "572394"

// WriteMode selects how store mutations reach the remote.
type WriteMode string

// Write modes.
const (
	WriteThrough WriteMode = "through"
	WriteBehind  WriteMode = "behind"
)

// Remote holds connection settings for the remote collection store.
type Remote struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
}

// HTTP holds listener settings.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Log holds logger settings.
type Log struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	TraceFile string `yaml:"trace_file"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Remote       Remote    `yaml:"remote"`
	HTTP         HTTP      `yaml:"http"`
	DistrictCode string    `yaml:"district_code"`
	WriteMode    WriteMode `yaml:"write_mode"`
	Log          Log       `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote:       Remote{Driver: string(remote.DriverPostgres)},
		HTTP:         HTTP{Addr: ":8080"},
		DistrictCode: DefaultDistrictCode,
		WriteMode:    WriteThrough,
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load resolves configuration. An empty path falls back to VOLTSCHOOL_CONFIG;
// when neither is set no file is read. A nil getenv uses os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Remote.Driver, EnvRemoteDriver)
	set(&c.Remote.URL, EnvRemoteURL)
	set(&c.Remote.Key, EnvRemoteKey)
	set(&c.HTTP.Addr, EnvHTTPAddr)
	set(&c.DistrictCode, EnvDistrictCode)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.Format, EnvLogFormat)
	set(&c.Log.TraceFile, EnvTraceFile)
	if v := strings.TrimSpace(getenv(EnvWriteMode)); v != "" {
		c.WriteMode = WriteMode(strings.ToLower(v))
	}
}

// Validate rejects unknown enumerated values.
func (c Config) Validate() error {
	switch remote.Driver(strings.ToLower(c.Remote.Driver)) {
	case remote.DriverPostgres, remote.DriverSQLite, remote.DriverBadger, remote.DriverS3, remote.DriverMemory:
	default:
		return fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
	}
	switch c.WriteMode {
	case WriteThrough, WriteBehind:
	default:
		return fmt.Errorf("unknown write mode %q", c.WriteMode)
	}
	if c.DistrictCode == "" {
		return errors.New("district code must not be empty")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// RemoteConfig returns the remote connection parameters.
func (c Config) RemoteConfig() remote.Config {
	return remote.Config{
		Driver: remote.Driver(strings.ToLower(c.Remote.Driver)),
		URL:    c.Remote.URL,
		Key:    c.Remote.Key,
	}
}

// NewLogger builds a slog logger writing to w in the configured format.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
