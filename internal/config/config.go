// Package config loads depviz settings from defaults, a config file, .env
// and DEPVIZ_* environment variables, in increasing order of precedence.
// Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "DEPVIZ_"

// DefaultFiles are looked up in the working directory when no config path
// is given.
var DefaultFiles = []string{"depviz.toml", "depviz.yaml", "depviz.yml"}

// Config holds all settings. Treat it as read-only after Load.
type Config struct {
	LogLevel          string       `toml:"log_level" yaml:"log_level"`
	Filter            string       `toml:"filter" yaml:"filter"`
	MaxLabelsToShow   int          `toml:"max_labels_to_show" yaml:"max_labels_to_show"`
	LogFilesToCompile bool         `toml:"log_files_to_compile" yaml:"log_files_to_compile"`
	Server            ServerConfig `toml:"server" yaml:"server"`

	// Source is the config file that was read, empty if none.
	Source string `toml:"-" yaml:"-"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	CacheSize       int           `toml:"cache_size" yaml:"cache_size"`
	CacheTTL        time.Duration `toml:"cache_ttl" yaml:"cache_ttl"`
	WatchDebounce   time.Duration `toml:"watch_debounce" yaml:"watch_debounce"`
	AnalysisTimeout time.Duration `toml:"analysis_timeout" yaml:"analysis_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:        "info",
		Filter:          "all",
		MaxLabelsToShow: 10,
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			CacheSize:       64,
			CacheTTL:        time.Hour,
			WatchDebounce:   300 * time.Millisecond,
			AnalysisTimeout: 2 * time.Minute,
		},
	}
}

// Load reads settings. An explicit path must exist; without one the
// [DefaultFiles] are tried and skipped when absent. A .env file in the
// working directory is optional; variables already set in the process
// environment win over it.
func Load(path string) (Config, error) {
	return load(path, ".", os.LookupEnv)
}

func load(path, dir string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path == "" {
		for _, name := range DefaultFiles {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Source = path
	}

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read .env")
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unsupported config format %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	parsed := func(name string, parse func(string) error) error {
		v, ok := env(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		if err := parse(strings.TrimSpace(v)); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s%s=%q", EnvPrefix, name, v)
		}
		return nil
	}
	integer := func(dst *int) func(string) error {
		return func(s string) (err error) { *dst, err = strconv.Atoi(s); return err }
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(s string) (err error) { *dst, err = time.ParseDuration(s); return err }
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	str("FILTER", &cfg.Filter)
	str("ADDR", &cfg.Server.Addr)

	for _, p := range []struct {
		name  string
		parse func(string) error
	}{
		{"MAX_LABELS", integer(&cfg.MaxLabelsToShow)},
		{"LOG_FILES_TO_COMPILE", func(s string) (err error) { cfg.LogFilesToCompile, err = strconv.ParseBool(s); return err }},
		{"CACHE_SIZE", integer(&cfg.Server.CacheSize)},
		{"CACHE_TTL", duration(&cfg.Server.CacheTTL)},
		{"WATCH_DEBOUNCE", duration(&cfg.Server.WatchDebounce)},
		{"ANALYSIS_TIMEOUT", duration(&cfg.Server.AnalysisTimeout)},
	} {
		if err := parsed(p.name, p.parse); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log_level")
	}
	if _, err := closure.ParseFilter(c.Filter); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFilter, err, "filter")
	}
	if c.MaxLabelsToShow < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_labels_to_show must not be negative")
	}
	if c.Server.CacheSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.cache_size must not be negative")
	}
	if c.Server.CacheTTL < 0 || c.Server.WatchDebounce < 0 || c.Server.AnalysisTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server durations must not be negative")
	}
	return nil
}

// Level returns the parsed log level. It assumes Validate passed.
func (c Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// ClosureFilter returns the parsed filter. It assumes Validate passed.
func (c Config) ClosureFilter() closure.Filter {
	f, _ := closure.ParseFilter(c.Filter)
	return f
}
