// Package config merges flags, environment, .env and YAML config into one Config.
//
// Precedence, highest first: explicit flags, TESTDATAGEN_* environment
// variables (including ones loaded from a .env file), the YAML config file,
// flag defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/dispatch"
	"pkg.jsn.cam/testdatagen/internal/logger"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "TESTDATAGEN"

// Config is the resolved configuration of one invocation.
type Config struct {
	Paths            []string `mapstructure:"paths"`
	Count            int      `mapstructure:"count"`
	ThreadsPerPath   int      `mapstructure:"threads-per-path"`
	FilesPerThread   int      `mapstructure:"files-per-thread"`
	Blob             bool     `mapstructure:"blob"`
	CompressionLevel string   `mapstructure:"compression-level"`
	Codec            string   `mapstructure:"codec"`
	Extension        string   `mapstructure:"extension"`
	RemovePartial    bool     `mapstructure:"remove-partial"`

	Progress    bool   `mapstructure:"progress"`
	MetricsFile string `mapstructure:"metrics-file"`
	HistoryDB   string `mapstructure:"history-db"`

	Logging LoggingConfig `mapstructure:",squash"`
}

// LoggingConfig holds the log-* settings.
type LoggingConfig struct {
	File       string `mapstructure:"log-file"`
	Level      string `mapstructure:"log-level"`
	Format     string `mapstructure:"log-format"`
	MaxSizeMB  int    `mapstructure:"log-max-size-mb"`
	MaxBackups int    `mapstructure:"log-max-backups"`
}

// Logger converts the settings for logger.Init.
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		File:       l.File,
		Format:     l.Format,
		Level:      l.Level,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}

// BindFlags defines every generation flag on fs and returns a viper
// instance bound to them and to the environment.
func BindFlags(fs *pflag.FlagSet) (*viper.Viper, error) {
	fs.StringSliceP("paths", "p", nil, "Target directories (or gs://bucket/prefix) to fill; may be repeated")
	fs.IntP("count", "c", 100, "Records per output file")
	fs.IntP("threads-per-path", "t", 1, "Concurrent workers per target")
	fs.IntP("files-per-thread", "f", 1, "Output files produced by each worker")
	fs.Bool("blob", false, "Write newline-delimited JSON instead of archives")
	fs.String("compression-level", "best", "Archive compression level: none, fast or best")
	fs.String("codec", "gzip", "Archive stream codec: gzip, lz4 or none")
	fs.String("extension", "", "Suffix appended to generated file names")
	fs.Bool("remove-partial", false, "Delete an output file when writing it fails")
	fs.Bool("progress", false, "Show a progress bar on stderr")
	fs.String("metrics-file", "", "Write Prometheus metrics in text format to this file after the run")
	fs.String("history-db", "", "Record the run in this bbolt ledger")
	fs.String("log-file", "", "Log to this file (rotated) instead of stderr")
	fs.String("log-level", logger.INFO, "Log severity: TRACE, DEBUG, INFO, WARNING, ERROR or OFF")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Int("log-max-size-mb", 100, "Rotate the log file after this many megabytes")
	fs.Int("log-max-backups", 3, "Rotated log files to keep")

	fs.SetNormalizeFunc(NormalizeFlagName)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	return v, nil
}

// NormalizeFlagName maps --records-per-file onto --count. Commands that
// merge flag sets must install it on every set, e.g. with cobra's
// SetGlobalNormalizationFunc.
func NormalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "records-per-file" {
		name = "count"
	}
	return pflag.NormalizedName(name)
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. With an empty path it tries
// ./.env and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ReadConfigFile merges a YAML config file into v.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Registered after reading so a records-per-file key moves onto count.
	v.RegisterAlias("records-per-file", "count")
	return nil
}

// Load resolves v into a validated Config. Positional args are appended to
// the configured paths.
func Load(v *viper.Viper, args []string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.Paths = append(cfg.Paths, args...)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadLogging resolves only the log-* settings, for commands that take no
// targets.
func LoadLogging(v *viper.Viper) (LoggingConfig, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return LoggingConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Logging.validate(); err != nil {
		return LoggingConfig{}, err
	}

	return cfg.Logging, nil
}

func (l LoggingConfig) validate() error {
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, l.Format)
	}
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case len(c.Paths) == 0:
		return fmt.Errorf("%w: at least one path is required", ErrInvalidConfig)
	case c.Count < 0:
		return fmt.Errorf("%w: count must not be negative, got %d", ErrInvalidConfig, c.Count)
	case c.ThreadsPerPath < 1:
		return fmt.Errorf("%w: threads-per-path must be at least 1, got %d", ErrInvalidConfig, c.ThreadsPerPath)
	case c.FilesPerThread < 0:
		return fmt.Errorf("%w: files-per-thread must not be negative, got %d", ErrInvalidConfig, c.FilesPerThread)
	}

	for _, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty path", ErrInvalidConfig)
		}
	}

	if _, err := compress.ParseCodec(c.Codec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return c.Logging.validate()
}

// WriterOptions converts the output settings.
func (c Config) WriterOptions() writer.Options {
	codec, _ := compress.ParseCodec(c.Codec)

	mode := writer.ModeArchive
	if c.Blob {
		mode = writer.ModeBlob
	}

	return writer.Options{
		Mode:          mode,
		Codec:         codec,
		Level:         compress.ParseLevel(c.CompressionLevel),
		Extension:     c.Extension,
		RemovePartial: c.RemovePartial,
	}
}

// Plan converts the configuration into dispatcher work.
func (c Config) Plan() dispatch.Plan {
	return dispatch.Plan{
		Targets:          c.Paths,
		ThreadsPerTarget: c.ThreadsPerPath,
		FilesPerThread:   c.FilesPerThread,
		RecordsPerFile:   c.Count,
		Writer:           c.WriterOptions(),
	}
}
