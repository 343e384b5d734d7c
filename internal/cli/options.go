package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/finsight-labs/finsight-go/internal/remote"
)

// Defaults.
const (
	DefaultAPIURL          = remote.DefaultBaseURL
	DefaultConfigFile      = "finsight.yaml"
	DefaultListen          = "127.0.0.1:8080"
	DefaultOperationsLimit = 20
	EnvPrefix              = "FINSIGHT_"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// PollOptions are the synchronizer intervals.
type PollOptions struct {
	Dashboard  time.Duration `koanf:"dashboard"`
	Operations time.Duration `koanf:"operations"`
	Risk       time.Duration `koanf:"risk"`
}

// StorageOptions select and locate the settings backend.
type StorageOptions struct {
	Backend    string `koanf:"backend"`
	Path       string `koanf:"path"` // directory for the file backend
	RedisAddr  string `koanf:"redis_addr"`
	SQLitePath string `koanf:"sqlite_path"`
}

// Options is the resolved agent configuration.
type Options struct {
	APIURL          string         `koanf:"api_url"`
	Timeout         time.Duration  `koanf:"timeout"`
	RateLimit       float64        `koanf:"rate_limit"`
	RateBurst       int            `koanf:"rate_burst"`
	Poll            PollOptions    `koanf:"poll"`
	Debounce        time.Duration  `koanf:"debounce"`
	PageSize        int            `koanf:"page_size"`
	OperationsLimit int            `koanf:"operations_limit"`
	HealthInterval  time.Duration  `koanf:"health_interval"`
	Listen          string         `koanf:"listen"`
	Advertise       bool           `koanf:"advertise"`
	LogLevel        string         `koanf:"log_level"`
	Output          string         `koanf:"output"`
	Storage         StorageOptions `koanf:"storage"`

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string `koanf:"-"`
}

func defaultValues() map[string]any {
	return map[string]any{
		"api_url":             DefaultAPIURL,
		"timeout":             "10s",
		"rate_limit":          10.0,
		"rate_burst":          5,
		"poll.dashboard":      "30s",
		"poll.operations":     "5s",
		"poll.risk":           "60s",
		"debounce":            "500ms",
		"page_size":           20,
		"operations_limit":    DefaultOperationsLimit,
		"health_interval":     "30s",
		"listen":              DefaultListen,
		"advertise":           false,
		"log_level":           "info",
		"output":              OutputTable,
		"storage.backend":     BackendFile,
		"storage.path":        "",
		"storage.redis_addr":  "localhost:6379",
		"storage.sqlite_path": "",
	}
}

// envKey maps FINSIGHT_POLL__DASHBOARD to poll.dashboard.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagKeys maps flags whose names differ from their config key.
var flagKeys = map[string]string{
	"api-url": "api_url",
	"storage": "storage.backend",
}

// DefaultOptions returns the options with nothing but defaults applied.
func DefaultOptions() *Options {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaultValues(), "."), nil)
	var opts Options
	_ = k.Unmarshal("", &opts)
	_ = opts.finish()
	return &opts
}

// LoadOptions resolves configuration.
// Precedence (highest to lowest): flags > env vars (.env included) > config file > defaults
func LoadOptions(cfgFile, dotenvFile string, flags *pflag.FlagSet) (*Options, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file; an explicit path must exist
	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. .env then environment. godotenv never overrides variables that are
	// already set.
	if dotenvFile != "" {
		if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading %s: %w", dotenvFile, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var opts Options
	if err := k.Unmarshal("", &opts); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	opts.ConfigFile = used
	if err := opts.finish(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// finish validates the options and fills in derived paths.
func (o *Options) finish() error {
	switch o.Output {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q (want %s or %s)", o.Output, OutputTable, OutputJSON)
	}
	if _, err := ParseLevel(o.LogLevel); err != nil {
		return err
	}
	if o.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", o.PageSize)
	}
	if o.OperationsLimit <= 0 {
		return fmt.Errorf("operations_limit must be positive, got %d", o.OperationsLimit)
	}

	switch o.Storage.Backend {
	case BackendFile, BackendSQLite:
		if o.Storage.Path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("cannot determine config directory: %w", err)
			}
			o.Storage.Path = filepath.Join(dir, "finsight")
		}
		if o.Storage.SQLitePath == "" {
			o.Storage.SQLitePath = filepath.Join(o.Storage.Path, "finsight.db")
		}
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid storage backend %q", o.Storage.Backend)
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}
