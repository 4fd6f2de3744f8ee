// Package config loads the harvester configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrNoAPIKey      = errors.New("api.key must be set (or AMAP_API_KEY)")
	ErrNoRegions     = errors.New("harvest.regions must not be empty")
	ErrNoCategories  = errors.New("harvest.categories must not be empty")
	ErrNoOutputs     = errors.New("output.formats must not be empty")
	ErrUnknownFormat = errors.New("unknown output format")
)

// Output formats.
const (
	FormatXLSX   = "xlsx"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config is the full harvester configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Harvest HarvestConfig `yaml:"harvest"`
	Output  OutputConfig  `yaml:"output"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig describes the upstream search endpoint.
type APIConfig struct {
	Key      string   `yaml:"key"`
	BaseURL  string   `yaml:"base_url"`
	Keywords string   `yaml:"keywords"`
	PageSize int      `yaml:"page_size"`
	MaxPages int      `yaml:"max_pages"`
	Timeout  Duration `yaml:"timeout"`
}

// HarvestConfig describes the query space and the concurrency budget.
type HarvestConfig struct {
	Regions    []string `yaml:"regions"`
	Categories []string `yaml:"categories"`

	// Concurrency is the global in-flight request limit.
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	Workers          int `yaml:"workers"`
	MaxActiveQueries int `yaml:"max_active_queries"`

	RetryBudget     int      `yaml:"retry_budget"`
	RetryDelay      Duration `yaml:"retry_delay"`
	CongestionDelay Duration `yaml:"congestion_delay"`
	CongestionCodes []string `yaml:"congestion_codes"`
}

// OutputConfig selects where and how results are written.
type OutputConfig struct {
	Dir        string   `yaml:"dir"`
	Formats    []string `yaml:"formats"`
	SQLitePath string   `yaml:"sqlite_path"`

	// sqliteDerived is set when SQLitePath came from Dir rather than input.
	sqliteDerived bool
}

// SetDir changes the output directory. A SQLite path derived from the old
// directory follows the new one; an explicit path is kept.
func (o *OutputConfig) SetDir(dir string) {
	o.Dir = dir
	if o.sqliteDerived {
		o.SQLitePath = ""
		o.sqliteDerived = false
	}
}

// CacheConfig enables the Redis page cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string   `yaml:"redis_addr"`
	RedisDB   int      `yaml:"redis_db"`
	TTL       Duration `yaml:"ttl"`
}

// LoggingConfig selects log verbosity, format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	File   string `yaml:"file"`
}

// MetricsConfig enables the /metrics endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config populated with defaults. Regions, categories and
// the API key have no defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:  "https://restapi.amap.com/v5/place/text",
			PageSize: 25,
			MaxPages: 100,
			Timeout:  DurationFrom(10 * time.Second),
		},
		Harvest: HarvestConfig{
			Concurrency:      25,
			Workers:          4,
			MaxActiveQueries: 4,
			RetryBudget:      3,
			RetryDelay:       DurationFrom(3 * time.Second),
			CongestionDelay:  DurationFrom(2 * time.Second),
			CongestionCodes:  []string{"10021"},
		},
		Output: OutputConfig{
			Dir:     "data",
			Formats: []string{FormatXLSX},
		},
		Cache: CacheConfig{
			TTL: DurationFrom(24 * time.Hour),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that layer further
// overrides (such as command-line flags) before calling Validate.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer fh.Close()
		if err := decodeYAML(fh, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalise()
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader. The
// environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("AMAP_API_KEY"); ok && v != "" {
		c.API.Key = v
	}
	if v, ok := lookup("MAPPOI_BASE_URL"); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup("MAPPOI_REGIONS"); ok && v != "" {
		c.Harvest.Regions = splitList(v)
	}
	if v, ok := lookup("MAPPOI_CATEGORIES"); ok && v != "" {
		c.Harvest.Categories = splitList(v)
	}
	if v, ok := lookup("MAPPOI_OUTPUT_DIR"); ok && v != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup("MAPPOI_REDIS_ADDR"); ok && v != "" {
		c.Cache.RedisAddr = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MAPPOI_CONCURRENCY", &c.Harvest.Concurrency},
		{"MAPPOI_WORKERS", &c.Harvest.Workers},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", e.name, v)
		}
		*e.dst = n
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalise trims list entries, drops empty ones, lower-cases formats and
// derives the SQLite path from the output directory when unset.
func (c *Config) Normalise() {
	c.API.Key = strings.TrimSpace(c.API.Key)
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	c.Harvest.Regions = trimAll(c.Harvest.Regions)
	c.Harvest.Categories = trimAll(c.Harvest.Categories)
	c.Harvest.CongestionCodes = trimAll(c.Harvest.CongestionCodes)

	formats := trimAll(c.Output.Formats)
	for i := range formats {
		formats[i] = strings.ToLower(formats[i])
	}
	c.Output.Formats = formats

	if c.Output.SQLitePath == "" && c.Output.Dir != "" {
		c.Output.SQLitePath = filepath.Join(c.Output.Dir, "poi.db")
		c.Output.sqliteDerived = true
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate enforces the invariants of a runnable configuration.
func (c Config) Validate() error {
	if c.API.Key == "" {
		return ErrNoAPIKey
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	if c.API.PageSize <= 0 || c.API.PageSize > 25 {
		return fmt.Errorf("api.page_size must be in [1, 25] (got %d)", c.API.PageSize)
	}
	if c.API.MaxPages <= 0 {
		return fmt.Errorf("api.max_pages must be > 0 (got %d)", c.API.MaxPages)
	}
	if c.API.Timeout.Duration <= 0 {
		return fmt.Errorf("api.timeout must be > 0 (got %s)", c.API.Timeout)
	}
	if len(c.Harvest.Regions) == 0 {
		return ErrNoRegions
	}
	if len(c.Harvest.Categories) == 0 {
		return ErrNoCategories
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0 (got %d)", c.Harvest.Concurrency)
	}
	if c.Harvest.RequestsPerSecond < 0 {
		return fmt.Errorf("harvest.requests_per_second must be >= 0 (got %v)", c.Harvest.RequestsPerSecond)
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0 (got %d)", c.Harvest.Workers)
	}
	if c.Harvest.MaxActiveQueries <= 0 {
		return fmt.Errorf("harvest.max_active_queries must be > 0 (got %d)", c.Harvest.MaxActiveQueries)
	}
	if c.Harvest.RetryBudget < 0 {
		return fmt.Errorf("harvest.retry_budget must be >= 0 (got %d)", c.Harvest.RetryBudget)
	}
	if c.Harvest.RetryDelay.Duration < 0 || c.Harvest.CongestionDelay.Duration < 0 {
		return errors.New("harvest delays must be >= 0")
	}
	if len(c.Output.Formats) == 0 {
		return ErrNoOutputs
	}
	for _, f := range c.Output.Formats {
		switch f {
		case FormatXLSX, FormatCSV, FormatSQLite:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 (got %s)", c.Cache.TTL)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// Has reports whether format is among the configured outputs.
func (o OutputConfig) Has(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}
