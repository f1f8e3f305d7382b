// Package config loads and validates the tsql2snow configuration.
//
// Configuration lives in tsql2snow.toml, or tsql2snow.yaml for teams that keep
// their tooling config in YAML. Both decode into the same Config schema; the
// format is chosen by file extension. Load resolves the raw document into a
// Plan with defaults applied, paths made absolute and durations parsed.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/electwix/tsql2snow/internal/fileset"
	"github.com/electwix/tsql2snow/internal/logging"
	"github.com/electwix/tsql2snow/internal/rewrite"
)

// DefaultFileNames lists the config files looked up when none is named, in
// priority order.
var DefaultFileNames = []string{"tsql2snow.toml", "tsql2snow.yaml", "tsql2snow.yml"}

// Analytics database drivers.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// Config mirrors the tsql2snow configuration schema.
type Config struct {
	Inputs    []string        `toml:"inputs" yaml:"inputs"`
	Out       string          `toml:"out" yaml:"out"`
	Suffix    string          `toml:"suffix" yaml:"suffix"`
	LogFormat string          `toml:"log_format" yaml:"log_format"`
	Convert   ConvertConfig   `toml:"convert" yaml:"convert"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Analytics AnalyticsConfig `toml:"analytics" yaml:"analytics"`
	Watch     WatchConfig     `toml:"watch" yaml:"watch"`
}

// ConvertConfig captures rewrite options. Unset booleans keep their defaults.
type ConvertConfig struct {
	Tidy              *bool             `toml:"tidy" yaml:"tidy"`
	TerminateTrailing *bool             `toml:"terminate_trailing" yaml:"terminate_trailing"`
	Renames           map[string]string `toml:"renames" yaml:"renames"`
}

// ServerConfig captures HTTP service settings.
type ServerConfig struct {
	Address      string `toml:"address" yaml:"address"`
	MaxBodyBytes int64  `toml:"max_body_bytes" yaml:"max_body_bytes"`
	StaticDir    string `toml:"static_dir" yaml:"static_dir"`
	ReadTimeout  string `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout" yaml:"write_timeout"`
	CacheTTL     string `toml:"cache_ttl" yaml:"cache_ttl"`
	CacheEntries *int   `toml:"cache_entries" yaml:"cache_entries"`
}

// AnalyticsConfig captures the analytics demo database settings.
type AnalyticsConfig struct {
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
	Agents int    `toml:"agents" yaml:"agents"`
	Days   int    `toml:"days" yaml:"days"`
	Seed   *int64 `toml:"seed" yaml:"seed"`
}

// WatchConfig captures watch mode settings.
type WatchConfig struct {
	Debounce string `toml:"debounce" yaml:"debounce"`
}

// Plan is the fully-resolved configuration used by the binaries.
type Plan struct {
	// Path is the loaded config file; empty when defaults are in use.
	Path    string
	BaseDir string
	// Inputs holds resolved input files. Empty means read stdin.
	Inputs    []string
	Patterns  []string
	Out       string
	Suffix    string
	LogFormat logging.Format
	Convert   rewrite.Options
	Server    ServerPlan
	Analytics AnalyticsPlan
	Watch     WatchPlan
}

// ServerPlan is the normalized HTTP service configuration.
type ServerPlan struct {
	Address      string
	MaxBodyBytes int64
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
	CacheEntries int
}

// AnalyticsPlan is the normalized analytics configuration.
type AnalyticsPlan struct {
	Driver string
	DSN    string
	Agents int
	Days   int
	Seed   int64
}

// WatchPlan is the normalized watch configuration.
type WatchPlan struct {
	Debounce time.Duration
}

// Default returns the plan used when no config file exists, rooted at baseDir.
func Default(baseDir string) Plan {
	return Plan{
		BaseDir:   baseDir,
		Suffix:    ".snowflake.sql",
		LogFormat: logging.FormatText,
		Convert:   rewrite.DefaultOptions(),
		Server: ServerPlan{
			Address:      ":8080",
			MaxBodyBytes: 1 << 20,
			StaticDir:    filepath.Join(baseDir, "web"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			CacheTTL:     10 * time.Minute,
			CacheEntries: 1024,
		},
		Analytics: AnalyticsPlan{
			Driver: DriverSQLite,
			Agents: 28,
			Days:   180,
			Seed:   17,
		},
		Watch: WatchPlan{Debounce: 100 * time.Millisecond},
	}
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	Strict   bool
	Resolver *fileset.Resolver
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Discover returns the first default config file present in dir.
func Discover(dir string) (string, bool) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load reads, validates, and resolves a tsql2snow configuration file.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, raw, err := decode(path, data, opts.Strict)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	if unknown := unknownKeys(raw, schema, ""); len(unknown) > 0 {
		slices.Sort(unknown)
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	baseDir := filepath.Dir(absPath)

	plan, err := resolve(path, baseDir, cfg)
	if err != nil {
		return res, err
	}
	plan.Path = absPath

	if len(cfg.Inputs) > 0 {
		var resolver fileset.Resolver
		if opts.Resolver != nil {
			resolver = *opts.Resolver
		} else {
			resolver, err = fileset.NewOSResolver(baseDir)
			if err != nil {
				return res, fmt.Errorf("%s: %w", path, err)
			}
		}
		inputs, err := ResolveInputs(resolver.WithExclude(plan.Suffix), cfg.Inputs)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		plan.Inputs = inputs
		plan.Patterns = slices.Clone(cfg.Inputs)
	}

	res.Plan = plan
	return res, nil
}

func decode(path string, data []byte, strict bool) (Config, map[string]any, error) {
	var (
		cfg Config
		raw map[string]any
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, nil, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, nil, err
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, err
		}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return cfg, nil, err
		}
	}
	return cfg, raw, nil
}

// schema lists known keys. A nil value is a leaf, a nested map is a table
// and freeForm marks a table whose keys are user-defined.
var freeForm = map[string]any{}

var schema = map[string]any{
	"inputs":     nil,
	"out":        nil,
	"suffix":     nil,
	"log_format": nil,
	"convert": map[string]any{
		"tidy":               nil,
		"terminate_trailing": nil,
		"renames":            freeForm,
	},
	"server": map[string]any{
		"address":        nil,
		"max_body_bytes": nil,
		"static_dir":     nil,
		"read_timeout":   nil,
		"write_timeout":  nil,
		"cache_ttl":      nil,
		"cache_entries":  nil,
	},
	"analytics": map[string]any{
		"driver": nil,
		"dsn":    nil,
		"agents": nil,
		"days":   nil,
		"seed":   nil,
	},
	"watch": map[string]any{
		"debounce": nil,
	},
}

func unknownKeys(raw map[string]any, known map[string]any, prefix string) []string {
	unknown := make([]string, 0)
	for key, value := range raw {
		spec, ok := known[key]
		if !ok {
			unknown = append(unknown, prefix+key)
			continue
		}
		table, isTable := spec.(map[string]any)
		if !isTable || len(table) == 0 {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			unknown = append(unknown, unknownKeys(nested, table, prefix+key+".")...)
		}
	}
	return unknown
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func resolve(path, baseDir string, cfg Config) (Plan, error) {
	plan := Default(baseDir)

	if cfg.Out != "" {
		out, err := resolveOut(path, baseDir, cfg.Out)
		if err != nil {
			return plan, err
		}
		plan.Out = out
	}

	if cfg.Suffix != "" {
		if strings.ContainsAny(cfg.Suffix, `/\`) {
			return plan, fmt.Errorf("%s: suffix must not contain path separators", path)
		}
		plan.Suffix = cfg.Suffix
	}

	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return plan, fmt.Errorf("%s: %w", path, err)
	}
	plan.LogFormat = format

	if cfg.Convert.Tidy != nil {
		plan.Convert.Tidy = *cfg.Convert.Tidy
	}
	if cfg.Convert.TerminateTrailing != nil {
		plan.Convert.TerminateTrailing = *cfg.Convert.TerminateTrailing
	}
	if len(cfg.Convert.Renames) > 0 {
		plan.Convert.Renames = make(map[string]string, len(cfg.Convert.Renames))
		for from, to := range cfg.Convert.Renames {
			if !identifierPattern.MatchString(from) || !identifierPattern.MatchString(to) {
				return plan, fmt.Errorf("%s: convert.renames: %q = %q is not a function name mapping", path, from, to)
			}
			plan.Convert.Renames[from] = to
		}
	}

	if err := resolveServer(path, baseDir, cfg.Server, &plan.Server); err != nil {
		return plan, err
	}
	if err := resolveAnalytics(path, cfg.Analytics, &plan.Analytics); err != nil {
		return plan, err
	}
	if cfg.Watch.Debounce != "" {
		d, err := parseDuration(path, "watch.debounce", cfg.Watch.Debounce)
		if err != nil {
			return plan, err
		}
		plan.Watch.Debounce = d
	}
	return plan, nil
}

func resolveServer(path, baseDir string, cfg ServerConfig, plan *ServerPlan) error {
	if cfg.Address != "" {
		plan.Address = cfg.Address
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("%s: server.max_body_bytes must be positive", path)
	}
	if cfg.MaxBodyBytes > 0 {
		plan.MaxBodyBytes = cfg.MaxBodyBytes
	}
	if cfg.StaticDir != "" {
		if filepath.IsAbs(cfg.StaticDir) {
			plan.StaticDir = filepath.Clean(cfg.StaticDir)
		} else {
			plan.StaticDir = filepath.Join(baseDir, filepath.Clean(cfg.StaticDir))
		}
	}
	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout, &plan.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout, &plan.WriteTimeout},
		{"server.cache_ttl", cfg.CacheTTL, &plan.CacheTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parseDuration(path, d.key, d.value)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	if cfg.CacheEntries != nil {
		if *cfg.CacheEntries < 0 {
			return fmt.Errorf("%s: server.cache_entries must not be negative", path)
		}
		plan.CacheEntries = *cfg.CacheEntries
	}
	return nil
}

func resolveAnalytics(path string, cfg AnalyticsConfig, plan *AnalyticsPlan) error {
	switch cfg.Driver {
	case "":
	case DriverSQLite, DriverPgx:
		plan.Driver = cfg.Driver
	default:
		return fmt.Errorf("%s: unsupported analytics.driver %q", path, cfg.Driver)
	}
	plan.DSN = cfg.DSN
	if plan.Driver == DriverPgx && plan.DSN == "" {
		return fmt.Errorf("%s: analytics.dsn is required for driver %q", path, DriverPgx)
	}
	if cfg.Agents < 0 || cfg.Days < 0 {
		return fmt.Errorf("%s: analytics.agents and analytics.days must be positive", path)
	}
	if cfg.Agents > 0 {
		plan.Agents = cfg.Agents
	}
	if cfg.Days > 0 {
		plan.Days = cfg.Days
	}
	if cfg.Seed != nil {
		plan.Seed = *cfg.Seed
	}
	return nil
}

func parseDuration(path, key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", path, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %s must not be negative", path, key)
	}
	return d, nil
}

func resolveOut(path, baseDir, out string) (string, error) {
	if filepath.IsAbs(out) {
		return "", fmt.Errorf("%s: out must be a relative path", path)
	}

	cleaned := filepath.Clean(out)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: out must not traverse upwards", path)
	}

	return filepath.Join(baseDir, cleaned), nil
}

// ResolveInputs expands input patterns and directories to files, mapping
// resolver errors onto configuration messages.
func ResolveInputs(resolver fileset.Resolver, patterns []string) ([]string, error) {
	paths, err := resolver.Resolve(patterns)
	if err != nil {
		switch {
		case errors.Is(err, fileset.ErrNoPatterns):
			return nil, errors.New("inputs must include at least one pattern")
		default:
			var noMatchErr fileset.NoMatchError
			if errors.As(err, &noMatchErr) {
				return nil, fmt.Errorf("inputs matched no files: %s", strings.Join(noMatchErr.Patterns, ", "))
			}

			var patternErr fileset.PatternError
			if errors.As(err, &patternErr) {
				return nil, fmt.Errorf("inputs: invalid glob pattern %q: %w", patternErr.Pattern, patternErr.Err)
			}

			return nil, fmt.Errorf("inputs: %w", err)
		}
	}

	return paths, nil
}
