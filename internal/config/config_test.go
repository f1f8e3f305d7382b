package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"testing/fstest"

	"github.com/electwix/tsql2snow/internal/fileset"
	"github.com/electwix/tsql2snow/internal/logging"
)

func TestLoadSuccess(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeFile(t, tempDir, "sql/orders.sql", "SELECT 1;")
	writeFile(t, tempDir, "sql/orders.snowflake.sql", "SELECT 1;")
	writeFile(t, tempDir, "legacy/deep/report.sql", "SELECT 2;")

	configPath := writeConfig(t, tempDir, "tsql2snow.toml", `
inputs = ["sql/*.sql", "legacy"]
out = "snowflake"
log_format = "json"

[convert]
tidy = false
[convert.renames]
SYSDATETIME = "CURRENT_TIMESTAMP"

[server]
address = "127.0.0.1:9000"
cache_ttl = "1m"
cache_entries = 0

[analytics]
agents = 5
seed = 3

[watch]
debounce = "250ms"
`)

	result, err := Load(configPath, LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}

	plan := result.Plan
	expectedInputs := []string{
		filepath.Join(tempDir, "legacy", "deep", "report.sql"),
		filepath.Join(tempDir, "sql", "orders.sql"),
	}
	if !slices.Equal(plan.Inputs, expectedInputs) {
		t.Fatalf("unexpected inputs: %v", plan.Inputs)
	}
	if plan.Out != filepath.Join(tempDir, "snowflake") {
		t.Fatalf("unexpected out %q", plan.Out)
	}
	if plan.LogFormat != logging.FormatJSON {
		t.Fatalf("unexpected log format %q", plan.LogFormat)
	}
	if plan.Convert.Tidy || !plan.Convert.TerminateTrailing {
		t.Fatalf("unexpected convert options %+v", plan.Convert)
	}
	if plan.Convert.Renames["SYSDATETIME"] != "CURRENT_TIMESTAMP" {
		t.Fatalf("renames not loaded: %v", plan.Convert.Renames)
	}
	if plan.Server.Address != "127.0.0.1:9000" || plan.Server.CacheTTL != time.Minute || plan.Server.CacheEntries != 0 {
		t.Fatalf("unexpected server plan %+v", plan.Server)
	}
	if plan.Server.MaxBodyBytes != 1<<20 || plan.Server.StaticDir != filepath.Join(tempDir, "web") {
		t.Fatalf("server defaults not applied: %+v", plan.Server)
	}
	if plan.Analytics.Agents != 5 || plan.Analytics.Days != 180 || plan.Analytics.Seed != 3 || plan.Analytics.Driver != DriverSQLite {
		t.Fatalf("unexpected analytics plan %+v", plan.Analytics)
	}
	if plan.Watch.Debounce != 250*time.Millisecond {
		t.Fatalf("unexpected debounce %v", plan.Watch.Debounce)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	configPath := writeConfig(t, tempDir, "tsql2snow.yaml", `
suffix: .sf.sql
convert:
  terminate_trailing: false
analytics:
  driver: pgx
  dsn: postgres://localhost/demo
`)

	result, err := Load(configPath, LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	plan := result.Plan
	if plan.Suffix != ".sf.sql" {
		t.Fatalf("unexpected suffix %q", plan.Suffix)
	}
	if plan.Convert.TerminateTrailing || !plan.Convert.Tidy {
		t.Fatalf("unexpected convert options %+v", plan.Convert)
	}
	if plan.Analytics.Driver != DriverPgx || plan.Analytics.DSN != "postgres://localhost/demo" {
		t.Fatalf("unexpected analytics plan %+v", plan.Analytics)
	}
	if len(plan.Inputs) != 0 {
		t.Fatalf("expected stdin mode, got inputs %v", plan.Inputs)
	}
}

func TestLoadUnknownKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		contents string
	}{
		{"toml", "tsql2snow.toml", "bogus = 1\n[server]\nport = 80\n[convert.renames]\nANY = \"THING\"\n"},
		{"yaml", "tsql2snow.yaml", "bogus: 1\nserver:\n  port: 80\nconvert:\n  renames:\n    ANY: THING\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			configPath := writeConfig(t, tempDir, tt.file, tt.contents)

			result, err := Load(configPath, LoadOptions{})
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if len(result.Warnings) != 1 {
				t.Fatalf("expected one warning, got %v", result.Warnings)
			}
			if !strings.Contains(result.Warnings[0], "bogus, server.port") {
				t.Fatalf("unexpected warning %q", result.Warnings[0])
			}

			if _, err := Load(configPath, LoadOptions{Strict: true}); err == nil {
				t.Fatal("expected strict mode to reject unknown keys")
			}
		})
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{"absolute out", `out = "/abs"`, "out must be a relative path"},
		{"traversal", `out = "../up"`, "out must not traverse upwards"},
		{"suffix separator", `suffix = "a/b.sql"`, "suffix must not contain path separators"},
		{"log format", `log_format = "xml"`, "unknown log format"},
		{"rename", "[convert.renames]\n\"A B\" = \"C\"", "not a function name mapping"},
		{"duration", "[server]\nread_timeout = \"soon\"", "server.read_timeout"},
		{"negative body", "[server]\nmax_body_bytes = -1", "max_body_bytes must be positive"},
		{"driver", "[analytics]\ndriver = \"oracle\"", "unsupported analytics.driver"},
		{"pgx dsn", "[analytics]\ndriver = \"pgx\"", "analytics.dsn is required"},
		{"inputs", `inputs = ["missing/*.sql"]`, "inputs matched no files: missing/*.sql"},
		{"syntax", `inputs = [`, "tsql2snow.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			configPath := writeConfig(t, tempDir, "tsql2snow.toml", tt.contents)
			_, err := Load(configPath, LoadOptions{})
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadWithResolver(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"q/a.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
		"q/b.sql": &fstest.MapFile{Data: []byte("SELECT 2;")},
	}
	resolver := fileset.NewResolver(fsys)
	configPath := writeConfig(t, t.TempDir(), "tsql2snow.toml", `inputs = ["q"]`)

	result, err := Load(configPath, LoadOptions{Resolver: &resolver})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !slices.Equal(result.Plan.Inputs, []string{"q/a.sql", "q/b.sql"}) {
		t.Fatalf("unexpected inputs %v", result.Plan.Inputs)
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	if _, ok := Discover(tempDir); ok {
		t.Fatal("expected no config in empty dir")
	}
	writeConfig(t, tempDir, "tsql2snow.yml", "out: x\n")
	writeConfig(t, tempDir, "tsql2snow.toml", `out = "x"`)
	path, ok := Discover(tempDir)
	if !ok || filepath.Base(path) != "tsql2snow.toml" {
		t.Fatalf("Discover = %q, %v", path, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "read ") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func writeFile(tb testing.TB, dir, name, contents string) {
	tb.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
}

func writeConfig(tb testing.TB, dir, name, contents string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	clean := strings.TrimSpace(contents) + "\n"
	if err := os.WriteFile(path, []byte(clean), 0o600); err != nil {
		tb.Fatalf("write config: %v", err)
	}
	return path
}
