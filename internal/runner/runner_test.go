package runner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/electwix/tsql2snow/internal/rewrite"
)

func TestRunner_ConvertsNextToInput(t *testing.T) {
	r := New(nil)
	r.readFile = func(string) ([]byte, error) {
		return []byte("SELECT TOP 5 * FROM [Sales] WITH (NOLOCK) WHERE x = ISNULL(a,b);"), nil
	}
	mem := &MemoryWriter{}
	r.Writer = mem

	reports, err := r.Run(context.Background(), []string{"legacy/q.sql"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	report := reports[0]
	if report.OutPath != "legacy/q.snowflake.sql" {
		t.Fatalf("unexpected output path %q", report.OutPath)
	}
	want := `SELECT * FROM "Sales" WHERE x = COALESCE(a,b) LIMIT 5;` + "\n"
	got, ok := mem.GetFile("legacy/q.snowflake.sql")
	if !ok {
		t.Fatalf("output not written; files: %v", mem.Files)
	}
	if string(got) != want {
		t.Fatalf("unexpected output:\nwant %q\n got %q", want, got)
	}
	if !report.Written || !report.Changed() {
		t.Fatalf("expected written and changed report, got %+v", report)
	}
	if report.Applied[rewrite.RuleRowLimit] != 1 {
		t.Fatalf("expected row-limit to apply once, got %v", report.Applied)
	}
	if len(report.Findings) != 0 {
		t.Fatalf("unexpected findings %v", report.Findings)
	}
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	r := New(nil)
	r.DryRun = true
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT 1;"), nil }
	mem := &MemoryWriter{}
	r.Writer = mem

	reports, err := r.Run(context.Background(), []string{"a.sql"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mem.FileCount() != 0 {
		t.Fatalf("dry run wrote %d files", mem.FileCount())
	}
	if reports[0].Written || reports[0].Changed() {
		t.Fatalf("unexpected report %+v", reports[0])
	}
	if reports[0].Output != "SELECT 1;" {
		t.Fatalf("unexpected output %q", reports[0].Output)
	}
}

func TestRunner_OutputPath(t *testing.T) {
	cases := []struct {
		name string
		out  string
		base string
		path string
		want string
	}{
		{name: "suffix", path: filepath.Join("x", "a.sql"), want: filepath.Join("x", "a.snowflake.sql")},
		{name: "no extension", path: "script", want: "script.snowflake.sql"},
		{name: "out dir", out: "build", path: filepath.Join("x", "a.sql"), want: filepath.Join("build", "a.sql")},
		{name: "out dir keeps tree", out: "build", base: "src", path: filepath.Join("src", "sub", "a.sql"), want: filepath.Join("build", "sub", "a.sql")},
		{name: "outside base", out: "build", base: "src", path: filepath.Join("other", "a.sql"), want: filepath.Join("build", "a.sql")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(nil)
			r.Out = tc.out
			r.Base = tc.base
			if got := r.OutputPath(tc.path); got != tc.want {
				t.Fatalf("OutputPath(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestRunner_ReadErrorsAreJoined(t *testing.T) {
	r := New(nil)
	r.readFile = func(path string) ([]byte, error) {
		if path == "good.sql" {
			return []byte("SELECT 1"), nil
		}
		return nil, fs.ErrNotExist
	}
	r.Writer = &MemoryWriter{}

	reports, err := r.Run(context.Background(), []string{"missing1.sql", "good.sql", "missing2.sql"})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if len(reports) != 1 || reports[0].Path != "good.sql" {
		t.Fatalf("expected the good file to convert, got %+v", reports)
	}
	if reports[0].Output != "SELECT 1;" {
		t.Fatalf("unexpected output %q", reports[0].Output)
	}
}

type failingWriter struct{}

func (failingWriter) WriteFile(string, []byte) error { return errors.New("disk full") }

type countingWriter struct{ writes int }

func (w *countingWriter) WriteFile(string, []byte) error {
	w.writes++
	return nil
}

func TestRunner_MemoryWriterSkipsIdenticalOutput(t *testing.T) {
	r := New(nil)
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT ISNULL(a, 0);"), nil }
	mem := &MemoryWriter{}
	r.Writer = mem

	first, err := r.Run(context.Background(), []string{"a.sql"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := r.Run(context.Background(), []string{"a.sql"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !first[0].Written || second[0].Written {
		t.Fatalf("expected only the first run to write, got %v then %v", first[0].Written, second[0].Written)
	}

	mem.Files["a.snowflake.sql"] = []byte("stale\n")
	third, err := r.Run(context.Background(), []string{"a.sql"})
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if !third[0].Written {
		t.Fatalf("expected changed output to be rewritten")
	}
}

func TestRunner_WriterWithoutMatcherAlwaysWrites(t *testing.T) {
	r := New(nil)
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT 1;"), nil }
	w := &countingWriter{}
	r.Writer = w

	for range 2 {
		if _, err := r.Run(context.Background(), []string{"a.sql"}); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if w.writes != 2 {
		t.Fatalf("expected 2 writes, got %d", w.writes)
	}
}

func TestRunner_WriteErrorStops(t *testing.T) {
	r := New(nil)
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT 1;"), nil }
	r.Writer = failingWriter{}

	reports, err := r.Run(context.Background(), []string{"a.sql", "b.sql"})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if writeErr.Path != "a.snowflake.sql" {
		t.Fatalf("unexpected path %q", writeErr.Path)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %d", len(reports))
	}
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(nil)
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT 1;"), nil }
	r.Writer = &MemoryWriter{}
	if _, err := r.Run(ctx, []string{"a.sql"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_ResidualFindings(t *testing.T) {
	r := New(nil)
	r.DryRun = true
	r.readFile = func(string) ([]byte, error) { return []byte("SELECT NEWID(), @@ROWCOUNT;"), nil }

	reports, err := r.Run(context.Background(), []string{"a.sql"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports[0].Findings) != 2 {
		t.Fatalf("expected 2 findings, got %v", reports[0].Findings)
	}
}

func TestRunner_OSWriterSkipsIdenticalOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "q.sql")
	if err := os.WriteFile(in, []byte("SELECT ISNULL(a, 0) FROM [t]"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	r := New(nil)
	first, err := r.Run(context.Background(), []string{in})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first[0].Written {
		t.Fatalf("expected first run to write")
	}
	data, err := os.ReadFile(filepath.Join(dir, "q.snowflake.sql"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "SELECT COALESCE(a, 0) FROM \"t\";\n"; string(data) != want {
		t.Fatalf("unexpected output:\nwant %q\n got %q", want, data)
	}

	second, err := r.Run(context.Background(), []string{in})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Written {
		t.Fatalf("expected identical output to be skipped")
	}
}

func TestOSWriter_CreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "deeper", "out.sql")
	if err := NewOSWriter().WriteFile(target, []byte("SELECT 1;\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "SELECT 1;\n" {
		t.Fatalf("unexpected content %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}
