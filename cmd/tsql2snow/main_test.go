package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRunStdin(t *testing.T) {
	t.Chdir(t.TempDir())
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	in := strings.NewReader("SELECT DATEADD(dd, 3, GETDATE());\nGO\nSELECT 1")
	exitCode := run(context.Background(), nil, in, stdout, stderr)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%q", exitCode, stderr.String())
	}
	want := "SELECT DATEADD(day, 3, CURRENT_TIMESTAMP());\n\nSELECT 1;\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.Len() != 0 {
		t.Fatalf("unexpected stderr output: %q", stderr.String())
	}
}

func TestRunStdinCheck(t *testing.T) {
	t.Chdir(t.TempDir())
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	exitCode := run(context.Background(), []string{"--check"}, strings.NewReader("SELECT NEWID();"), stdout, stderr)
	if exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "<stdin>:1:8:") || !strings.Contains(stderr.String(), "[function]") {
		t.Fatalf("stderr %q missing finding", stderr.String())
	}
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "q.sql")
	writeFile(t, in, "SELECT TOP 5 * FROM [Sales] WITH (NOLOCK) WHERE x = ISNULL(a,b);\n")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := run(context.Background(), []string{"q.sql"}, strings.NewReader(""), stdout, stderr)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%q", exitCode, stderr.String())
	}

	got := readFile(t, filepath.Join(dir, "q.snowflake.sql"))
	want := `SELECT * FROM "Sales" WHERE x = COALESCE(a,b) LIMIT 5;` + "\n"
	if got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if !strings.Contains(stdout.String(), "tsql2snow: wrote 1 file(s)") {
		t.Fatalf("stdout %q missing summary", stdout.String())
	}
	if !strings.Contains(stdout.String(), "row-limit=1") {
		t.Fatalf("stdout %q missing applied rules", stdout.String())
	}

	// a second run sees identical output and the generated file is not an input
	stdout.Reset()
	exitCode = run(context.Background(), []string{"*.sql"}, strings.NewReader(""), stdout, stderr)
	if exitCode != 0 {
		t.Fatalf("second exit code = %d; stderr=%q", exitCode, stderr.String())
	}
	if !strings.Contains(stdout.String(), "tsql2snow: no changes") {
		t.Fatalf("stdout %q, want no changes", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "q.snowflake.snowflake.sql")); !os.IsNotExist(err) {
		t.Fatalf("generated file was converted again")
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "sql", "a.sql"), "SELECT 1")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := run(context.Background(), []string{"--dry-run", "--out", "build", "sql"}, strings.NewReader(""), stdout, stderr)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%q", exitCode, stderr.String())
	}
	expected := filepath.Join(dir, "build", "sql", "a.sql")
	if strings.TrimSpace(stdout.String()) != expected {
		t.Fatalf("stdout = %q, want %q", stdout.String(), expected)
	}
	if _, err := os.Stat(filepath.Join(dir, "build")); !os.IsNotExist(err) {
		t.Fatalf("dry run created the output directory")
	}
}

func TestRunConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "tsql2snow.toml"), `
inputs = ["legacy"]
out = "snowflake"

[convert.renames]
SYSDATETIME = "CURRENT_TIMESTAMP"
`)
	writeFile(t, filepath.Join(dir, "legacy", "report.sql"), "SELECT SYSDATETIME(), LEN(name) FROM [dbo].[People]")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := run(context.Background(), nil, strings.NewReader(""), stdout, stderr)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%q", exitCode, stderr.String())
	}
	got := readFile(t, filepath.Join(dir, "snowflake", "legacy", "report.sql"))
	want := `SELECT CURRENT_TIMESTAMP(), LENGTH(name) FROM "dbo"."People";` + "\n"
	if got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunStrictConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "tsql2snow.toml"), "unknown_key = 1\n")

	stderr := &bytes.Buffer{}
	if code := run(context.Background(), nil, strings.NewReader("SELECT 1"), &bytes.Buffer{}, stderr); code != 0 {
		t.Fatalf("lenient exit code = %d; stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "unknown configuration keys: unknown_key") {
		t.Fatalf("stderr %q missing warning", stderr.String())
	}

	stderr.Reset()
	if code := run(context.Background(), []string{"--strict-config"}, strings.NewReader("SELECT 1"), &bytes.Buffer{}, stderr); code != 1 {
		t.Fatalf("strict exit code = %d, want 1", code)
	}
}

func TestRunCheckFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "a.sql"), "SELECT @@ROWCOUNT;")

	stderr := &bytes.Buffer{}
	exitCode := run(context.Background(), []string{"--check", "a.sql"}, strings.NewReader(""), &bytes.Buffer{}, stderr)
	if exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "[system-variable]") {
		t.Fatalf("stderr %q missing finding", stderr.String())
	}
}

func TestRunWriteError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "a.sql"), "SELECT 1;")
	writeFile(t, filepath.Join(dir, "blocked"), "not a directory")

	stderr := &bytes.Buffer{}
	exitCode := run(context.Background(), []string{"--out", "blocked", "a.sql"}, strings.NewReader(""), &bytes.Buffer{}, stderr)
	if exitCode != 2 {
		t.Fatalf("exit code = %d, want 2; stderr=%q", exitCode, stderr.String())
	}
	if !strings.Contains(stderr.String(), "write ") {
		t.Fatalf("stderr %q missing write error", stderr.String())
	}
}

func TestRunNoMatches(t *testing.T) {
	t.Chdir(t.TempDir())
	stderr := &bytes.Buffer{}
	if code := run(context.Background(), []string{"missing/*.sql"}, strings.NewReader(""), &bytes.Buffer{}, stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "inputs matched no files") {
		t.Fatalf("stderr %q missing no-match error", stderr.String())
	}
}

func TestRunHelp(t *testing.T) {
	stdout := &bytes.Buffer{}
	if code := run(context.Background(), []string{"-h"}, strings.NewReader(""), stdout, &bytes.Buffer{}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "-dry-run") {
		t.Fatalf("stdout %q missing usage", stdout.String())
	}
}

func TestRunWatchRequiresFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	stderr := &bytes.Buffer{}
	if code := run(context.Background(), []string{"--watch"}, strings.NewReader(""), &bytes.Buffer{}, stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunWatch(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "q.sql")
	out := filepath.Join(dir, "q.snowflake.sql")
	writeFile(t, in, "SELECT 1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	var stdout, stderr syncBuffer
	go func() {
		done <- run(ctx, []string{"--watch", "q.sql"}, strings.NewReader(""), &stdout, &stderr)
	}()

	waitForContent(t, out, "SELECT 1;\n")

	// keep rewriting until the watcher has picked up the change
	deadline := time.Now().Add(10 * time.Second)
	for {
		writeFile(t, in, "SELECT GETDATE()")
		if data, err := os.ReadFile(out); err == nil && string(data) == "SELECT CURRENT_TIMESTAMP();\n" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch did not reconvert; stderr=%q", stderr.String())
		}
		time.Sleep(200 * time.Millisecond)
	}

	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit code = %d, want 0; stderr=%q", code, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("watch did not stop after cancel")
	}
}

func waitForContent(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if data, err := os.ReadFile(path); err == nil && string(data) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never contained %q", path, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
