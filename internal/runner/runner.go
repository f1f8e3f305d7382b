// Package runner converts SQL files on disk.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/electwix/tsql2snow/internal/lint"
	"github.com/electwix/tsql2snow/internal/rewrite"
)

// Report describes the conversion of one file.
type Report struct {
	Path       string
	OutPath    string
	Output     string
	Batches    int
	Statements int
	Applied    map[string]int
	Findings   []lint.Finding
	// Written is false for dry runs and when OutPath already held Output.
	Written bool
}

// Changed reports whether any rule rewrote the input.
func (r Report) Changed() bool {
	for _, n := range r.Applied {
		if n > 0 {
			return true
		}
	}
	return false
}

// Runner converts files and writes the results next to the inputs or into an
// output directory.
type Runner struct {
	Logger *slog.Logger
	DryRun bool
	// Out is the output directory. Empty writes <name><Suffix> beside each
	// input.
	Out    string
	Suffix string
	// Base is the directory input paths are made relative to under Out.
	Base   string
	Writer Writer

	converter *rewrite.Converter
	readFile  func(string) ([]byte, error)
}

// New creates a Runner using converter; nil selects the default rules.
func New(converter *rewrite.Converter) *Runner {
	if converter == nil {
		converter = rewrite.New(rewrite.DefaultOptions())
	}
	return &Runner{
		Suffix:    ".snowflake.sql",
		converter: converter,
		readFile:  os.ReadFile,
	}
}

// OutputPath returns where the conversion of path is written.
func (r *Runner) OutputPath(path string) string {
	if r.Out == "" {
		ext := filepath.Ext(path)
		return strings.TrimSuffix(path, ext) + r.Suffix
	}
	if r.Base != "" {
		if rel, err := filepath.Rel(r.Base, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.Join(r.Out, rel)
		}
	}
	return filepath.Join(r.Out, filepath.Base(path))
}

// Run converts each path. Read failures are collected and returned together;
// a write failure is returned as a *WriteError.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Report, error) {
	if r == nil {
		return nil, errors.New("runner: runner is nil")
	}

	reports := make([]Report, 0, len(paths))
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.ConvertFile(ctx, path)
		if err != nil {
			var writeErr *WriteError
			if errors.As(err, &writeErr) {
				return reports, err
			}
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(errs...)
}

// ConvertFile converts a single file and writes the result unless DryRun is set.
func (r *Runner) ConvertFile(ctx context.Context, path string) (Report, error) {
	report := Report{Path: path, OutPath: r.OutputPath(path)}
	if report.OutPath == path {
		return report, fmt.Errorf("%s: output path equals input path", path)
	}

	readFile := r.readFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(path)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	converter := r.converter
	if converter == nil {
		converter = rewrite.New(rewrite.DefaultOptions())
	}
	res := converter.ConvertDetailed(string(data))
	report.Output = res.SQL
	report.Batches = res.Batches
	report.Statements = res.Statements
	report.Applied = res.Applied
	report.Findings = lint.Check(res.SQL)

	r.logger().Debug("converted", "file", path, "statements", res.Statements, "batches", res.Batches)
	for _, f := range report.Findings {
		r.logger().Debug("residual construct", "file", path, "line", f.Line, "rule", string(f.Construct))
	}

	if r.DryRun {
		return report, nil
	}

	content := []byte(res.SQL)
	if len(content) > 0 {
		content = append(content, '\n')
	}
	writer := r.Writer
	if writer == nil {
		writer = NewOSWriter()
	}
	if m, ok := writer.(Matcher); ok {
		same, err := m.Matches(report.OutPath, content)
		if err != nil {
			return report, &WriteError{Path: report.OutPath, Err: err}
		}
		if same {
			return report, nil
		}
	}
	if err := writer.WriteFile(report.OutPath, content); err != nil {
		return report, &WriteError{Path: report.OutPath, Err: err}
	}
	report.Written = true
	return report, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}
