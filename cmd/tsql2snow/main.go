// Package main implements the tsql2snow CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/electwix/tsql2snow/internal/cli"
	"github.com/electwix/tsql2snow/internal/config"
	"github.com/electwix/tsql2snow/internal/fileset"
	"github.com/electwix/tsql2snow/internal/lint"
	"github.com/electwix/tsql2snow/internal/logging"
	"github.com/electwix/tsql2snow/internal/rewrite"
	"github.com/electwix/tsql2snow/internal/runner"
	"github.com/electwix/tsql2snow/internal/watch"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitWrite   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args)
	if err != nil {
		if cli.IsHelp(err) {
			_, _ = fmt.Fprintln(stdout, err.Error())
			return exitOK
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}

	wd, err := os.Getwd()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "working directory: %v\n", err)
		return exitFailure
	}

	plan, warnings, err := loadPlan(opts, wd)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}
	for _, warn := range warnings {
		_, _ = fmt.Fprintln(stderr, warn)
	}

	logger := logging.New(logging.Options{
		Verbose: opts.Verbose,
		Writer:  stderr,
		Format:  plan.LogFormat,
	})
	converter := rewrite.New(plan.Convert)

	inputs, patterns, base := plan.Inputs, plan.Patterns, plan.BaseDir
	if len(opts.Args) > 0 {
		resolver, err := fileset.NewOSResolver(wd)
		if err == nil {
			inputs, err = config.ResolveInputs(resolver.WithExclude(plan.Suffix), opts.Args)
		}
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return exitFailure
		}
		patterns, base = opts.Args, wd
	}

	if len(inputs) == 0 {
		if opts.Watch {
			_, _ = fmt.Fprintln(stderr, "--watch requires input files")
			return exitFailure
		}
		return convertStdin(converter, opts.Check, stdin, stdout, stderr)
	}

	r := runner.New(converter)
	r.Logger = logger
	r.DryRun = opts.DryRun
	r.Suffix = plan.Suffix
	r.Base = base
	r.Out = plan.Out
	if opts.Out != "" {
		if r.Out, err = filepath.Abs(opts.Out); err != nil {
			_, _ = fmt.Fprintf(stderr, "resolve --out: %v\n", err)
			return exitFailure
		}
	}
	r.Writer = runner.NewOSWriter()

	code := convertFiles(ctx, r, inputs, opts, stdout, stderr)
	if !opts.Watch || code == exitWrite {
		return code
	}
	return watchInputs(ctx, r, watchConfig{
		inputs:   inputs,
		patterns: patterns,
		base:     base,
		plan:     plan,
		opts:     opts,
		logger:   logger,
	}, stdout, stderr)
}

// loadPlan reads the named config, else a default config file in wd, else
// the built-in defaults.
func loadPlan(opts cli.Options, wd string) (config.Plan, []string, error) {
	path := opts.ConfigPath
	if path == "" {
		found, ok := config.Discover(wd)
		if !ok {
			return config.Default(wd), nil, nil
		}
		path = found
	}
	res, err := config.Load(path, config.LoadOptions{Strict: opts.StrictConfig})
	if err != nil {
		return config.Plan{}, nil, err
	}
	return res.Plan, res.Warnings, nil
}

func convertStdin(converter *rewrite.Converter, check bool, stdin io.Reader, stdout, stderr io.Writer) int {
	data, err := io.ReadAll(stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read stdin: %v\n", err)
		return exitFailure
	}
	res := converter.ConvertDetailed(string(data))
	if res.SQL != "" {
		_, _ = fmt.Fprintln(stdout, res.SQL)
	}
	findings := lint.Check(res.SQL)
	printFindings(stderr, "<stdin>", findings)
	if check && len(findings) > 0 {
		return exitFailure
	}
	return exitOK
}

func convertFiles(ctx context.Context, r *runner.Runner, inputs []string, opts cli.Options, stdout, stderr io.Writer) int {
	reports, runErr := r.Run(ctx, inputs)

	findings := 0
	written := 0
	for _, rep := range reports {
		printFindings(stderr, rep.OutPath, rep.Findings)
		findings += len(rep.Findings)

		if opts.DryRun {
			_, _ = fmt.Fprintln(stdout, rep.OutPath)
			continue
		}
		if !rep.Written {
			continue
		}
		written++
		_, _ = fmt.Fprintf(stdout, "%s -> %s: %s\n", rep.Path, rep.OutPath, summarize(rep))
	}

	if runErr != nil {
		_, _ = fmt.Fprintln(stderr, runErr.Error())
		var writeErr *runner.WriteError
		if errors.As(runErr, &writeErr) {
			return exitWrite
		}
		return exitFailure
	}

	if !opts.DryRun {
		if written == 0 {
			_, _ = fmt.Fprintln(stdout, "tsql2snow: no changes")
		} else {
			_, _ = fmt.Fprintf(stdout, "tsql2snow: wrote %d file(s)\n", written)
		}
	}

	if opts.Check && findings > 0 {
		_, _ = fmt.Fprintf(stderr, "tsql2snow: %d residual T-SQL construct(s)\n", findings)
		return exitFailure
	}
	return exitOK
}

func summarize(rep runner.Report) string {
	segments := []string{fmt.Sprintf("%d statement(s)", rep.Statements)}
	if rep.Batches > 1 {
		segments = append(segments, fmt.Sprintf("%d batches", rep.Batches))
	}
	var applied []string
	for _, name := range slices.Sorted(maps.Keys(rep.Applied)) {
		if n := rep.Applied[name]; n > 0 {
			applied = append(applied, fmt.Sprintf("%s=%d", name, n))
		}
	}
	if len(applied) > 0 {
		segments = append(segments, "rules "+strings.Join(applied, ", "))
	}
	return strings.Join(segments, "; ")
}

func printFindings(w io.Writer, path string, findings []lint.Finding) {
	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "%s:%s [%s]\n", path, f.String(), f.Construct)
	}
}

type watchConfig struct {
	inputs   []string
	patterns []string
	base     string
	plan     config.Plan
	opts     cli.Options
	logger   *slog.Logger
}

// watchInputs reconverts changed inputs until ctx is canceled.
func watchInputs(ctx context.Context, r *runner.Runner, cfg watchConfig, stdout, stderr io.Writer) int {
	suffix := cfg.plan.Suffix
	outDir := r.Out
	filter := func(path string) bool {
		if !watch.IsSQLFile(path) || strings.HasSuffix(path, suffix) {
			return false
		}
		return outDir == "" || !within(outDir, path)
	}

	handler := func(ctx context.Context, changed []string) {
		current := cfg.inputs
		if resolver, err := fileset.NewOSResolver(cfg.base); err == nil {
			if resolved, err := config.ResolveInputs(resolver.WithExclude(suffix), cfg.patterns); err == nil {
				current = resolved
			} else {
				cfg.logger.Warn("resolve inputs", "error", err)
			}
		}
		var paths []string
		for _, path := range changed {
			if _, found := slices.BinarySearch(current, path); found {
				paths = append(paths, path)
			}
		}
		if len(paths) == 0 {
			return
		}
		cfg.logger.Info("reconverting", "files", len(paths))
		_ = convertFiles(ctx, r, paths, cfg.opts, stdout, stderr)
	}

	w, err := watch.New(logging.NewSlogAdapter(cfg.logger), handler,
		watch.WithDebounce(cfg.plan.Watch.Debounce),
		watch.WithFilter(filter),
	)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}

	dirs := make(map[string]struct{})
	for _, in := range cfg.inputs {
		dirs[filepath.Dir(in)] = struct{}{}
	}
	for _, pattern := range cfg.patterns {
		dir := pattern
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.base, dir)
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs[filepath.Clean(dir)] = struct{}{}
		}
	}
	if err := w.Add(slices.Sorted(maps.Keys(dirs))...); err != nil {
		_ = w.Close()
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}

	cfg.logger.Info("watching for changes", "files", len(cfg.inputs), "directories", len(dirs))
	if err := w.Run(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}
	return exitOK
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
