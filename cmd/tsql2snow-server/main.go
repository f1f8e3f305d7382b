// Package main implements the tsql2snow HTTP service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/electwix/tsql2snow/internal/analytics"
	"github.com/electwix/tsql2snow/internal/cli"
	"github.com/electwix/tsql2snow/internal/config"
	"github.com/electwix/tsql2snow/internal/logging"
	"github.com/electwix/tsql2snow/internal/rewrite"
	"github.com/electwix/tsql2snow/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := cli.ParseServer(args)
	if err != nil {
		if cli.IsHelp(err) {
			_, _ = fmt.Fprintln(stdout, err.Error())
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	plan, err := loadPlan(opts, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if opts.Addr != "" {
		plan.Server.Address = opts.Addr
	}

	logger := logging.NewSlogAdapter(logging.New(logging.Options{
		Verbose: opts.Verbose,
		Writer:  stderr,
		Format:  plan.LogFormat,
	}))

	store, err := analytics.Open(ctx, plan.Analytics.Driver, plan.Analytics.DSN)
	if err != nil {
		return fail(ctx, stderr, err)
	}
	defer func() { _ = store.Close() }()

	seed := analytics.SeedOptions{
		Agents: plan.Analytics.Agents,
		Days:   plan.Analytics.Days,
		Seed:   plan.Analytics.Seed,
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fail(ctx, stderr, err)
	}
	logger.Debug("analytics seeded", "driver", plan.Analytics.Driver, "agents", seed.Agents, "days", seed.Days)

	srv := server.New(server.Options{
		Plan:      plan.Server,
		Converter: rewrite.New(plan.Convert),
		Store:     store,
		Seed:      seed,
		Logger:    logger,
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		return fail(ctx, stderr, err)
	}
	return 0
}

// fail reports err unless the process is already shutting down.
func fail(ctx context.Context, stderr io.Writer, err error) int {
	if ctx.Err() != nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, err.Error())
	return 1
}

func loadPlan(opts cli.ServerOptions, stderr io.Writer) (config.Plan, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Plan{}, fmt.Errorf("working directory: %w", err)
	}
	path := opts.ConfigPath
	if path == "" {
		found, ok := config.Discover(wd)
		if !ok {
			return config.Default(wd), nil
		}
		path = found
	}
	res, err := config.Load(path, config.LoadOptions{Strict: opts.StrictConfig})
	if err != nil {
		return config.Plan{}, err
	}
	for _, warn := range res.Warnings {
		_, _ = fmt.Fprintln(stderr, warn)
	}
	return res.Plan, nil
}
