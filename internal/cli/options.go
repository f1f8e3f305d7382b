// Package cli parses command-line flags for the tsql2snow binaries.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Options holds the converter CLI flags.
type Options struct {
	// ConfigPath is empty unless -c/--config was given; the binary then
	// looks for a default config file in the working directory.
	ConfigPath   string
	Out          string
	DryRun       bool
	Check        bool
	Watch        bool
	StrictConfig bool
	Verbose      bool
	Args         []string
}

func Parse(args []string) (Options, error) {
	var opts Options

	fs := flag.NewFlagSet("tsql2snow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (default: tsql2snow.toml or tsql2snow.yaml if present)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file")
	fs.StringVar(&opts.Out, "out", "", "Override output directory; relative paths are resolved against the working directory")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Convert without writing files and print the planned output paths")
	fs.BoolVar(&opts.Check, "check", false, "Report residual T-SQL constructs and exit 1 when any are found")
	fs.BoolVar(&opts.Watch, "watch", false, "Reconvert input files when they change")
	fs.BoolVar(&opts.StrictConfig, "strict-config", false, "Treat configuration warnings as errors")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("%w\n\n%s", err, Usage(fs))
	}

	opts.Args = fs.Args()
	if opts.Watch && opts.DryRun {
		return Options{}, fmt.Errorf("--watch cannot be combined with --dry-run\n\n%s", Usage(fs))
	}
	return opts, nil
}

// ServerOptions holds the HTTP server flags.
type ServerOptions struct {
	ConfigPath   string
	Addr         string
	StrictConfig bool
	Verbose      bool
}

func ParseServer(args []string) (ServerOptions, error) {
	var opts ServerOptions

	fs := flag.NewFlagSet("tsql2snow-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file")
	fs.StringVar(&opts.Addr, "addr", "", "Listen address; overrides server.address")
	fs.BoolVar(&opts.StrictConfig, "strict-config", false, "Treat configuration warnings as errors")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return ServerOptions{}, fmt.Errorf("%w\n\n%s", err, Usage(fs))
	}
	if fs.NArg() > 0 {
		return ServerOptions{}, fmt.Errorf("unexpected arguments: %s\n\n%s", strings.Join(fs.Args(), " "), Usage(fs))
	}
	return opts, nil
}

// IsHelp reports whether err came from -h or --help.
func IsHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

func Usage(fs *flag.FlagSet) string {
	if fs == nil {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Usage of %s:\n", fs.Name())
	out := fs.Output()
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(out)
	return buf.String()
}
