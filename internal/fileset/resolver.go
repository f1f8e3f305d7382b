// Package fileset resolves input patterns to SQL files.
//
// A pattern is either a glob or a directory. Directories expand to every file
// beneath them with the configured extension (".sql" by default), so a config
// can name a whole legacy tree without enumerating it.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtension is the file extension collected from directories.
const DefaultExtension = ".sql"

// Resolver resolves glob patterns and directories against an fs.FS and
// rewrites the discovered paths using a join function for deterministic,
// de-duplicated results.
type Resolver struct {
	fsys fs.FS
	join func(name string) string
	ext  string
	// suffixes skipped in directories and glob matches
	exclude []string
	// absolute patterns are resolved against the OS filesystem
	allowAbs bool
}

// ErrNoPatterns indicates that Resolve was invoked without any patterns.
var ErrNoPatterns = errors.New("fileset: no patterns provided")

// PatternError wraps syntax issues reported while evaluating a glob pattern.
type PatternError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e PatternError) Unwrap() error { return e.Err }

// NoMatchError describes which patterns failed to yield any results.
type NoMatchError struct {
	Patterns []string
}

// Error implements the error interface.
func (e NoMatchError) Error() string {
	return "patterns matched no files: " + strings.Join(e.Patterns, ", ")
}

// NewResolver constructs a Resolver against the provided filesystem without any
// path rewriting, preserving the original match names. Useful for tests.
func NewResolver(fsys fs.FS) Resolver {
	return Resolver{
		fsys: fsys,
		join: func(name string) string { return name },
		ext:  DefaultExtension,
	}
}

// NewOSResolver constructs a Resolver rooted at base that returns absolute OS
// paths for each match. Absolute patterns bypass base.
func NewOSResolver(base string) (Resolver, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return Resolver{}, fmt.Errorf("resolve base %q: %w", base, err)
	}

	info, err := os.Stat(absBase)
	if err != nil {
		return Resolver{}, fmt.Errorf("stat base %q: %w", absBase, err)
	}
	if !info.IsDir() {
		return Resolver{}, fmt.Errorf("base %q is not a directory", absBase)
	}

	return Resolver{
		fsys: os.DirFS(absBase),
		join: func(name string) string {
			if filepath.IsAbs(name) {
				return filepath.Clean(name)
			}
			return filepath.Join(absBase, filepath.FromSlash(name))
		},
		ext:      DefaultExtension,
		allowAbs: true,
	}, nil
}

// WithExtension returns a copy of r that collects files with ext from
// directories.
func (r Resolver) WithExtension(ext string) Resolver {
	r.ext = ext
	return r
}

// WithExclude returns a copy of r that skips files ending in any of suffixes
// when expanding directories or globs. Exact file names are never skipped.
func (r Resolver) WithExclude(suffixes ...string) Resolver {
	r.exclude = append(slices.Clone(r.exclude), suffixes...)
	return r
}

// Resolve evaluates each pattern, accumulating matches, and returns a
// deterministically sorted list of de-duplicated paths. A pattern that names a
// directory, or a glob that matches one, contributes every file beneath it
// with the resolver's extension.
func (r Resolver) Resolve(patterns []string) ([]string, error) {
	if r.fsys == nil {
		return nil, errors.New("fileset: resolver has no filesystem")
	}

	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	joinFn := r.join
	if joinFn == nil {
		joinFn = func(name string) string { return name }
	}

	combined := make([]string, 0)
	missing := make([]string, 0)

	for _, pattern := range patterns {
		var (
			matches []string
			err     error
		)
		if r.allowAbs && filepath.IsAbs(pattern) {
			matches, err = r.resolveOS(pattern)
		} else {
			matches, err = r.resolveFS(pattern)
			for i := range matches {
				matches[i] = joinFn(matches[i])
			}
		}
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			missing = append(missing, pattern)
			continue
		}
		combined = append(combined, matches...)
	}

	if len(missing) > 0 {
		return nil, NoMatchError{Patterns: append([]string(nil), missing...)}
	}

	slices.Sort(combined)
	return slices.Compact(combined), nil
}

func (r Resolver) resolveFS(pattern string) ([]string, error) {
	globPattern := path.Clean(filepath.ToSlash(pattern))

	matches, err := fs.Glob(r.fsys, globPattern)
	if err != nil {
		return nil, PatternError{Pattern: pattern, Err: err}
	}

	var files []string
	for _, match := range matches {
		info, err := fs.Stat(r.fsys, match)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", match, err)
		}
		if !info.IsDir() {
			if !isGlob(pattern) || !r.excluded(match) {
				files = append(files, match)
			}
			continue
		}
		err = fs.WalkDir(r.fsys, match, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && r.wants(name) {
				files = append(files, name)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", match, err)
		}
	}
	return files, nil
}

func (r Resolver) resolveOS(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, PatternError{Pattern: pattern, Err: err}
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", match, err)
		}
		if !info.IsDir() {
			if !isGlob(pattern) || !r.excluded(match) {
				files = append(files, filepath.Clean(match))
			}
			continue
		}
		err = filepath.WalkDir(match, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && r.wants(name) {
				files = append(files, filepath.Clean(name))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", match, err)
		}
	}
	return files, nil
}

func (r Resolver) wants(name string) bool {
	if r.excluded(name) {
		return false
	}
	if r.ext == "" {
		return true
	}
	return strings.EqualFold(path.Ext(filepath.ToSlash(name)), r.ext)
}

func (r Resolver) excluded(name string) bool {
	for _, suffix := range r.exclude {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
