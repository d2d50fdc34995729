// SPDX-License-Identifier: MPL-2.0

// Package locate finds locally installed engine binaries.
//
// Lookup precedence per binary: environment variable, configured path,
// then OS-convention install globs. Matches of a glob are ordered by the
// version embedded in their path and the highest one wins.
package locate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/phylorun/phylorun/internal/config"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"
)

const (
	BinaryBeast2    Binary = "beast2"
	BinaryBeastX    Binary = "beastx"
	BinaryRevBayes  Binary = "revbayes"
	BinaryLPhyBeast Binary = "lphybeast"

	SourceEnv    Source = "env"
	SourceConfig Source = "config"
	SourceGlob   Source = "install"
	SourcePath   Source = "PATH"
)

// ErrNotFound is returned when no lookup step yields a binary.
var ErrNotFound = errors.New("binary not found")

var (
	envVars = map[Binary]string{
		BinaryBeast2:    "BEAST",
		BinaryBeastX:    "BEAST_X",
		BinaryLPhyBeast: "LPHYBEAST",
	}

	patterns = map[Binary][]string{
		BinaryBeast2: {
			"/Applications/BEAST 2.*/bin/beast",
			"~/beast*/bin/beast",
			"/opt/beast*/bin/beast",
			"/usr/local/beast*/bin/beast",
		},
		BinaryBeastX: {
			"/Applications/BEAST X*/bin/beast",
			"/Applications/BEAST 10.*/bin/beast",
			"/Applications/BEAST 1.*/bin/beast",
			"~/BEASTv1*/bin/beast",
			"/opt/BEASTv1*/bin/beast",
		},
		BinaryLPhyBeast: {
			"/Users/*/Library/Application Support/BEAST/2.*/lphybeast/bin/lphybeast",
			"~/.beast/2.*/lphybeast/bin/lphybeast",
		},
	}

	// pathPrograms are resolved through PATH when nothing else matched.
	pathPrograms = map[Binary]string{
		BinaryRevBayes: "rb",
	}

	embeddedVersion = regexp.MustCompile(`\d+(?:\.\d+)+`)
)

type (
	// Binary names a locatable engine binary.
	Binary string

	// Source tells which lookup step produced a Result.
	Source string

	// Result is a located binary.
	Result struct {
		Path   string
		Source Source
	}

	// Option configures a Locator.
	Option func(*Locator)

	// Locator resolves binaries against injected environment, filesystem
	// and PATH lookups.
	Locator struct {
		getenv     func(string) string
		root       fs.FS
		home       string
		lookPath   func(string) (string, error)
		configured map[Binary]string
		logger     *log.Logger
	}

	// NotFoundError is returned when a binary cannot be located.
	// It wraps ErrNotFound for errors.Is() compatibility.
	NotFoundError struct {
		Binary   Binary
		EnvVar   string
		Patterns []string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s binary not found", e.Binary)
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// WithEnv sets the environment lookup function.
func WithEnv(getenv func(string) string) Option {
	return func(l *Locator) {
		l.getenv = getenv
	}
}

// WithRoot sets the filesystem that absolute glob patterns are matched
// against. Paths in the filesystem are relative to "/".
func WithRoot(root fs.FS) Option {
	return func(l *Locator) {
		l.root = root
	}
}

// WithHome sets the directory "~" expands to.
func WithHome(home string) Option {
	return func(l *Locator) {
		l.home = home
	}
}

// WithLookPath sets the PATH lookup function.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(l *Locator) {
		l.lookPath = lookPath
	}
}

// WithBinaries sets the configured binary paths.
func WithBinaries(b config.BinariesConfig) Option {
	return func(l *Locator) {
		l.configured = map[Binary]string{
			BinaryBeast2:    b.Beast2,
			BinaryBeastX:    b.BeastX,
			BinaryRevBayes:  b.RevBayes,
			BinaryLPhyBeast: b.LPhyBeast,
		}
	}
}

// WithLogger sets the logger lookups are reported to at debug level.
func WithLogger(logger *log.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// New creates a Locator over the real environment, filesystem and PATH.
func New(opts ...Option) *Locator {
	home, _ := os.UserHomeDir()
	l := &Locator{
		getenv:     os.Getenv,
		root:       os.DirFS("/"),
		home:       home,
		lookPath:   exec.LookPath,
		configured: map[Binary]string{},
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnvVar returns the environment variable overriding b, or "".
func EnvVar(b Binary) string {
	return envVars[b]
}

// Patterns returns the install globs searched for b.
func Patterns(b Binary) []string {
	return slices.Clone(patterns[b])
}

// Find returns the path of b.
func (l *Locator) Find(b Binary) (string, error) {
	r, err := l.Lookup(b)
	if err != nil {
		return "", err
	}
	return r.Path, nil
}

// Lookup returns the path of b together with the step that produced it.
func (l *Locator) Lookup(b Binary) (Result, error) {
	if name := envVars[b]; name != "" {
		if p := l.getenv(name); p != "" {
			return l.found(b, Result{Path: p, Source: SourceEnv})
		}
	}

	if p := l.configured[b]; p != "" {
		return l.found(b, Result{Path: p, Source: SourceConfig})
	}

	if p := l.glob(patterns[b]); p != "" {
		return l.found(b, Result{Path: p, Source: SourceGlob})
	}

	if program := pathPrograms[b]; program != "" {
		if p, err := l.lookPath(program); err == nil {
			return l.found(b, Result{Path: p, Source: SourcePath})
		}
	}

	l.logger.Debug("Binary not found", "binary", b)
	return Result{}, &NotFoundError{Binary: b, EnvVar: envVars[b], Patterns: Patterns(b)}
}

func (l *Locator) found(b Binary, r Result) (Result, error) {
	l.logger.Debug("Located binary", "binary", b, "path", r.Path, "source", r.Source)
	return r, nil
}

// glob returns the highest-versioned file matching any of the patterns.
func (l *Locator) glob(globs []string) string {
	var matches []string
	for _, pattern := range globs {
		abs, ok := l.expandHome(pattern)
		if !ok {
			continue
		}
		rel := strings.TrimPrefix(abs, "/")
		found, err := doublestar.Glob(l.root, rel, doublestar.WithFilesOnly())
		if err != nil {
			l.logger.Debug("Skipping install pattern", "pattern", pattern, "err", err)
			continue
		}
		for _, m := range found {
			matches = append(matches, "/"+m)
		}
	}

	if len(matches) == 0 {
		return ""
	}
	SortByVersion(matches)
	return matches[len(matches)-1]
}

func (l *Locator) expandHome(pattern string) (string, bool) {
	if !strings.HasPrefix(pattern, "~/") {
		return pattern, true
	}
	if l.home == "" {
		return "", false
	}
	return path.Join(l.home, pattern[2:]), true
}

// SortByVersion orders paths ascending by the first dotted version number
// they contain. Paths without a parseable version sort lexicographically
// before versioned ones.
func SortByVersion(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		va, vb := pathVersion(a), pathVersion(b)
		switch {
		case va == nil && vb == nil:
			return strings.Compare(a, b)
		case va == nil:
			return -1
		case vb == nil:
			return 1
		}
		if c := va.Compare(vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

func pathVersion(p string) *version.Version {
	raw := embeddedVersion.FindString(p)
	if raw == "" {
		return nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return nil
	}
	return v
}

// InstallDir returns the installation root of a BEAST-style binary, two
// levels above <root>/bin/beast.
func InstallDir(binary string) string {
	return path.Dir(path.Dir(binary))
}
