// SPDX-License-Identifier: MPL-2.0

// Package phylospec recognizes PhyloSpec documents and converts them to
// engine scripts with the PhyloSpec converter JARs.
package phylospec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/phylorun/phylorun/internal/config"
	"github.com/phylorun/phylorun/internal/runtime"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

const (
	// Extension marks PhyloSpec files by name.
	Extension = ".phylospec"

	// DefaultJava is the Java launcher used when none is configured.
	DefaultJava = "java"

	// rootKey is the top-level member identifying a JSON PhyloSpec document.
	rootKey = "phylospec"

	convertedSuffix = "_converted"

	// maxSniffBytes bounds the content check of IsDocument.
	maxSniffBytes = 1 << 20
)

// ErrConversion is the sentinel error wrapped by ConversionError.
var ErrConversion = errors.New("phylospec conversion failed")

var (
	// TargetRev converts to a RevBayes script.
	TargetRev = Target{Name: "rev", Jar: "convertToRev.jar", Class: "org.phylospec.converters.ConvertToRev", Ext: ".rev"}
	// TargetLPhy converts to an LPhy script.
	TargetLPhy = Target{Name: "lphy", Jar: "convertToLPhy.jar", Class: "org.phylospec.converters.ConvertToLPhy", Ext: ".lphy"}
)

type (
	// Target is a conversion output language.
	Target struct {
		Name  string
		Jar   string
		Class string
		// Ext is the extension of the converted file, with the dot.
		Ext string
	}

	// ConversionError is returned when a PhyloSpec script cannot be converted.
	ConversionError struct {
		File   string
		Reason string
		Err    error
	}

	// Option configures a Converter.
	Option func(*Converter)

	// Converter runs the converter JARs.
	Converter struct {
		java        string
		jarDir      string
		logger      *log.Logger
		execCommand runtime.ExecCommandFunc
	}
)

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// Unwrap returns ErrConversion and the underlying cause, if any.
func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConversion}
	}
	return []error{ErrConversion, e.Err}
}

// IsDocument reports whether file is a PhyloSpec document: its name ends
// with ".phylospec", or it holds a JSON object with a top-level "phylospec"
// member. Only the first MiB of the file is inspected.
func IsDocument(file string) bool {
	if strings.HasSuffix(file, Extension) {
		return true
	}

	f, err := os.Open(file)
	if err != nil {
		return false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSniffBytes))
	if err != nil || !gjson.ValidBytes(data) {
		return false
	}
	doc := gjson.ParseBytes(data)
	return doc.IsObject() && doc.Get(rootKey).Exists()
}

// ConvertedPath returns the file a conversion of file to target writes.
func ConvertedPath(file string, target Target) string {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), stem+convertedSuffix+target.Ext)
}

// DefaultJarDir returns the directory holding the converter JARs: "jars"
// next to the phylorun executable if it exists, else "jars" in the
// configuration directory.
func DefaultJarDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "jars")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	if cfgDir, err := config.ConfigDir(); err == nil {
		return filepath.Join(cfgDir, "jars")
	}
	return "jars"
}

// WithJava sets the Java launcher.
func WithJava(java string) Option {
	return func(c *Converter) {
		if java != "" {
			c.java = java
		}
	}
}

// WithJarDir sets the directory holding the converter JARs.
func WithJarDir(dir string) Option {
	return func(c *Converter) {
		if dir != "" {
			c.jarDir = dir
		}
	}
}

// WithLogger sets the logger converter diagnostics go to.
func WithLogger(logger *log.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithExecCommand sets the exec.Cmd constructor.
func WithExecCommand(fn runtime.ExecCommandFunc) Option {
	return func(c *Converter) {
		c.execCommand = fn
	}
}

// NewConverter creates a converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		java:        DefaultJava,
		logger:      log.New(io.Discard),
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jarDir == "" {
		c.jarDir = DefaultJarDir()
	}
	return c
}

// Convert translates file into target's language and returns the path of
// the written script. Any byte the converter prints on stderr, whitespace
// included, marks the script as invalid.
func (c *Converter) Convert(ctx context.Context, file string, target Target) (string, error) {
	args := []string{"-cp", filepath.Join(c.jarDir, target.Jar), target.Class, file}
	c.logger.Debug("Converting PhyloSpec script", "target", target.Name, "command", runtime.FormatCommand(c.java, args...))

	var stdout, stderr bytes.Buffer
	cmd := c.execCommand(ctx, c.java, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if stderr.Len() > 0 {
		c.logger.Error(strings.TrimRight(stderr.String(), "\n"))
		return "", &ConversionError{File: file, Reason: "PhyloSpec script is invalid"}
	}
	if runErr != nil {
		if _, ran := errors.AsType[*exec.ExitError](runErr); ran {
			return "", &ConversionError{File: file, Reason: "converter failed", Err: runErr}
		}
		return "", &ConversionError{File: file, Reason: "could not start the converter", Err: runErr}
	}
	if stdout.Len() == 0 {
		return "", &ConversionError{File: file, Reason: "converter produced no output"}
	}

	out := ConvertedPath(file, target)
	if err := os.WriteFile(out, stdout.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write converted script: %w", err)
	}
	c.logger.Debug("Converted PhyloSpec script", "from", file, "to", out)
	return out, nil
}
