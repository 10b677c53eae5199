package output

import (
	"fmt"
	"io"
	"os"

	"github.com/NeverVane/histpick/internal/config"
)

// Formatter provides a high-level interface for CLI output formatting.
// Status messages go to stderr so stdout stays usable in pipelines.
type Formatter struct {
	out         io.Writer
	errOut      io.Writer
	colors      *ColorFormatter
	verboseMode bool
	quietMode   bool
}

// NewFormatter creates a formatter writing to stdout and stderr
func NewFormatter(cfg *config.Config) *Formatter {
	return NewFormatterWithWriters(cfg, os.Stdout, os.Stderr)
}

// NewFormatterWithWriters creates a formatter with explicit writers
func NewFormatterWithWriters(cfg *config.Config, out, errOut io.Writer) *Formatter {
	return &Formatter{
		out:    out,
		errOut: errOut,
		colors: NewColorFormatter(&cfg.Output, errOut),
	}
}

// SetFlags configures the formatter based on command line flags
func (f *Formatter) SetFlags(verbose, quiet, noColor bool) {
	f.verboseMode = verbose
	f.quietMode = quiet
	f.colors.SetNoColor(noColor)
}

// Out returns the writer used for command output
func (f *Formatter) Out() io.Writer {
	return f.out
}

// Success prints a success message (always shown unless quiet)
func (f *Formatter) Success(format string, args ...interface{}) {
	if !f.quietMode {
		fmt.Fprintln(f.errOut, f.colors.Success(fmt.Sprintf(format, args...)))
	}
}

// Error prints an error message (always shown)
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintln(f.errOut, f.colors.Error(fmt.Sprintf(format, args...)))
}

// Warning prints a warning message (always shown unless quiet)
func (f *Formatter) Warning(format string, args ...interface{}) {
	if !f.quietMode {
		fmt.Fprintln(f.errOut, f.colors.Warning(fmt.Sprintf(format, args...)))
	}
}

// Info prints an info message (only in verbose mode)
func (f *Formatter) Info(format string, args ...interface{}) {
	if !f.quietMode && f.verboseMode {
		fmt.Fprintln(f.errOut, f.colors.Info(fmt.Sprintf(format, args...)))
	}
}

// Println prints a plain line to the output writer
func (f *Formatter) Println(format string, args ...interface{}) {
	fmt.Fprintf(f.out, format+"\n", args...)
}

// Bold formats text as bold
func (f *Formatter) Bold(text string) string {
	return f.colors.Bold(text)
}
