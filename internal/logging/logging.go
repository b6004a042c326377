// Package logging builds the component loggers used across tudu.
//
// Each component gets a standard *log.Logger with a bracketed prefix
// ("[sync] ", "[store] ", ...). Output goes to stderr, to a size-rotated
// file when a log file is configured, or nowhere when quiet.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select where log output goes.
type Options struct {
	// File is the log file path; empty means stderr.
	File string

	// Verbose enables output when no file is configured.
	Verbose bool

	// MaxSizeMB is the size at which the file is rotated (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int
}

// Factory hands out prefixed loggers sharing one writer.
type Factory struct {
	out    io.Writer
	closer io.Closer
}

// New creates a Factory for opts.
func New(opts Options) *Factory {
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 10
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		_ = os.MkdirAll(filepath.Dir(opts.File), 0o755)
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		return &Factory{out: lj, closer: lj}
	}
	if opts.Verbose {
		return &Factory{out: os.Stderr}
	}
	return &Factory{out: io.Discard}
}

// Logger returns a logger with prefix "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags)
}

// Writer returns the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close closes the log file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
