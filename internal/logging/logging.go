// SPDX-License-Identifier: MPL-2.0

// Package logging builds the structured loggers shared by every command.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// Prefix is printed in front of every record.
	Prefix = "appgen"

	// RunIDKey is the structured key carrying the invocation identifier.
	RunIDKey = "run_id"

	// ComponentKey is the structured key naming the emitting component.
	ComponentKey = "component"
)

// New constructs a CLI logger writing to w. Debug records are emitted only
// when verbose is set. A nil writer falls back to stderr.
func New(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		Level:           level,
		ReportTimestamp: false,
	})
}

// WithRunID returns a child logger tagged with a fresh invocation identifier,
// together with that identifier.
func WithRunID(logger *log.Logger) (*log.Logger, string) {
	id := uuid.NewString()
	return Ensure(logger).With(RunIDKey, id), id
}

// Component returns a child logger for the named component.
func Component(logger *log.Logger, name string) *log.Logger {
	return Ensure(logger).With(ComponentKey, name)
}

// Ensure returns the provided logger or the package default if nil.
func Ensure(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return log.Default()
}

// Discard returns a logger that drops every record.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
