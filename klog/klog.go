// Package klog is the kernel's console logger: a thin wrapper around an
// io.Writer, in the teacher's style of writing directly with fmt.Printf/
// fmt.Fprintf rather than reaching for a structured logging library (the
// pack has none in its kernel-shaped code — see DESIGN.md).
package klog

import (
	"fmt"
	"io"
	"os"
)

/// Logger_t writes kernel diagnostic lines to an injectable sink.
type Logger_t struct {
	out io.Writer
}

/// Default writes to os.Stderr, matching the console device the teacher's
/// kernel always has available during boot.
func Default() *Logger_t {
	return &Logger_t{out: os.Stderr}
}

/// New wraps an arbitrary writer, e.g. a test's bytes.Buffer.
func New(w io.Writer) *Logger_t {
	return &Logger_t{out: w}
}

/// Printf formats and writes a single diagnostic line.
func (l *Logger_t) Printf(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	fmt.Fprintf(l.out, format, args...)
}
