// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// logOptions describes how the pipeline logger is built from the global
// flags and the config file.
type logOptions struct {
	// Debug lowers the level to debug.
	Debug bool
	// Verbose lowers the level to info. Debug wins over Verbose.
	Verbose bool
	// Quiet raises the level to error. Debug and Verbose win over Quiet.
	Quiet bool
	// Output is a path log output is mirrored to, besides stderr.
	Output string
}

// newLogger builds the process logger. charmbracelet/log is the handler;
// everything downstream sees a plain *slog.Logger. The returned closer
// flushes the optional file sink and must run after the pipeline finishes.
func newLogger(opts logOptions) (*slog.Logger, func(), error) {
	level := log.WarnLevel
	switch {
	case opts.Debug:
		level = log.DebugLevel
	case opts.Verbose:
		level = log.InfoLevel
	case opts.Quiet:
		level = log.ErrorLevel
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if opts.Output != "" {
		f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log output %q: %w", opts.Output, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = func() { _ = f.Close() }
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	return slog.New(handler), closer, nil
}
