// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/forwarder/lib/config"
)

// newLogger builds the process logger writing to output. In auto format
// a terminal gets slog.TextHandler and anything else (journald, a log
// shipper, a pipe) gets slog.JSONHandler.
func newLogger(output io.Writer, logging config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}

	format := logging.Format
	if format == "" || format == config.FormatAuto {
		format = config.FormatJSON
		if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = config.FormatText
		}
	}

	switch format {
	case config.FormatText:
		return slog.New(slog.NewTextHandler(output, options)), nil
	case config.FormatJSON:
		return slog.New(slog.NewJSONHandler(output, options)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", logging.Format)
}
