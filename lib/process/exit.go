// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes returned by the forwarder binary.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// Fatal writes "error: err" to stderr and exits. An error carrying an
// ExitCode() method chooses its own code; everything else exits with
// ExitFailure.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	os.Exit(ExitFailure)
}

// UsageError is returned for malformed command lines.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// ExitCode returns ExitUsage.
func (e *UsageError) ExitCode() int { return ExitUsage }
