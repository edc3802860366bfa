// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies the errors a byte relay sees on its
// sockets.
//
// [IsConnectionReset] separates a peer that aborted the connection from
// other I/O failures. [IsExpectedCloseError] recognizes the errors that
// occur during ordinary teardown (EOF, a socket closed by the paired
// relay direction, EPIPE, ECONNRESET) so they can be logged quietly.
// [IsTransientAcceptError] decides whether a failed Accept leaves the
// listening socket usable or whether it has to be closed and re-bound.
package netutil
