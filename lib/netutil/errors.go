// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// IsConnectionReset reports whether err means the remote side forcibly
// closed the connection (ECONNRESET). A broken pipe is not a reset: it
// is reported when writing after the peer closed, however it closed.
func IsConnectionReset(err error) bool {
	var errno unix.Errno
	return errors.As(err, &errno) && errno == unix.ECONNRESET
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, use of a closed connection, broken pipe, or
// connection reset. When one relay direction fails and closes both
// sockets, the other direction observes one of these on its next call.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, unix.EPIPE) {
		return true
	}
	return IsConnectionReset(err)
}

// IsTransientAcceptError reports whether an Accept failure leaves the
// listening socket usable. Timeouts, aborted handshakes, interrupted
// calls, and descriptor or memory exhaustion are transient. Anything
// else, including net.ErrClosed, means the listener itself is gone.
func IsTransientAcceptError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var netError net.Error
	if errors.As(err, &netError) && netError.Timeout() {
		return true
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ECONNABORTED, unix.EINTR, unix.EAGAIN,
			unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM, unix.EPROTO:
			return true
		}
	}
	return false
}
