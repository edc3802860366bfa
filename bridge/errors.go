// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "errors"

var (
	// ErrBind means the local address could not be bound. Fatal when
	// returned from Start; at runtime the bridge retries with backoff.
	ErrBind = errors.New("bind failed")

	// ErrAccept marks a transient accept failure. The listener stays up.
	ErrAccept = errors.New("accept failed")

	// ErrConnect means the peer could not be reached for one session.
	ErrConnect = errors.New("connect to peer failed")

	// ErrTransfer marks an I/O failure while relaying. Both conns of the
	// session are closed.
	ErrTransfer = errors.New("transfer failed")

	// ErrReset accompanies ErrTransfer when the remote side forcibly
	// closed the connection.
	ErrReset = errors.New("connection reset")

	// ErrSessionLimit means a client was turned away because
	// Limits.MaxSessions sessions were already active.
	ErrSessionLimit = errors.New("session limit reached")
)
