// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"
)

// VsockDialer opens AF_VSOCK stream connections. The returned
// *vsock.Conn supports CloseRead and CloseWrite, so half-close
// propagates across the hypervisor channel.
type VsockDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// vsockDial is replaced in tests.
var vsockDial = func(contextID, port uint32) (net.Conn, error) {
	return vsock.Dial(contextID, port, nil)
}

type dialResult struct {
	connection net.Conn
	err        error
}

// DialContext connects to peer. vsock.Dial blocks without a context, so
// the dial runs in its own goroutine; a connection that completes after
// ctx is done is closed rather than leaked.
func (d *VsockDialer) DialContext(ctx context.Context, peer Peer) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	results := make(chan dialResult, 1)
	go func() {
		connection, err := vsockDial(peer.ContextID, peer.Port)
		results <- dialResult{connection, err}
	}()

	select {
	case result := <-results:
		if result.err != nil {
			return nil, fmt.Errorf("dial %s: %w", peer, result.err)
		}
		return result.connection, nil
	case <-ctx.Done():
		go func() {
			if result := <-results; result.connection != nil {
				result.connection.Close()
			}
		}()
		return nil, fmt.Errorf("dial %s: %w", peer, ctx.Err())
	}
}
