// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"strconv"
	"time"
)

// LoopbackDialer stands in for the hypervisor channel on machines that
// have none. It dials Host:peer.Port over TCP and ignores the context
// id, so an ordinary TCP service can play the enclave.
type LoopbackDialer struct {
	// Host is the TCP host to dial. Empty means 127.0.0.1.
	Host string

	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to Host:peer.Port.
func (d *LoopbackDialer) DialContext(ctx context.Context, peer Peer) (net.Conn, error) {
	host := d.Host
	if host == "" {
		host = "127.0.0.1"
	}
	address := net.JoinHostPort(host, strconv.FormatUint(uint64(peer.Port), 10))
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
