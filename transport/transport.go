// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// Compile-time interface checks.
var (
	_ Dialer = (*VsockDialer)(nil)
	_ Dialer = (*LoopbackDialer)(nil)
	_ Dialer = DialerFunc(nil)
)

// Peer identifies the upstream end of every forwarded connection.
type Peer struct {
	// ContextID is the hypervisor-channel context id of the peer.
	ContextID uint32

	// Port is the peer's listening port on that context.
	Port uint32
}

func (p Peer) String() string {
	return fmt.Sprintf("vsock://%d:%d", p.ContextID, p.Port)
}

// Dialer opens a stream connection to a peer. A returned error means
// only this attempt failed; later attempts may succeed.
type Dialer interface {
	DialContext(ctx context.Context, peer Peer) (net.Conn, error)
}

// DialerFunc adapts an ordinary function to the Dialer interface.
type DialerFunc func(ctx context.Context, peer Peer) (net.Conn, error)

// DialContext calls f(ctx, peer).
func (f DialerFunc) DialContext(ctx context.Context, peer Peer) (net.Conn, error) {
	return f(ctx, peer)
}

// Well-known context ids.
const (
	ContextIDHypervisor uint32 = vsock.Hypervisor
	ContextIDLocal      uint32 = vsock.Local
	ContextIDHost       uint32 = vsock.Host
)

var contextIDNames = map[string]uint32{
	"hypervisor": ContextIDHypervisor,
	"local":      ContextIDLocal,
	"host":       ContextIDHost,
}

// ParseContextID parses a decimal context id or a reserved name.
func ParseContextID(value string) (uint32, error) {
	if id, ok := contextIDNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return id, nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid context id %q: must be a number or one of hypervisor, local, host", value)
	}
	return uint32(id), nil
}

// ParsePort parses a port in the range 0-65535.
func ParsePort(value string) (uint32, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: must be a number between 0 and 65535", value)
	}
	return uint32(port), nil
}
