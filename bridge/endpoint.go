// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bureau-foundation/forwarder/transport"
)

// Endpoint is the fixed forwarding configuration: where to listen and
// which peer every session connects to.
type Endpoint struct {
	// LocalAddress is the host or IP to bind (e.g. "127.0.0.1").
	LocalAddress string

	// LocalPort is the TCP port to bind. Zero picks an ephemeral port.
	LocalPort int

	// Remote is the peer on the hypervisor channel.
	Remote transport.Peer
}

// Validate rejects an endpoint that cannot be bound.
func (e Endpoint) Validate() error {
	if e.LocalPort < 0 || e.LocalPort > 65535 {
		return fmt.Errorf("local port %d out of range 0-65535", e.LocalPort)
	}
	return nil
}

// ListenAddress returns the "host:port" string passed to Listen.
func (e Endpoint) ListenAddress() string {
	return net.JoinHostPort(e.LocalAddress, strconv.Itoa(e.LocalPort))
}

func (e Endpoint) String() string {
	return e.ListenAddress() + " -> " + e.Remote.String()
}

// Default delays for the retry paths.
const (
	DefaultRebindBackoff  = 5 * time.Second
	DefaultHandoffBackoff = 1 * time.Second
)

// Limits bounds the resources the bridge will commit. The zero value
// imposes no limit and no timeout.
type Limits struct {
	// MaxSessions caps concurrently active sessions. Clients accepted
	// beyond the cap are closed immediately. Zero means unbounded.
	MaxSessions int

	// AcceptRate is the sustained number of new sessions per second
	// allowed to dial the peer. Zero means unlimited.
	AcceptRate float64

	// AcceptBurst is the token-bucket burst for AcceptRate. Values
	// below one are treated as one.
	AcceptBurst int

	// IdleTimeout tears down a session when neither direction has moved
	// bytes for this long. Zero disables it.
	IdleTimeout time.Duration

	// DialTimeout bounds each peer dial. Zero means no bound.
	DialTimeout time.Duration

	// BufferSize is the per-direction transfer chunk. Zero means
	// DefaultBufferSize.
	BufferSize int
}

// Validate rejects negative limits.
func (l Limits) Validate() error {
	switch {
	case l.MaxSessions < 0:
		return fmt.Errorf("max sessions must not be negative (got %d)", l.MaxSessions)
	case l.AcceptRate < 0:
		return fmt.Errorf("accept rate must not be negative (got %g)", l.AcceptRate)
	case l.AcceptBurst < 0:
		return fmt.Errorf("accept burst must not be negative (got %d)", l.AcceptBurst)
	case l.IdleTimeout < 0:
		return fmt.Errorf("idle timeout must not be negative (got %v)", l.IdleTimeout)
	case l.DialTimeout < 0:
		return fmt.Errorf("dial timeout must not be negative (got %v)", l.DialTimeout)
	case l.BufferSize < 0:
		return fmt.Errorf("buffer size must not be negative (got %d)", l.BufferSize)
	}
	return nil
}

// BackoffConfig sets the retry delays. Zero fields take the defaults.
type BackoffConfig struct {
	// Rebind is the wait before re-binding a failed listener.
	Rebind time.Duration

	// Handoff is the wait after a failed accept or an unreachable peer.
	Handoff time.Duration

	// Max, when larger than a base delay, lets consecutive failures
	// double that delay up to Max. Otherwise delays stay fixed.
	Max time.Duration
}
