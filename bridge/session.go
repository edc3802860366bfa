// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/forwarder/lib/netutil"
	"github.com/bureau-foundation/forwarder/transport"
)

// SessionConfig describes how a Session reaches the peer and relays.
type SessionConfig struct {
	Dialer transport.Dialer
	Peer   transport.Peer

	// DialTimeout bounds the peer dial. Zero means no bound.
	DialTimeout time.Duration

	// IdleTimeout and BufferSize are passed to both Pumps.
	IdleTimeout time.Duration
	BufferSize  int

	// Logger receives per-session debug output. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Session pairs one accepted client with one peer connection. It owns
// both conns and closes them once both Pumps have returned.
type Session struct {
	client net.Conn
	peer   net.Conn
	config SessionConfig

	closeOnce sync.Once
}

// Transfer reports how many bytes a Session relayed in each direction.
type Transfer struct {
	// Upstream is client -> peer.
	Upstream int64

	// Downstream is peer -> client.
	Downstream int64
}

// OpenSession dials the peer for an accepted client. If the peer cannot
// be reached the client is closed and the error wraps ErrConnect.
// There is no retry here; the client reconnects if it wants to.
func OpenSession(ctx context.Context, client net.Conn, config SessionConfig) (*Session, error) {
	if config.Dialer == nil {
		client.Close()
		return nil, fmt.Errorf("%w: no dialer configured", ErrConnect)
	}

	dialContext := ctx
	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialContext, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	peer, err := config.Dialer.DialContext(dialContext, config.Peer)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, config.Peer, err)
	}

	return &Session{client: client, peer: peer, config: config}, nil
}

func (s *Session) logger() *slog.Logger {
	if s.config.Logger != nil {
		return s.config.Logger
	}
	return slog.Default()
}

type pumpResult struct {
	direction string
	bytes     int64
	err       error
}

// Run relays in both directions and returns once both Pumps have
// finished and both conns are closed. The returned error is the failure
// that tore the session down, if any; errors the other Pump hit because
// of that teardown are only logged. If ctx is cancelled while running,
// both conns are closed so the Pumps return promptly.
func (s *Session) Run(ctx context.Context) (Transfer, error) {
	stop := context.AfterFunc(ctx, s.close)
	defer stop()
	defer s.close()

	var cause error
	var causeOnce sync.Once
	activity := new(atomic.Int64)

	results := make(chan pumpResult, 2)
	start := func(direction string, source, destination net.Conn) {
		pump := &Pump{
			Source:      source,
			Destination: destination,
			Direction:   direction,
			BufferSize:  s.config.BufferSize,
			IdleTimeout: s.config.IdleTimeout,
			Activity:    activity,
			OnFail: func(err error) {
				causeOnce.Do(func() { cause = err })
			},
		}
		go func() {
			bytes, err := pump.Run()
			results <- pumpResult{direction, bytes, err}
		}()
	}
	start("upstream", s.client, s.peer)
	start("downstream", s.peer, s.client)

	var transfer Transfer
	var failed []pumpResult
	for range 2 {
		result := <-results
		if result.direction == "upstream" {
			transfer.Upstream = result.bytes
		} else {
			transfer.Downstream = result.bytes
		}

		if result.err == nil {
			s.logger().Debug("direction finished",
				"direction", result.direction,
				"bytes", result.bytes,
			)
			continue
		}
		failed = append(failed, result)
	}

	// Both results have been received, so cause is settled.
	for _, result := range failed {
		if result.err != cause {
			s.logSecondary(result)
		}
	}
	return transfer, cause
}

// logSecondary reports the error of the Pump that finished second. It
// usually just discovered that its pair closed the conns.
func (s *Session) logSecondary(result pumpResult) {
	level := slog.LevelWarn
	if netutil.IsExpectedCloseError(result.err) {
		level = slog.LevelDebug
	}
	s.logger().Log(context.Background(), level, "direction failed after session teardown",
		"direction", result.direction,
		"bytes", result.bytes,
		"error", result.err,
	)
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.client.Close()
		s.peer.Close()
	})
}
