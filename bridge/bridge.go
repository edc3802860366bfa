// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/forwarder/lib/clock"
	"github.com/bureau-foundation/forwarder/lib/netutil"
	"github.com/bureau-foundation/forwarder/transport"
)

// ListenFunc binds a listening socket. It has the signature of
// (*net.ListenConfig).Listen.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// errStopped is returned by bind when the bridge stopped mid-bind.
var errStopped = errors.New("bridge stopped")

// Bridge accepts TCP clients on Endpoint and relays each one to
// Endpoint.Remote through Dialer.
type Bridge struct {
	// Endpoint is the listen address and the fixed peer.
	Endpoint Endpoint

	// Dialer opens peer connections. Required.
	Dialer transport.Dialer

	// Listen binds the local socket. Nil means net.ListenConfig.
	Listen ListenFunc

	// Limits bounds sessions and I/O waits. The zero value is
	// unbounded.
	Limits Limits

	// Backoff sets retry delays. Zero fields take the defaults.
	Backoff BackoffConfig

	// Clock drives retry delays. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives structured log output. Nil means slog.Default().
	Logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	sessions sync.WaitGroup
	stats    Stats

	rebindBackoff  *Backoff
	acceptBackoff  *Backoff
	handoffBackoff *Backoff
	limiter        *rate.Limiter
	slots          *semaphore.Weighted
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Start validates the configuration, binds the listening socket, and
// starts the accept loop in the background. A bind failure is returned
// wrapped in ErrBind; it is the only failure Start reports. After Start
// returns nil the bridge keeps serving, re-binding as needed, until
// Stop is called or ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.Endpoint.Validate(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	if err := b.Limits.Validate(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	if b.Dialer == nil {
		return fmt.Errorf("bridge: Dialer is required")
	}
	b.init()

	ctx, b.cancel = context.WithCancel(ctx)
	if _, err := b.bind(ctx); err != nil {
		b.cancel()
		return err
	}
	b.done = make(chan struct{})
	context.AfterFunc(ctx, b.closeListener)

	go func() {
		defer close(b.done)
		b.acceptLoop(ctx)
	}()

	b.logger().Info("forwarder listening",
		"listen_addr", b.Addr().String(),
		"peer", b.Endpoint.Remote.String(),
		"max_sessions", b.Limits.MaxSessions,
	)
	return nil
}

func (b *Bridge) init() {
	if b.Clock == nil {
		b.Clock = clock.Real()
	}
	if b.Listen == nil {
		b.Listen = (&net.ListenConfig{}).Listen
	}
	rebind := b.Backoff.Rebind
	if rebind <= 0 {
		rebind = DefaultRebindBackoff
	}
	handoff := b.Backoff.Handoff
	if handoff <= 0 {
		handoff = DefaultHandoffBackoff
	}
	b.rebindBackoff = NewBackoff(b.Clock, rebind, b.Backoff.Max)
	b.acceptBackoff = NewBackoff(b.Clock, handoff, b.Backoff.Max)
	b.handoffBackoff = NewBackoff(b.Clock, handoff, b.Backoff.Max)

	if b.Limits.AcceptRate > 0 {
		burst := max(b.Limits.AcceptBurst, 1)
		b.limiter = rate.NewLimiter(rate.Limit(b.Limits.AcceptRate), burst)
	}
	if b.Limits.MaxSessions > 0 {
		b.slots = semaphore.NewWeighted(int64(b.Limits.MaxSessions))
	}
}

// Addr returns the current listener address, or nil when no listener
// is bound. It changes after a re-bind to port 0.
func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stats returns a snapshot of the connection counters.
func (b *Bridge) Stats() StatsSnapshot {
	return b.stats.Snapshot()
}

// Stop closes the listener, closes every active session, and waits for
// all of them to finish. Safe to call more than once.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.closeListener()
	b.Wait()
}

// Wait blocks until the accept loop and every session have exited.
func (b *Bridge) Wait() {
	if b.done != nil {
		<-b.done
	}
}

// bind opens a new listening socket and installs it.
func (b *Bridge) bind(ctx context.Context) (net.Listener, error) {
	address := b.Endpoint.ListenAddress()
	listener, err := b.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, address, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ctx.Err() != nil {
		listener.Close()
		return nil, errStopped
	}
	b.listener = listener
	return listener, nil
}

func (b *Bridge) closeListener() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		b.listener.Close()
		b.listener = nil
	}
}

// acceptLoop accepts until ctx is cancelled, then waits for sessions to
// drain so that closing done signals full quiescence.
func (b *Bridge) acceptLoop(ctx context.Context) {
	defer b.sessions.Wait()

	listener := b.currentListener()
	for listener != nil {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if netutil.IsTransientAcceptError(err) {
				delay := b.acceptBackoff.Failure()
				b.logger().Warn("accept failed, retrying",
					"error", fmt.Errorf("%w: %w", ErrAccept, err),
					"retry_in", delay,
				)
				if b.acceptBackoff.Wait(ctx) != nil {
					return
				}
				continue
			}
			b.logger().Error("listener failed", "error", err)
			listener = b.rebind(ctx)
			continue
		}
		b.acceptBackoff.Success()
		b.admit(ctx, connection)
	}
}

func (b *Bridge) currentListener() net.Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listener
}

// rebind closes the failed listener and binds a new one, waiting out
// the rebind backoff before every attempt. Returns nil once ctx is
// cancelled.
func (b *Bridge) rebind(ctx context.Context) net.Listener {
	b.closeListener()
	for {
		delay := b.rebindBackoff.Failure()
		b.logger().Warn("restarting listener",
			"retry_in", delay,
			"attempt", b.rebindBackoff.Attempts(),
		)
		if b.rebindBackoff.Wait(ctx) != nil {
			return nil
		}

		listener, err := b.bind(ctx)
		if errors.Is(err, errStopped) {
			return nil
		}
		if err != nil {
			b.logger().Error("rebind failed", "error", err)
			continue
		}
		b.rebindBackoff.Success()
		b.logger().Info("forwarder listening",
			"listen_addr", listener.Addr().String(),
			"peer", b.Endpoint.Remote.String(),
		)
		return listener
	}
}

// admit hands an accepted client to its own goroutine. Only the session
// limit check runs on the accept loop.
func (b *Bridge) admit(ctx context.Context, connection net.Conn) {
	id := b.stats.accepted.Add(1)
	logger := b.logger().With("session_id", id)
	logger.Info("accepted connection",
		"client_addr", connection.RemoteAddr().String(),
		"sessions", b.stats.String(),
	)

	if b.slots != nil && !b.slots.TryAcquire(1) {
		b.stats.rejected.Add(1)
		logger.Warn("rejecting connection",
			"error", fmt.Errorf("%w (%d active)", ErrSessionLimit, b.Limits.MaxSessions),
		)
		connection.Close()
		return
	}

	b.sessions.Add(1)
	go func() {
		defer b.sessions.Done()
		if b.slots != nil {
			defer b.slots.Release(1)
		}
		b.serve(ctx, connection, logger)
	}()
}

// serve opens the session for one client and relays until it ends.
func (b *Bridge) serve(ctx context.Context, connection net.Conn, logger *slog.Logger) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			connection.Close()
			return
		}
	}
	if err := b.handoffBackoff.Wait(ctx); err != nil {
		connection.Close()
		return
	}

	session, err := OpenSession(ctx, connection, SessionConfig{
		Dialer:      b.Dialer,
		Peer:        b.Endpoint.Remote,
		DialTimeout: b.Limits.DialTimeout,
		IdleTimeout: b.Limits.IdleTimeout,
		BufferSize:  b.Limits.BufferSize,
		Logger:      logger,
	})
	if err != nil {
		delay := b.handoffBackoff.Failure()
		b.stats.connectFailures.Add(1)
		logger.Error("failed to open session",
			"error", err,
			"retry_in", delay,
		)
		return
	}
	b.handoffBackoff.Success()

	b.stats.open.Add(1)
	transfer, err := session.Run(ctx)
	b.stats.open.Add(-1)
	b.stats.recordTransfer(transfer)

	attributes := []any{
		"upstream_bytes", transfer.Upstream,
		"downstream_bytes", transfer.Downstream,
		"sessions", b.stats.String(),
	}
	switch {
	case err == nil:
		logger.Debug("connection closed", attributes...)
	case ctx.Err() != nil:
		logger.Debug("connection closed by shutdown", attributes...)
	case errors.Is(err, ErrReset):
		logger.Warn("connection reset", append(attributes, "error", err)...)
	default:
		logger.Error("connection failed", append(attributes, "error", err)...)
	}
}
