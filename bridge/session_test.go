// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/forwarder/lib/testutil"
	"github.com/bureau-foundation/forwarder/transport"
)

// fixedDialer returns conn once and fails on any later call.
func fixedDialer(conn net.Conn) transport.Dialer {
	used := false
	return transport.DialerFunc(func(ctx context.Context, peer transport.Peer) (net.Conn, error) {
		if used {
			return nil, errors.New("fixedDialer already used")
		}
		used = true
		return conn, nil
	})
}

type sessionResult struct {
	transfer Transfer
	err      error
}

func runSession(ctx context.Context, session *Session) <-chan sessionResult {
	done := make(chan sessionResult, 1)
	go func() {
		transfer, err := session.Run(ctx)
		done <- sessionResult{transfer, err}
	}()
	return done
}

func TestOpenSessionConnectFailureClosesClient(t *testing.T) {
	clientUser, clientSide := testutil.ConnPair(t)
	refused := errors.New("connection refused")

	_, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer: transport.DialerFunc(func(ctx context.Context, peer transport.Peer) (net.Conn, error) {
			return nil, refused
		}),
		Peer: transport.Peer{ContextID: 3, Port: 5000},
	})
	if !errors.Is(err, ErrConnect) || !errors.Is(err, refused) {
		t.Fatalf("OpenSession error = %v, want ErrConnect wrapping the dial error", err)
	}

	clientUser.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := clientUser.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("client read = %v, want EOF after the failed handoff", err)
	}
}

func TestOpenSessionWithoutDialer(t *testing.T) {
	_, clientSide := testutil.ConnPair(t)
	_, err := OpenSession(context.Background(), clientSide, SessionConfig{})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("OpenSession error = %v, want ErrConnect", err)
	}
}

func TestOpenSessionDialTimeout(t *testing.T) {
	_, clientSide := testutil.ConnPair(t)
	_, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer: transport.DialerFunc(func(ctx context.Context, peer transport.Peer) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		DialTimeout: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrConnect) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("OpenSession error = %v, want ErrConnect wrapping a deadline", err)
	}
}

func TestSessionRelaysBothDirections(t *testing.T) {
	clientUser, clientSide := testutil.ConnPair(t)
	peerSide, peerUser := testutil.ConnPair(t)

	session, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer: fixedDialer(peerSide),
		Peer:   transport.Peer{ContextID: 3, Port: 5000},
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	done := runSession(context.Background(), session)

	clientUser.Write([]byte("hello"))
	clientUser.CloseWrite()
	request, err := io.ReadAll(peerUser)
	if err != nil || string(request) != "hello" {
		t.Fatalf("peer read %q, %v; want %q", request, err, "hello")
	}

	// The peer can still answer after the client finished sending.
	peerUser.Write([]byte("world!"))
	peerUser.CloseWrite()
	response, err := io.ReadAll(clientUser)
	if err != nil || string(response) != "world!" {
		t.Fatalf("client read %q, %v; want %q", response, err, "world!")
	}

	result := testutil.RequireReceive(t, done, 5*time.Second, "session exit")
	if result.err != nil {
		t.Fatalf("Run: %v", result.err)
	}
	if result.transfer != (Transfer{Upstream: 5, Downstream: 6}) {
		t.Errorf("transfer = %+v, want {Upstream:5 Downstream:6}", result.transfer)
	}
}

func TestSessionClientResetClosesPeer(t *testing.T) {
	clientUser, clientSide := testutil.ConnPair(t)
	peerSide, peerUser := testutil.ConnPair(t)

	session, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer: fixedDialer(peerSide),
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	done := runSession(context.Background(), session)

	clientUser.SetLinger(0)
	clientUser.Close()

	// The upstream reset caused the teardown; the downstream Pump only
	// saw its conn closed underneath it.
	result := testutil.RequireReceive(t, done, 5*time.Second, "session exit after reset")
	if !errors.Is(result.err, ErrTransfer) || !errors.Is(result.err, ErrReset) {
		t.Fatalf("Run error = %v, want ErrTransfer and ErrReset", result.err)
	}
	if !strings.HasPrefix(result.err.Error(), "upstream: ") {
		t.Errorf("Run error = %v, want the upstream failure", result.err)
	}

	peerUser.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := peerUser.Read(make([]byte, 1)); err == nil {
		t.Fatal("peer conn still readable after the client reset")
	}
}

func TestSessionCancelClosesConns(t *testing.T) {
	clientUser, clientSide := testutil.ConnPair(t)
	peerSide, peerUser := testutil.ConnPair(t)

	session, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer: fixedDialer(peerSide),
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := runSession(ctx, session)

	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "session exit after cancel")

	for name, conn := range map[string]net.Conn{"client": clientUser, "peer": peerUser} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Read(make([]byte, 1)); err == nil {
			t.Errorf("%s conn still readable after cancel", name)
		}
	}
}

func TestSessionResetReportedEveryTime(t *testing.T) {
	for i := range 20 {
		clientUser, clientSide := testutil.ConnPair(t)
		peerSide, _ := testutil.ConnPair(t)

		session, err := OpenSession(context.Background(), clientSide, SessionConfig{
			Dialer: fixedDialer(peerSide),
		})
		if err != nil {
			t.Fatalf("OpenSession: %v", err)
		}
		done := runSession(context.Background(), session)

		clientUser.SetLinger(0)
		clientUser.Close()

		result := testutil.RequireReceive(t, done, 5*time.Second, "session %d exit", i)
		if !errors.Is(result.err, ErrReset) {
			t.Fatalf("session %d: Run error = %v, want ErrReset", i, result.err)
		}
	}
}

// TestSessionOneWayStreamOutlivesIdleTimeout streams peer->client for
// several idle periods while the client sends nothing. The quiet
// upstream direction must not tear the session down.
func TestSessionOneWayStreamOutlivesIdleTimeout(t *testing.T) {
	clientUser, clientSide := testutil.ConnPair(t)
	peerSide, peerUser := testutil.ConnPair(t)

	session, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer:      fixedDialer(peerSide),
		IdleTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	done := runSession(context.Background(), session)

	const chunks, chunkSize = 20, 100
	go func() {
		chunk := make([]byte, chunkSize)
		for range chunks {
			if _, err := peerUser.Write(chunk); err != nil {
				return
			}
			time.Sleep(50 * time.Millisecond) //nolint:realclock paces a live stream
		}
		peerUser.CloseWrite()
	}()

	clientUser.SetReadDeadline(time.Now().Add(10 * time.Second))
	received, err := io.ReadAll(clientUser)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if len(received) != chunks*chunkSize {
		t.Fatalf("client received %d of %d bytes", len(received), chunks*chunkSize)
	}

	clientUser.CloseWrite()
	result := testutil.RequireReceive(t, done, 5*time.Second, "session exit")
	if result.err != nil {
		t.Fatalf("Run: %v", result.err)
	}
}

func TestSessionIdleBothWaysTimesOut(t *testing.T) {
	_, clientSide := testutil.ConnPair(t)
	peerSide, _ := testutil.ConnPair(t)

	session, err := OpenSession(context.Background(), clientSide, SessionConfig{
		Dialer:      fixedDialer(peerSide),
		IdleTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	result := testutil.RequireReceive(t, runSession(context.Background(), session), 5*time.Second, "idle session exit")
	if !errors.Is(result.err, os.ErrDeadlineExceeded) {
		t.Fatalf("Run error = %v, want the idle deadline", result.err)
	}
}
