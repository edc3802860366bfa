// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"net"
	"strconv"
	"testing"
)

// EchoServer listens on an ephemeral loopback port and echoes back
// everything each connection sends. Returns the port. The listener is
// closed when the test completes.
func EchoServer(t *testing.T) int {
	t.Helper()
	return serve(t, func(connection net.Conn) {
		io.Copy(connection, connection)
	})
}

// PrefixServer listens on an ephemeral loopback port, reads each
// connection to EOF, writes prefix followed by the data, and then
// closes its write side. A client only gets a reply if its own
// half-close reached the server. Returns the port.
func PrefixServer(t *testing.T, prefix string) int {
	t.Helper()
	return serve(t, func(connection net.Conn) {
		data, err := io.ReadAll(connection)
		if err != nil {
			return
		}
		connection.Write(append([]byte(prefix), data...))
		connection.(*net.TCPConn).CloseWrite()
	})
}

// ListenLoopback binds an ephemeral loopback TCP port and closes it at
// the end of the test.
func ListenLoopback(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen on loopback: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener
}

// Port returns the TCP port of a listener address.
func Port(t *testing.T, address net.Addr) int {
	t.Helper()
	_, port, err := net.SplitHostPort(address.String())
	if err != nil {
		t.Fatalf("split %q: %v", address, err)
	}
	number, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port %q: %v", port, err)
	}
	return number
}

// ConnPair returns the two ends of a loopback TCP connection. Both are
// closed when the test completes.
func ConnPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()
	listener := ListenLoopback(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		connection, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- connection
	}()

	dialed, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial loopback: %v", err)
	}
	t.Cleanup(func() { dialed.Close() })

	other, ok := <-accepted
	if !ok {
		t.Fatalf("accept on loopback failed")
	}
	t.Cleanup(func() { other.Close() })

	return dialed.(*net.TCPConn), other.(*net.TCPConn)
}

func serve(t *testing.T, handle func(net.Conn)) int {
	t.Helper()
	listener := ListenLoopback(t)
	go func() {
		for {
			connection, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer connection.Close()
				handle(connection)
			}()
		}
	}()
	return Port(t, listener.Addr())
}
