// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for forwarder packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang when a goroutine fails to report. They
// are the only place tests touch the wall clock.
//
// [EchoServer] and [PrefixServer] stand in for the upstream peer on the
// loopback interface. [ConnPair] returns both ends of a real TCP
// connection, which (unlike net.Pipe) supports CloseRead and CloseWrite.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
