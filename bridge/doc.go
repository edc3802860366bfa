// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge relays TCP clients to a single peer on the
// hypervisor/guest stream channel.
//
// An enclave has no network interface of its own. Everything it talks
// to (and everything that talks to it) goes through vsock. The bridge
// listens on a local TCP address and, for every accepted client, opens
// one vsock connection to the fixed peer and copies bytes both ways
// until both directions finish. The byte stream is never inspected or
// altered.
//
// Three layers, leaves first:
//
//   - [Pump] copies one direction: read up to a fixed chunk, write all
//     of it, repeat. On end-of-stream it half-closes (CloseRead on the
//     source, CloseWrite on the destination) so the opposite direction
//     keeps flowing. On any error it closes both conns.
//   - [Session] owns one client conn and one peer conn and runs two
//     Pumps. It ends when both Pumps have returned.
//   - [Bridge] owns the listening socket. Accepts never wait on session
//     I/O. A transient accept error is retried after a short backoff; a
//     dead listener is closed and re-bound after a longer one. A peer
//     that cannot be reached costs only that client its connection, and
//     the next dial waits out a short backoff.
//
// Errors are classified with the sentinels [ErrBind], [ErrAccept],
// [ErrConnect], [ErrTransfer], [ErrReset], and [ErrSessionLimit]; use
// errors.Is. Nothing that happens inside one Session affects another
// Session or the listener.
//
// [Limits] adds optional admission control (concurrent session cap,
// accept rate) and idle/dial timeouts. The zero value keeps the
// unbounded, no-timeout behavior.
package bridge
