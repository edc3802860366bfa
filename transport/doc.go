// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens the upstream half of a forwarded connection.
//
// The forwarder relays every accepted client to one fixed [Peer],
// addressed the way the hypervisor/guest stream channel addresses
// things: a numeric context id (CID) and a port. [Dialer] is the single
// abstraction the bridge depends on.
//
// [VsockDialer] is the production implementation and opens AF_VSOCK
// stream sockets with github.com/mdlayher/vsock. [LoopbackDialer]
// ignores the context id and dials the peer port on a TCP host
// instead, which lets the whole forwarder run on a development machine
// (or in tests) with an ordinary TCP service standing in for the
// enclave. [DialerFunc] adapts a plain function.
//
// [ParseContextID] accepts either a decimal CID or one of the reserved
// names "hypervisor", "local", and "host".
package transport
