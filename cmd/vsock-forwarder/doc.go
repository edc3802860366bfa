// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Vsock-forwarder accepts TCP connections on a local address and relays
// each one to a fixed peer on the hypervisor channel (AF_VSOCK), so that
// ordinary TCP clients on the host can reach a service inside an
// enclave or VM.
//
// The four positional arguments name the endpoint; flags and an
// optional YAML file tune limits, backoff, and logging. It runs until
// SIGINT or SIGTERM.
package main
