// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the forwarder.
//
// Configuration is loaded from the single file named by the --config
// flag (via [LoadFile]). There is no automatic file search and no
// environment override. Command-line arguments override file values;
// the file overrides [Default].
//
// String fields listen.address and remote.host accept ${VAR} and
// ${VAR:-default} expansion so one file can serve several enclaves.
//
// Key exports:
//
//   - [Config] -- listen, remote, transport, limits, backoff, logging
//   - [Default] -- the original fixed behaviour: 1 KiB chunks, 5s
//     rebind backoff, 1s handoff backoff, no limits
//   - [LoadFile] -- reads a file over [Default]
//
// This package depends on no other forwarder packages.
package config
