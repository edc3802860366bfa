// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that retry and
// backoff logic can be tested without sleeping.
//
// Production code holds a [Clock] field initialized with [Real]. Tests
// inject [Fake] and drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	b := &bridge.Bridge{Clock: c, ...}
//	// ... trigger a retry ...
//	c.WaitForTimers(1)          // the retry goroutine is now waiting
//	c.Advance(5 * time.Second)  // release it deterministically
//
// Only the operations the forwarder needs are abstracted: reading the
// current time and waiting for a duration.
package clock
