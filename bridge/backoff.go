// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/bureau-foundation/forwarder/lib/clock"
)

// Backoff is explicit retry state: how many consecutive failures have
// happened and when the next attempt may start. Failure pushes the
// deadline out, Success clears it, and Wait blocks until the deadline
// or until the context is done. Safe for concurrent use.
type Backoff struct {
	clock clock.Clock

	mu     sync.Mutex
	delays backoff.Backoff
	next   time.Time
}

// NewBackoff returns a Backoff that waits base after every failure, or
// doubles from base up to ceiling when ceiling > base.
func NewBackoff(c clock.Clock, base, ceiling time.Duration) *Backoff {
	return &Backoff{
		clock: c,
		delays: backoff.Backoff{
			Min:    base,
			Max:    max(ceiling, base),
			Factor: 2,
		},
	}
}

// Failure records a failed attempt and returns the delay before the
// next one.
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	delay := b.delays.Duration()
	b.next = b.clock.Now().Add(delay)
	return delay
}

// Success clears the failure count and deadline.
func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays.Reset()
	b.next = time.Time{}
}

// Attempts returns the number of consecutive failures.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.delays.Attempt())
}

// Deadline returns the earliest time the next attempt may start. The
// zero time means immediately.
func (b *Backoff) Deadline() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Wait blocks until the deadline passes or ctx is done, returning
// ctx.Err() in the latter case. It returns at once when no failure is
// pending.
func (b *Backoff) Wait(ctx context.Context) error {
	deadline := b.Deadline()
	if deadline.IsZero() {
		return ctx.Err()
	}
	remaining := deadline.Sub(b.clock.Now())
	if remaining <= 0 {
		return ctx.Err()
	}
	select {
	case <-b.clock.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
