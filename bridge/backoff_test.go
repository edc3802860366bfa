// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/forwarder/lib/clock"
	"github.com/bureau-foundation/forwarder/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBackoffFixedDelay(t *testing.T) {
	backoff := NewBackoff(clock.Fake(epoch), 5*time.Second, 0)
	for attempt := 1; attempt <= 3; attempt++ {
		if delay := backoff.Failure(); delay != 5*time.Second {
			t.Fatalf("attempt %d: delay = %v, want 5s", attempt, delay)
		}
	}
	if backoff.Attempts() != 3 {
		t.Fatalf("Attempts() = %d, want 3", backoff.Attempts())
	}
}

func TestBackoffExponentialCapped(t *testing.T) {
	backoff := NewBackoff(clock.Fake(epoch), time.Second, 5*time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if delay := backoff.Failure(); delay != expected {
			t.Fatalf("failure %d: delay = %v, want %v", i+1, delay, expected)
		}
	}
	backoff.Success()
	if backoff.Attempts() != 0 || !backoff.Deadline().IsZero() {
		t.Fatalf("after Success: Attempts() = %d, Deadline() = %v; want 0 and zero time", backoff.Attempts(), backoff.Deadline())
	}
	if delay := backoff.Failure(); delay != time.Second {
		t.Fatalf("delay after Success = %v, want 1s", delay)
	}
}

func TestBackoffWaitWithoutFailureReturnsImmediately(t *testing.T) {
	fake := clock.Fake(epoch)
	backoff := NewBackoff(fake, time.Second, 0)
	if err := backoff.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if fake.Pending() != 0 {
		t.Fatalf("Wait registered %d timers, want 0", fake.Pending())
	}
}

func TestBackoffWaitUntilDeadline(t *testing.T) {
	fake := clock.Fake(epoch)
	backoff := NewBackoff(fake, 5*time.Second, 0)
	backoff.Failure()
	if want := epoch.Add(5 * time.Second); !backoff.Deadline().Equal(want) {
		t.Fatalf("Deadline() = %v, want %v", backoff.Deadline(), want)
	}

	done := make(chan error, 1)
	go func() { done <- backoff.Wait(context.Background()) }()

	fake.WaitForTimers(1)
	fake.Advance(4 * time.Second)
	select {
	case <-done:
		t.Fatal("Wait returned before the deadline")
	default:
	}
	fake.Advance(time.Second)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Wait after deadline"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestBackoffWaitCancelled(t *testing.T) {
	fake := clock.Fake(epoch)
	backoff := NewBackoff(fake, time.Minute, 0)
	backoff.Failure()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- backoff.Wait(ctx) }()

	fake.WaitForTimers(1)
	cancel()
	err := testutil.RequireReceive(t, done, 5*time.Second, "Wait after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait error = %v, want context.Canceled", err)
	}
}
