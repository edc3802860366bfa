// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"sync/atomic"
)

// Stats counts connections and bytes for one Bridge. All methods are
// safe for concurrent use.
type Stats struct {
	accepted        atomic.Int64
	open            atomic.Int64
	rejected        atomic.Int64
	connectFailures atomic.Int64
	upstreamBytes   atomic.Int64
	downstreamBytes atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	// Accepted is the total number of client connections accepted.
	Accepted int64

	// Open is the number of sessions currently relaying.
	Open int64

	// Rejected counts clients closed by the session limit.
	Rejected int64

	// ConnectFailures counts clients whose peer dial failed.
	ConnectFailures int64

	// UpstreamBytes and DownstreamBytes total the bytes relayed
	// client->peer and peer->client by finished sessions.
	UpstreamBytes   int64
	DownstreamBytes int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted:        s.accepted.Load(),
		Open:            s.open.Load(),
		Rejected:        s.rejected.Load(),
		ConnectFailures: s.connectFailures.Load(),
		UpstreamBytes:   s.upstreamBytes.Load(),
		DownstreamBytes: s.downstreamBytes.Load(),
	}
}

// String renders "[open/accepted]".
func (s *Stats) String() string {
	return fmt.Sprintf("[%d/%d]", s.open.Load(), s.accepted.Load())
}

func (s *Stats) recordTransfer(transfer Transfer) {
	s.upstreamBytes.Add(transfer.Upstream)
	s.downstreamBytes.Add(transfer.Downstream)
}
