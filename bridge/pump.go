// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/forwarder/lib/netutil"
)

// DefaultBufferSize is the transfer chunk each Pump reads at a time.
const DefaultBufferSize = 1024

// readHalfCloser and writeHalfCloser are implemented by *net.TCPConn,
// *net.UnixConn, and *vsock.Conn.
type readHalfCloser interface {
	CloseRead() error
}

type writeHalfCloser interface {
	CloseWrite() error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Pump copies bytes from Source to Destination until Source reaches
// end-of-stream or either side fails.
//
// On end-of-stream the Pump shuts down the read half of Source and the
// write half of Destination and returns nil; the opposite direction
// keeps running. On any error it closes both Source and Destination
// and returns an error wrapping ErrTransfer (and ErrReset when the
// remote side aborted).
type Pump struct {
	Source      io.ReadCloser
	Destination io.WriteCloser

	// Direction labels errors ("upstream", "downstream").
	Direction string

	// BufferSize is the read chunk size. Zero means DefaultBufferSize.
	BufferSize int

	// IdleTimeout, when positive and Source supports read deadlines,
	// fails the Pump once nothing has been read for this long, counting
	// reads of the paired Pump when Activity is shared.
	IdleTimeout time.Duration

	// Activity holds the UnixNano time of the last successful read. The
	// two Pumps of a Session share one so that a one-way transfer keeps
	// the quiet direction alive. Nil means this Pump tracks only itself.
	Activity *atomic.Int64

	// OnFail, when set, receives the classified error before the Pump
	// closes both conns, so the caller can tell the failure that caused
	// a teardown from the ones it provoked.
	OnFail func(error)
}

// Run copies until end-of-stream or error and returns the number of
// bytes written to Destination.
func (p *Pump) Run() (int64, error) {
	size := p.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buffer := make([]byte, size)
	deadliner, _ := p.Source.(readDeadliner)

	// Socket deadlines are wall-clock.
	activity := p.Activity
	if activity == nil {
		activity = new(atomic.Int64)
	}
	activity.Store(time.Now().UnixNano()) //nolint:realclock

	var forwarded int64
	for {
		if p.IdleTimeout > 0 && deadliner != nil {
			deadliner.SetReadDeadline(time.Unix(0, activity.Load()).Add(p.IdleTimeout))
		}

		count, readError := p.Source.Read(buffer)
		if count > 0 {
			activity.Store(time.Now().UnixNano()) //nolint:realclock
			written, writeError := writeFull(p.Destination, buffer[:count])
			forwarded += int64(written)
			if writeError != nil {
				return forwarded, p.fail(writeError)
			}
		}

		if errors.Is(readError, io.EOF) {
			return forwarded, p.halfClose()
		}
		if readError != nil {
			if p.pairedActive(readError, activity) {
				continue
			}
			return forwarded, p.fail(readError)
		}
	}
}

// pairedActive reports whether err is an idle deadline that expired
// while the session as a whole was still moving bytes.
func (p *Pump) pairedActive(err error, activity *atomic.Int64) bool {
	if p.IdleTimeout <= 0 || !errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	return time.Since(time.Unix(0, activity.Load())) < p.IdleTimeout //nolint:realclock
}

// writeFull writes all of data, looping over short writes. A write that
// makes no progress without reporting an error fails with
// io.ErrShortWrite instead of spinning.
func writeFull(w io.Writer, data []byte) (int, error) {
	total := 0
	for len(data) > 0 {
		count, err := w.Write(data)
		total += count
		data = data[count:]
		if err != nil {
			return total, err
		}
		if count == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// halfClose propagates end-of-stream. A shutdown call that fails for a
// reason other than the conn already being gone means the destination
// is unusable, so the Pump fails closed.
func (p *Pump) halfClose() error {
	var readError, writeError error
	if closer, ok := p.Source.(readHalfCloser); ok {
		readError = closer.CloseRead()
	}
	if closer, ok := p.Destination.(writeHalfCloser); ok {
		writeError = closer.CloseWrite()
	}
	for _, err := range []error{writeError, readError} {
		if err != nil && !netutil.IsExpectedCloseError(err) {
			return p.fail(err)
		}
	}
	return nil
}

// fail classifies err, reports it through OnFail, and closes both conns.
func (p *Pump) fail(err error) error {
	if netutil.IsConnectionReset(err) {
		err = fmt.Errorf("%s: %w: %w: %w", p.Direction, ErrTransfer, ErrReset, err)
	} else {
		err = fmt.Errorf("%s: %w: %w", p.Direction, ErrTransfer, err)
	}
	if p.OnFail != nil {
		p.OnFail(err)
	}
	p.Source.Close()
	p.Destination.Close()
	return err
}
