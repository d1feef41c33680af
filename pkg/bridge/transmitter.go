// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "runtime"

// Channel is the outbound byte channel.
type Channel interface {
	// Write queues as many bytes of p as the channel can accept right now
	// and returns that count, which may be zero.
	Write(p []byte) (int, error)
	// Flush pushes queued bytes towards the host.
	Flush() error
}

// Transmit writes line to the channel while the host is ready, flushing
// after every partial write. It stops as soon as readiness drops, leaving
// the rest of the line unsent, and returns the number of bytes written.
//
// The sent counter is incremented for every call, whether or not the whole
// line went out.
func (b *Bridge) Transmit(line []byte) int {
	written := 0
	for written < len(line) && b.ready.Load() {
		n, err := b.ch.Write(line[written:])
		written += n
		if err != nil {
			b.logger.Warn("channel write failed", "error", err, "written", written, "line_bytes", len(line))
			break
		}
		if err := b.ch.Flush(); err != nil {
			b.logger.Warn("channel flush failed", "error", err)
		}
		if n == 0 {
			runtime.Gosched()
		}
	}

	b.bytesWritten.Add(uint64(written))
	if written < len(line) {
		b.incomplete.Add(1)
	}
	b.sent.Add(1)
	return written
}
