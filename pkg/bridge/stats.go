// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"fmt"
	"time"
)

// Stats is a snapshot of the bridge counters
type Stats struct {
	State        LinkState
	Sent         uint32 // transmit attempts, including incomplete lines
	Captured     uint64
	Dropped      uint64
	Malformed    uint64
	Incomplete   uint64
	BytesWritten uint64
	Pending      int
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		State:        b.State(),
		Sent:         b.sent.Load(),
		Captured:     b.captured.Load(),
		Dropped:      b.dropped.Load(),
		Malformed:    b.malformed.Load(),
		Incomplete:   b.incomplete.Load(),
		BytesWritten: b.bytesWritten.Load(),
		Pending:      b.queue.Len(),
	}
}

// MessagesSent returns the sent counter.
func (b *Bridge) MessagesSent() uint32 {
	return b.sent.Load()
}

func (s Stats) String() string {
	return fmt.Sprintf("state=%s captured=%d sent=%d dropped=%d incomplete=%d malformed=%d bytes=%d pending=%d",
		s.State, s.Captured, s.Sent, s.Dropped, s.Incomplete, s.Malformed, s.BytesWritten, s.Pending)
}

// Report logs the counters every interval until ctx ends. Frames dropped
// since the previous report are logged as a warning.
func (b *Bridge) Report(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s := b.Stats()
		if d := s.Dropped - lastDropped; d > 0 {
			b.logger.Warn("frame queue overflow", "dropped", d, "total_dropped", s.Dropped)
		}
		lastDropped = s.Dropped

		b.logger.Info("statistics",
			"state", s.State,
			"captured", s.Captured,
			"sent", s.Sent,
			"dropped", s.Dropped,
			"incomplete", s.Incomplete,
			"malformed", s.Malformed,
			"bytes", s.BytesWritten,
			"pending", s.Pending,
		)
	}
}
