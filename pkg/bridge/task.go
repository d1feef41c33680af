// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

// Run is the transmit task. It takes frames from the queue in order, encodes
// them and transmits each line, returning every item to the queue once it is
// handled. Run returns ctx.Err() when ctx ends; only one Run may be active
// per bridge.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	b.logger.Debug("transmit task started", "queue_bytes", b.queue.Cap())
	line := make([]byte, 0, slcan.MaxLineLength)

	for {
		item, ok := b.queue.Receive(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				b.logger.Debug("transmit task stopped", "reason", err)
				return err
			}
			continue
		}

		if len(item.Data) == 0 {
			b.malformed.Add(1)
			b.queue.Return(item)
			continue
		}

		frame, err := slcan.UnmarshalRecord(item.Data)
		if err != nil {
			b.malformed.Add(1)
			b.logger.Debug("discarding queued record", "error", err)
			b.queue.Return(item)
			continue
		}

		line = slcan.AppendFrame(line[:0], frame)
		b.Transmit(line)
		b.queue.Return(item)
	}
}
