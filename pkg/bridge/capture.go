// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "github.com/Thermoquad/canlink/pkg/slcan"

// OnFrame enqueues a received frame. It is called from the frame source's
// receive context and never blocks: when the queue is full the frame is
// counted as dropped and false is returned.
//
// At most min(length, len(data), 8) bytes are queued.
func (b *Bridge) OnFrame(id uint32, data []byte, length uint8) bool {
	var rec [slcan.RecordSize]byte
	slcan.PutRecord(rec[:], id, data, length)

	if !b.queue.Send(rec[:]) {
		b.dropped.Add(1)
		return false
	}
	b.captured.Add(1)
	return true
}
