// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ringbuf implements a fixed-size byte ring buffer for handing
// variable-length items from a single producer to a single consumer.
//
// Items are copied into the arena by Send and never split across the end of
// the arena. Receive hands out a view into the arena; the storage stays
// reserved until the item is given back with Return.
package ringbuf

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// Item header layout: uint32 payload length, uint32 flags
const (
	headerSize = 8
	alignment  = 4
)

const (
	flagWrap     uint32 = 1 << 0 // padding up to the end of the arena
	flagReturned uint32 = 1 << 1 // storage may be reclaimed
)

// ErrSizeTooSmall is returned by New when the arena cannot hold a single item.
var ErrSizeTooSmall = errors.New("ringbuf: size too small")

// Item is a received entry. Data aliases arena storage and is only valid
// until the item is returned.
type Item struct {
	Data []byte
	off  int
}

// Buffer is a no-split ring buffer. Send never blocks; Receive blocks until an
// item arrives or its context ends.
type Buffer struct {
	mu      sync.Mutex
	buf     []byte
	write   int // offset of the next Send
	read    int // offset of the next Receive
	free    int // offset of the oldest item not yet reclaimed
	used    int // reserved bytes, including wrap padding
	pending int // items sent but not yet received
	notify  chan struct{}
}

// New allocates a buffer with an arena of size bytes, rounded down to a
// multiple of 4.
func New(size int) (*Buffer, error) {
	size -= size % alignment
	if size < headerSize+alignment {
		return nil, ErrSizeTooSmall
	}
	return &Buffer{
		buf:    make([]byte, size),
		notify: make(chan struct{}, 1),
	}, nil
}

func slotSize(n int) int {
	return headerSize + (n+alignment-1)/alignment*alignment
}

// Cap returns the arena size in bytes.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Send copies data into the arena. It returns false without blocking when
// there is no contiguous space large enough for the item.
func (b *Buffer) Send(data []byte) bool {
	size := slotSize(len(data))

	b.mu.Lock()
	off, ok := b.reserve(size)
	if !ok {
		b.mu.Unlock()
		return false
	}
	binary.LittleEndian.PutUint32(b.buf[off:], uint32(len(data)))
	binary.LittleEndian.PutUint32(b.buf[off+4:], 0)
	copy(b.buf[off+headerSize:], data)
	b.pending++
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// reserve claims size contiguous bytes. Caller holds mu.
func (b *Buffer) reserve(size int) (int, bool) {
	n := len(b.buf)
	if b.used == 0 {
		b.write, b.read, b.free = 0, 0, 0
	}

	if b.write < b.free || b.used == n {
		if size > b.free-b.write {
			return 0, false
		}
		off := b.write
		b.advanceWrite(size)
		return off, true
	}

	tail := n - b.write
	if size <= tail {
		off := b.write
		b.advanceWrite(size)
		return off, true
	}
	if size > b.free {
		return 0, false
	}

	// Pad out the tail so the item starts at the beginning of the arena.
	if tail >= headerSize {
		binary.LittleEndian.PutUint32(b.buf[b.write:], 0)
		binary.LittleEndian.PutUint32(b.buf[b.write+4:], flagWrap)
	}
	b.used += tail
	b.write = 0
	b.advanceWrite(size)
	return 0, true
}

func (b *Buffer) advanceWrite(size int) {
	b.write += size
	b.used += size
	if b.write == len(b.buf) {
		b.write = 0
	}
}

// skipWrap returns the offset of the item at pos, following wrap padding.
func (b *Buffer) skipWrap(pos int) int {
	if len(b.buf)-pos < headerSize {
		return 0
	}
	if binary.LittleEndian.Uint32(b.buf[pos+4:])&flagWrap != 0 {
		return 0
	}
	return pos
}

func (b *Buffer) acquire() (Item, bool) {
	if b.pending == 0 {
		return Item{}, false
	}
	off := b.skipWrap(b.read)
	length := int(binary.LittleEndian.Uint32(b.buf[off:]))
	start := off + headerSize
	item := Item{Data: b.buf[start : start+length : start+length], off: off}

	b.read = off + slotSize(length)
	if b.read == len(b.buf) {
		b.read = 0
	}
	b.pending--
	return item, true
}

// Receive waits for the next item. It returns false if ctx ends first; a
// context without deadline waits indefinitely.
func (b *Buffer) Receive(ctx context.Context) (Item, bool) {
	for {
		b.mu.Lock()
		item, ok := b.acquire()
		b.mu.Unlock()
		if ok {
			return item, true
		}

		select {
		case <-ctx.Done():
			return Item{}, false
		case <-b.notify:
		}
	}
}

// ReceiveTimeout waits up to d for the next item.
func (b *Buffer) ReceiveTimeout(d time.Duration) (Item, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return b.Receive(ctx)
}

// Return gives an item's storage back to the arena. Storage is reclaimed in
// FIFO order, once every earlier item has been returned too. Each item must be
// returned exactly once.
func (b *Buffer) Return(item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()

	flags := binary.LittleEndian.Uint32(b.buf[item.off+4:])
	binary.LittleEndian.PutUint32(b.buf[item.off+4:], flags|flagReturned)

	n := len(b.buf)
	for b.used > 0 {
		// The reader has not passed this slot yet, padding included.
		if b.free == b.read && b.pending > 0 {
			break
		}
		if n-b.free < headerSize {
			b.used -= n - b.free
			b.free = 0
			continue
		}
		flags := binary.LittleEndian.Uint32(b.buf[b.free+4:])
		if flags&flagWrap != 0 {
			b.used -= n - b.free
			b.free = 0
			continue
		}
		if flags&flagReturned == 0 {
			break
		}
		size := slotSize(int(binary.LittleEndian.Uint32(b.buf[b.free:])))
		b.used -= size
		b.free += size
		if b.free == n {
			b.free = 0
		}
	}
}

// Len returns the number of items waiting to be received.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Empty reports whether every sent item has been received and returned.
func (b *Buffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used == 0
}

// Free returns the largest payload a Send could currently accept.
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.buf)
	var space int
	switch {
	case b.used == 0:
		space = n
	case b.write < b.free || b.used == n:
		space = b.free - b.write
	default:
		space = max(n-b.write, b.free)
	}
	if space < headerSize {
		return 0
	}
	return space - headerSize
}
