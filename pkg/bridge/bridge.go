// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge forwards captured CAN frames to a byte channel as SLCAN
// lines.
//
// Frames enter through OnFrame, which never blocks, and are handed to a
// single transmit task (Run) through a bounded queue. The task encodes each
// frame and writes it to the channel only while the host has signalled
// readiness with OnLineState.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/Thermoquad/canlink/pkg/ringbuf"
)

// DefaultQueueSize is the default queue arena size in bytes.
const DefaultQueueSize = 8192

// ErrAlreadyRunning is returned by Run when another transmit task is active.
var ErrAlreadyRunning = errors.New("bridge: transmit task already running")

// Config holds bridge settings
type Config struct {
	QueueSize int          // queue arena in bytes, DefaultQueueSize if zero
	Logger    *slog.Logger // discarded if nil
}

// Bridge is the shared state of one capture-to-channel pipeline.
type Bridge struct {
	ch     Channel
	queue  *ringbuf.Buffer
	logger *slog.Logger

	ready   atomic.Bool
	running atomic.Bool

	sent         atomic.Uint32 // transmit attempts, wraps
	captured     atomic.Uint64
	dropped      atomic.Uint64
	malformed    atomic.Uint64
	incomplete   atomic.Uint64
	bytesWritten atomic.Uint64
}

// New creates a bridge writing to ch.
func New(ch Channel, cfg Config) (*Bridge, error) {
	if ch == nil {
		return nil, errors.New("bridge: nil channel")
	}
	size := cfg.QueueSize
	if size == 0 {
		size = DefaultQueueSize
	}
	queue, err := ringbuf.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate frame queue of %d bytes: %w", size, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Bridge{
		ch:     ch,
		queue:  queue,
		logger: logger,
	}, nil
}

// Pending returns the number of frames waiting for the transmit task.
func (b *Bridge) Pending() int {
	return b.queue.Len()
}

// Idle reports whether every captured frame has been transmitted or
// discarded.
func (b *Bridge) Idle() bool {
	return b.queue.Empty()
}
