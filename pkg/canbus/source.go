// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package canbus provides sources of received CAN frames.
package canbus

import (
	"context"
	"io"
	"log/slog"
)

// FrameHandler receives one frame. It must not block; the return value
// reports whether the frame was accepted.
type FrameHandler func(id uint32, data []byte, length uint8) bool

// Source delivers received frames to a handler until its context ends or
// the source is exhausted.
type Source interface {
	Run(ctx context.Context, handle FrameHandler) error
	String() string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
