// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package canbus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"go.einride.tech/can/pkg/socketcan"
)

// SocketCAN receives frames from a Linux CAN network interface. The
// interface must already be up with its bitrate configured.
type SocketCAN struct {
	Interface string
	Logger    *slog.Logger
}

// NewSocketCAN creates a source on iface (can0, vcan0, ...)
func NewSocketCAN(iface string, logger *slog.Logger) *SocketCAN {
	if logger == nil {
		logger = discardLogger()
	}
	return &SocketCAN{Interface: iface, Logger: logger}
}

func (s *SocketCAN) String() string {
	return "socketcan:" + s.Interface
}

// Run receives data frames until ctx ends. Remote and error frames are
// skipped.
func (s *SocketCAN) Run(ctx context.Context, handle FrameHandler) error {
	conn, err := socketcan.DialContext(ctx, "can", s.Interface)
	if err != nil {
		return fmt.Errorf("failed to open CAN interface %s: %w", s.Interface, err)
	}
	rx := socketcan.NewReceiver(conn)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			rx.Close()
		case <-stop:
		}
	}()

	s.Logger.Info("receiving from CAN interface", "interface", s.Interface)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var errorFrames uint64
	for rx.Receive() {
		if rx.HasErrorFrame() {
			errorFrames++
			s.Logger.Debug("bus error frame", "frame", rx.ErrorFrame(), "total", errorFrames)
			continue
		}
		f := rx.Frame()
		if f.IsRemote {
			continue
		}
		handle(f.ID, f.Data[:f.Length], f.Length)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := rx.Err(); err != nil {
		return fmt.Errorf("CAN receive on %s failed: %w", s.Interface, err)
	}
	rx.Close()
	return nil
}
