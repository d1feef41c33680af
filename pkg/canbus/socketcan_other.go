// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package canbus

import (
	"context"
	"errors"
	"log/slog"
)

// SocketCAN is only available on Linux
type SocketCAN struct {
	Interface string
	Logger    *slog.Logger
}

// NewSocketCAN creates a source on iface
func NewSocketCAN(iface string, logger *slog.Logger) *SocketCAN {
	return &SocketCAN{Interface: iface, Logger: logger}
}

func (s *SocketCAN) String() string {
	return "socketcan:" + s.Interface
}

// Run always fails on this platform
func (s *SocketCAN) Run(ctx context.Context, handle FrameHandler) error {
	return errors.New("socketcan is only supported on linux")
}
