// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link provides the outbound channels a bridge writes to and the
// host readiness signals that gate them.
package link

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
)

// LineStateFunc receives the host's DTR and RTS state.
type LineStateFunc func(dtr, rts bool)

// openPort is replaced in tests
var openPort = serial.Open

// openRetryDelay is the pause between open attempts
var openRetryDelay = 500 * time.Millisecond

// SerialChannel writes to a serial device such as a USB CDC ACM gadget.
type SerialChannel struct {
	port serial.Port
	name string
}

// OpenSerial opens name at baud, retrying up to attempts times since USB
// serial devices may enumerate after the process starts.
func OpenSerial(ctx context.Context, name string, baud int, attempts uint, logger *slog.Logger) (*SerialChannel, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if attempts == 0 {
		attempts = 1
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	var port serial.Port
	err := retry.Do(func() error {
		p, err := openPort(name, mode)
		if err != nil {
			return err
		}
		port = p
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(openRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("serial open failed, retrying", "port", name, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	logger.Info("serial port open", "port", name, "baud", baud)
	return &SerialChannel{port: port, name: name}, nil
}

func (s *SerialChannel) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Flush waits until written bytes have left the driver's output buffer
func (s *SerialChannel) Flush() error {
	return s.port.Drain()
}

func (s *SerialChannel) Close() error {
	return s.port.Close()
}

// Port returns the underlying serial port
func (s *SerialChannel) Port() serial.Port {
	return s.port
}

func (s *SerialChannel) String() string {
	return "serial:" + s.name
}
