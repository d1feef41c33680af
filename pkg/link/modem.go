// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// ModemStatusReader is implemented by serial.Port
type ModemStatusReader interface {
	GetModemStatusBits() (*serial.ModemStatusBits, error)
}

// WatchModemLines polls the port's DSR and CTS inputs every interval and
// reports them to fn as the host's DTR and RTS. fn is called once with the
// initial state and then on every change. A failed poll reports both lines
// low. WatchModemLines returns nil when ctx ends.
func WatchModemLines(ctx context.Context, port ModemStatusReader, interval time.Duration, fn LineStateFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	first := true
	var lastDTR, lastRTS bool
	var pollFailed bool
	for {
		var dtr, rts bool
		bits, err := port.GetModemStatusBits()
		if err != nil {
			if !pollFailed {
				logger.Warn("modem status poll failed", "error", err)
			}
			pollFailed = true
		} else {
			if pollFailed {
				logger.Info("modem status poll recovered")
			}
			pollFailed = false
			dtr, rts = bits.DSR, bits.CTS
		}

		if first || dtr != lastDTR || rts != lastRTS {
			first = false
			lastDTR, lastRTS = dtr, rts
			fn(dtr, rts)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
