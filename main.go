// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// canlink - CAN to serial SLCAN bridge
//
// Forwards frames received on a CAN bus to a host as SLCAN ASCII lines over
// a serial port or WebSocket, and decodes that stream on the host side.

package main

import (
	"os"

	"github.com/Thermoquad/canlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
