// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

var (
	waitTimeout int
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Test connection by waiting for a valid SLCAN frame",
	Long: `Wait for a valid SLCAN frame on the connection until timeout.

This command connects to a serial port or WebSocket, signals readiness to the
bridge, and waits for any complete frame line. Malformed lines are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful in scripts that need the bridge and bus to be live.`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runWait(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("canlink - Wait\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitTimeout)
	fmt.Printf("Waiting for valid SLCAN frame...\n\n")

	decoder := slcan.NewDecoder()
	buf := make([]byte, 128)

	frameChan := make(chan *slcan.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		malformed := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					malformed++
					continue
				}
				if frame != nil {
					if malformed > 0 {
						fmt.Printf("(skipped %d malformed lines before sync)\n", malformed)
					}
					frameChan <- frame
					return
				}
			}
		}
	}()

	select {
	case frame := <-frameChan:
		conn.Close()
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  ID: 0x%08X\n", frame.ID)
		fmt.Printf("  Length: %d bytes\n", frame.Length)
		fmt.Printf("  Data: %s\n", slcan.FormatHex(frame.Payload()))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		conn.Close()
		os.Exit(2)

	case <-time.After(time.Duration(waitTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", waitTimeout)
		conn.Close()
		os.Exit(1)
	}

	return nil
}
