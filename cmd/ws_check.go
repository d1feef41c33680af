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

var wsTestCmd = &cobra.Command{
	Use:   "ws_test",
	Short: "Test raw WebSocket connection stability",
	Long: `Test the WebSocket connection to a bridge.

This command connects and just listens, logging each message received along
with how many SLCAN lines it carried. Useful for debugging connection
stability issues.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runWsTest,
}

var wsTestDuration int

func init() {
	rootCmd.AddCommand(wsTestCmd)
	wsTestCmd.Flags().IntVar(&wsTestDuration, "duration", 30, "Test duration in seconds")
}

func runWsTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("WebSocket Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", wsTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(wsTestDuration) * time.Second)
	decoder := slcan.NewDecoder()
	bytesReceived := 0
	messagesReceived := 0
	framesReceived := 0
	malformedLines := 0

	printResults := func() {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Truncate(time.Millisecond))
		fmt.Printf("Messages received: %d\n", messagesReceived)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Frames decoded: %d\n", framesReceived)
		fmt.Printf("Malformed lines: %d\n", malformedLines)
	}

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			messagesReceived++
			frames, errs := decoder.Decode(data)
			framesReceived += len(frames)
			malformedLines += errs
			fmt.Printf("[%s] Received %d bytes (%d frames): %q\n",
				time.Now().Format("15:04:05.000"), len(data), len(frames), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			printResults()
			fmt.Printf("Result: FAILED (connection error)\n")
			conn.Close()
			os.Exit(1)

		case <-time.After(1 * time.Second):
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	printResults()
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}
