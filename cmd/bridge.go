// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/canlink/pkg/bridge"
	"github.com/Thermoquad/canlink/pkg/canbus"
	"github.com/Thermoquad/canlink/pkg/link"
)

var (
	bridgeCAN           string
	bridgeReplay        string
	bridgeRate          int
	bridgeLoop          bool
	bridgeProgress      bool
	bridgeQueueSize     int
	bridgeListen        string
	bridgePath          string
	bridgePollInterval  time.Duration
	bridgeStatsInterval time.Duration
	bridgeOpenRetries   uint
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward CAN frames to a serial port or WebSocket client as SLCAN",
	Long: `Receive CAN frames and forward each one as an SLCAN line.

Frame source:
  --can can0            SocketCAN interface (default)
  --replay bus.log      candump log, or a .cbor capture from 'monitor --record'

Output channel:
  --port /dev/ttyGS0    serial device; frames are sent while the host
                        asserts DTR and RTS (seen here as DSR and CTS)
  --listen :8080        WebSocket server on --path; frames are sent while
                        a client is connected

Frames arriving while the host is not ready are discarded. When the queue
is full, new frames are dropped and reported in the periodic statistics.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeCAN, "can", "can0", "SocketCAN interface")
	bridgeCmd.Flags().StringVar(&bridgeReplay, "replay", "", "Replay a candump log or CBOR capture instead of reading a CAN interface")
	bridgeCmd.Flags().IntVar(&bridgeRate, "rate", 0, "Replay rate in frames/sec (0 = unlimited)")
	bridgeCmd.Flags().BoolVar(&bridgeLoop, "loop", false, "Restart the replay file at end")
	bridgeCmd.Flags().BoolVar(&bridgeProgress, "progress", false, "Show replay progress")
	bridgeCmd.Flags().IntVar(&bridgeQueueSize, "queue-size", bridge.DefaultQueueSize, "Frame queue size in bytes")
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "Serve SLCAN over WebSocket on this address instead of --port")
	bridgeCmd.Flags().StringVar(&bridgePath, "path", link.DefaultWebSocketPath, "WebSocket endpoint path")
	bridgeCmd.Flags().DurationVar(&bridgePollInterval, "poll-interval", 50*time.Millisecond, "Modem line poll interval (serial only)")
	bridgeCmd.Flags().DurationVar(&bridgeStatsInterval, "stats-interval", 10*time.Second, "Statistics log interval (0 disables)")
	bridgeCmd.Flags().UintVar(&bridgeOpenRetries, "open-retries", 10, "Serial open attempts")
}

func frameSource(logger *slog.Logger) canbus.Source {
	if bridgeReplay != "" {
		return &canbus.Replay{
			Path:     bridgeReplay,
			Rate:     bridgeRate,
			Loop:     bridgeLoop,
			Progress: bridgeProgress,
			Logger:   logger,
		}
	}
	return canbus.NewSocketCAN(bridgeCAN, logger)
}

// waitIdle blocks until the bridge queue is drained or ctx ends
func waitIdle(ctx context.Context, b *bridge.Bridge) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !b.Idle() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := frameSource(logger)
	cfg := bridge.Config{QueueSize: bridgeQueueSize, Logger: logger}

	var b *bridge.Bridge
	var readiness func(ctx context.Context) error
	var output string

	switch {
	case bridgeListen != "":
		server := link.NewWebSocketServer(link.WebSocketConfig{
			Username:    wsUsername,
			Password:    os.Getenv(passwordEnv),
			OnLineState: func(dtr, rts bool) { b.OnLineState(dtr, rts) },
			Logger:      logger,
		})
		var err error
		if b, err = bridge.New(server, cfg); err != nil {
			return err
		}
		readiness = func(ctx context.Context) error {
			return server.ListenAndServe(ctx, bridgeListen, bridgePath)
		}
		output = fmt.Sprintf("WebSocket: %s%s", bridgeListen, bridgePath)

	case portName != "":
		ch, err := link.OpenSerial(ctx, portName, baudRate, bridgeOpenRetries, logger)
		if err != nil {
			return err
		}
		defer ch.Close()
		if b, err = bridge.New(ch, cfg); err != nil {
			return err
		}
		readiness = func(ctx context.Context) error {
			return link.WatchModemLines(ctx, ch.Port(), bridgePollInterval, b.OnLineState, logger)
		}
		output = fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)

	default:
		return fmt.Errorf("either --port or --listen must be specified")
	}

	fmt.Printf("canlink - Bridge\n")
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Output: %s\n", output)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Run(gctx)
	})

	g.Go(func() error {
		if err := source.Run(gctx, b.OnFrame); err != nil {
			return err
		}
		logger.Info("frame source finished, draining queue", "source", source.String())
		waitIdle(gctx, b)
		cancel()
		return nil
	})

	g.Go(func() error {
		return readiness(gctx)
	})

	if bridgeStatsInterval > 0 {
		g.Go(func() error {
			return b.Report(gctx, bridgeStatsInterval)
		})
	}

	err := g.Wait()
	fmt.Printf("\n%s\n", b.Stats())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
