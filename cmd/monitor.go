// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

var (
	monitorTUI           bool
	monitorRecord        string
	monitorStatsInterval time.Duration
	monitorCandump       bool
	monitorInterface     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and display SLCAN frames from a bridge",
	Long: `Connect to a bridge and display every received frame.

On a serial connection DTR and RTS are asserted, which tells the bridge the
host is ready. Malformed lines are reported and counted in the statistics.

Use --record to save frames to a CBOR capture that 'bridge --replay' can
play back, and --candump to print lines in candump log format.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use terminal UI")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Record frames to a CBOR capture file")
	monitorCmd.Flags().DurationVar(&monitorStatsInterval, "stats-interval", 10*time.Second, "Statistics interval, text mode (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorCandump, "candump", false, "Print frames in candump log format")
	monitorCmd.Flags().StringVar(&monitorInterface, "iface", "slcan0", "Interface name used in candump output")
}

// frameEvent is one decoded line from the reader goroutine
type frameEvent struct {
	frame     *slcan.Frame
	decodeErr error
	raw       string
	at        time.Time
}

// readFrames decodes the connection until it fails or done is closed
func readFrames(conn Connection, events chan<- frameEvent, errs chan<- error, done <-chan struct{}) {
	decoder := slcan.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case errs <- err:
			case <-done:
			}
			return
		}
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr == nil && frame == nil {
				continue
			}
			ev := frameEvent{
				frame:     frame,
				decodeErr: decodeErr,
				raw:       string(decoder.GetRawBytes()),
				at:        time.Now(),
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}
}

// openRecorder creates the capture file when --record is set
func openRecorder() (*slcan.CaptureWriter, func() error, error) {
	if monitorRecord == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Create(monitorRecord)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return slcan.NewCaptureWriter(f), f.Close, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	recorder, closeRecorder, err := openRecorder()
	if err != nil {
		return err
	}
	defer closeRecorder()

	events := make(chan frameEvent, 64)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readFrames(conn, events, errs, done)

	if monitorTUI {
		return runMonitorTUI(connInfo, recorder, events, errs, done)
	}
	return runMonitorText(connInfo, recorder, events, errs)
}

func runMonitorText(connInfo string, recorder *slcan.CaptureWriter, events <-chan frameEvent, errs <-chan error) error {
	fmt.Printf("canlink - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if recorder != nil {
		fmt.Printf("Recording: %s\n", monitorRecord)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	idColor := color.New(color.FgCyan, color.Bold)
	errColor := color.New(color.FgRed, color.Bold)

	stats := slcan.NewStatistics()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var statsTick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(monitorStatsInterval)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	for {
		select {
		case ev := <-events:
			stats.Update(ev.frame, ev.decodeErr)
			if ev.decodeErr != nil {
				fmt.Printf("[%s] %s %v (%q)\n", ev.at.Format("15:04:05.000"), errColor.Sprint("ERROR"), ev.decodeErr, ev.raw)
				continue
			}

			if recorder != nil {
				if err := recorder.WriteFrame(*ev.frame, ev.at); err != nil {
					return err
				}
			}

			if monitorCandump {
				fmt.Println(slcan.FormatCandump(*ev.frame, ev.at, monitorInterface))
				continue
			}
			fmt.Printf("[%s] %s [%d] %s\n",
				ev.at.Format("15:04:05.000"),
				idColor.Sprintf("%08X", ev.frame.ID),
				ev.frame.Length,
				slcan.FormatHex(ev.frame.Payload()))

		case <-statsTick:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-errs:
			fmt.Println()
			fmt.Print(stats.String())
			if errors.Is(err, ErrConnectionClosed) {
				slog.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)

		case <-sigs:
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}

func runMonitorTUI(connInfo string, recorder *slcan.CaptureWriter, events <-chan frameEvent, errs <-chan error, done <-chan struct{}) error {
	p := tea.NewProgram(newMonitorModel(connInfo, monitorRecord), tea.WithAltScreen())

	go forwardFrames(p, recorder, events, errs, done)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// forwardFrames feeds reader events to the TUI until the reader fails or
// done is closed
func forwardFrames(p *tea.Program, recorder *slcan.CaptureWriter, events <-chan frameEvent, errs <-chan error, done <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			if recorder != nil && ev.frame != nil {
				if err := recorder.WriteFrame(*ev.frame, ev.at); err != nil {
					p.Send(connErrMsg{err: err})
					return
				}
			}
			p.Send(frameMsg(ev))
		case err := <-errs:
			p.Send(connErrMsg{err: err})
			return
		case <-done:
			return
		}
	}
}
