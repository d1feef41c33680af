// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/ratelimit"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

// Replay plays back a recorded log. Files ending in .cbor are read as CBOR
// capture files, anything else as candump text logs.
type Replay struct {
	Path     string
	Rate     int  // frames per second, 0 for unlimited
	Loop     bool // restart at end of file until ctx ends
	Progress bool // show a progress bar on stderr
	Logger   *slog.Logger
}

// ReplayStats counts the outcome of one pass over the log
type ReplayStats struct {
	Frames    uint64
	Dropped   uint64 // rejected by the handler
	Malformed uint64 // unparseable lines
}

func (r *Replay) String() string {
	return "replay:" + r.Path
}

func (r *Replay) logger() *slog.Logger {
	if r.Logger == nil {
		return discardLogger()
	}
	return r.Logger
}

// Run plays the file through handle. Without Loop it returns nil after one
// pass.
func (r *Replay) Run(ctx context.Context, handle FrameHandler) error {
	limiter := ratelimit.NewUnlimited()
	if r.Rate > 0 {
		limiter = ratelimit.New(r.Rate)
	}

	for pass := 1; ; pass++ {
		stats, err := r.play(ctx, handle, limiter)
		if err != nil {
			return err
		}
		r.logger().Info("replay pass complete",
			"file", r.Path,
			"pass", pass,
			"frames", stats.Frames,
			"dropped", stats.Dropped,
			"malformed", stats.Malformed,
		)
		if !r.Loop {
			return nil
		}
	}
}

func (r *Replay) play(ctx context.Context, handle FrameHandler, limiter ratelimit.Limiter) (ReplayStats, error) {
	var stats ReplayStats

	f, err := os.Open(r.Path)
	if err != nil {
		return stats, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	var in io.Reader = f
	if r.Progress {
		info, err := f.Stat()
		if err != nil {
			return stats, fmt.Errorf("failed to stat replay file: %w", err)
		}
		bar := newProgressBar(info.Size(), filepath.Base(r.Path))
		defer bar.Finish()
		in = io.TeeReader(f, bar)
	}

	next := r.candumpReader(in, &stats)
	if strings.EqualFold(filepath.Ext(r.Path), ".cbor") {
		next = captureReader(in)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		frame, err := next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		limiter.Take()
		stats.Frames++
		if !handle(frame.ID, frame.Data[:], frame.Length) {
			stats.Dropped++
		}
	}
}

// candumpReader returns frames from candump lines. Blank lines and lines
// starting with # or ; are skipped; malformed lines are counted and skipped.
func (r *Replay) candumpReader(in io.Reader, stats *ReplayStats) func() (slcan.Frame, error) {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	return func() (slcan.Frame, error) {
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || line[0] == '#' || line[0] == ';' {
				continue
			}
			frame, _, err := slcan.ParseCandumpLine(line)
			if err != nil {
				stats.Malformed++
				r.logger().Debug("skipping log line", "line", lineNo, "error", err)
				continue
			}
			return frame, nil
		}
		if err := scanner.Err(); err != nil {
			return slcan.Frame{}, fmt.Errorf("failed to read replay file: %w", err)
		}
		return slcan.Frame{}, io.EOF
	}
}

func captureReader(in io.Reader) func() (slcan.Frame, error) {
	cr := slcan.NewCaptureReader(in)
	return func() (slcan.Frame, error) {
		frame, _, err := cr.Next()
		return frame, err
	}
}

func newProgressBar(size int64, text string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		size,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(text),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
