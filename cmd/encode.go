// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canlink/pkg/slcan"
)

var encodeRaw bool

var encodeCmd = &cobra.Command{
	Use:   "encode ID#DATA...",
	Short: "Print the SLCAN line for frames given in candump notation",
	Long: `Encode frames given as ID#DATA (hex, candump notation) and print the
line the bridge would send for each, for example:

  canlink encode 123#DEAD 18FEF100#0102

Lines are printed quoted; use --raw to write them as-is, CR terminated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().BoolVar(&encodeRaw, "raw", false, "Write raw lines instead of quoted strings")
}

// encodeArgs converts ID#DATA arguments to SLCAN lines
func encodeArgs(args []string) ([][]byte, error) {
	lines := make([][]byte, 0, len(args))
	for _, arg := range args {
		frame, _, err := slcan.ParseCandumpLine(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid frame %q: %w", arg, err)
		}
		line, err := slcan.EncodeFrame(frame)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	lines, err := encodeArgs(args)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if encodeRaw {
			os.Stdout.Write(line)
			continue
		}
		fmt.Println(strconv.Quote(string(line)))
	}
	return nil
}
