// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f Frame, ts time.Time) string {
	kind := "STD"
	if f.Extended() {
		kind = "EXT"
	}
	result := fmt.Sprintf("[%s] %s id=%08X len=%d", ts.Format("15:04:05.000"), kind, f.ID, f.Length)
	if f.Length > 0 {
		result += " data=" + FormatHex(f.Payload())
	}
	return result
}

// FormatHex formats bytes as space separated uppercase hex pairs
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// FormatCandump formats a frame as a candump log line:
// (seconds.micros) iface ID#DATA
func FormatCandump(f Frame, ts time.Time, iface string) string {
	return fmt.Sprintf("(%d.%06d) %s %s", ts.Unix(), ts.Nanosecond()/1000, iface, f.String())
}

// ParseCandumpLine parses a candump log line.
// Format: (timestamp) interface ID#PAYLOAD
//
// The timestamp and interface are optional. Remote frames (ID#R) are
// rejected. A zero time is returned when the line carries no timestamp.
func ParseCandumpLine(line string) (Frame, time.Time, error) {
	line = strings.TrimSpace(line)
	idxHash := strings.Index(line, "#")
	if idxHash == -1 {
		return Frame{}, time.Time{}, fmt.Errorf("no # separator found")
	}

	var ts time.Time
	head := strings.TrimSpace(line[:idxHash])
	if strings.HasPrefix(head, "(") {
		end := strings.Index(head, ")")
		if end == -1 {
			return Frame{}, time.Time{}, fmt.Errorf("unterminated timestamp")
		}
		var err error
		ts, err = parseTimestamp(head[1:end])
		if err != nil {
			return Frame{}, time.Time{}, err
		}
		head = strings.TrimSpace(head[end+1:])
	}

	// Remove interface name (vcan0, can0, etc.)
	if idx := strings.LastIndex(head, " "); idx != -1 {
		head = head[idx+1:]
	}
	if head == "" {
		return Frame{}, time.Time{}, fmt.Errorf("missing identifier")
	}

	id, err := strconv.ParseUint(head, 16, 32)
	if err != nil {
		return Frame{}, time.Time{}, fmt.Errorf("invalid identifier %q: %w", head, err)
	}
	if id > MaxExtendedID {
		return Frame{}, time.Time{}, fmt.Errorf("identifier 0x%X exceeds 29 bits", id)
	}

	payloadHex := strings.ReplaceAll(line[idxHash+1:], " ", "")
	if strings.HasPrefix(payloadHex, "R") || strings.HasPrefix(payloadHex, "#") {
		return Frame{}, time.Time{}, fmt.Errorf("unsupported frame %q", line[idxHash:])
	}
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return Frame{}, time.Time{}, fmt.Errorf("invalid payload: %w", err)
	}
	if len(payload) > MaxDataLength {
		return Frame{}, time.Time{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(payload))
	}

	return NewFrame(uint32(id), payload), ts, nil
}

// parseTimestamp parses seconds.fraction into a time
func parseTimestamp(s string) (time.Time, error) {
	secStr, fracStr, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nsec int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), nil
}
