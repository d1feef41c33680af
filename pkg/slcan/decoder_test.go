// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"testing"
)

func decodeAll(t *testing.T, d *Decoder, input string) ([]Frame, []error) {
	t.Helper()
	var frames []Frame
	var errs []error
	for i := 0; i < len(input); i++ {
		f, err := d.DecodeByte(input[i])
		if err != nil {
			errs = append(errs, err)
		}
		if f != nil {
			frames = append(frames, *f)
		}
	}
	return frames, errs
}

// ============================================================
// Valid lines
// ============================================================

func TestDecoder_ValidLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Frame
	}{
		{"extended empty", "T000000000\r", NewFrame(0, nil)},
		{"extended one byte", "T1FFFFFFF101\r", NewFrame(0x1FFFFFFF, []byte{0x01})},
		{"extended two bytes", "T000001232DEAD\r", NewFrame(0x123, []byte{0xDE, 0xAD})},
		{"standard", "t7FF2CAFE\r", NewFrame(0x7FF, []byte{0xCA, 0xFE})},
		{"lowercase hex", "t1232dead\r", NewFrame(0x123, []byte{0xDE, 0xAD})},
		{"crlf", "T000000011AA\r\n", NewFrame(0x1, []byte{0xAA})},
		{"leading empty lines", "\r\n\rT000000420\r", NewFrame(0x42, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, errs := decodeAll(t, NewDecoder(), tt.input)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if len(frames) != 1 {
				t.Fatalf("decoded %d frames, want 1", len(frames))
			}
			if frames[0] != tt.want {
				t.Errorf("frame = %+v, want %+v", frames[0], tt.want)
			}
		})
	}
}

func TestDecoder_RawBytes(t *testing.T) {
	d := NewDecoder()
	decodeAll(t, d, "T000001232DEAD\r")
	if got := string(d.GetRawBytes()); got != "T000001232DEAD\r" {
		t.Errorf("GetRawBytes = %q", got)
	}

	d.DecodeByte('T')
	if got := string(d.GetRawBytes()); got != "T" {
		t.Errorf("GetRawBytes after new line = %q, want \"T\"", got)
	}
}

// ============================================================
// Malformed lines and resynchronisation
// ============================================================

func TestDecoder_MalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown command", "X12345\r"},
		{"transmit request", "r1230\r"},
		{"bad id digit", "T0000G0000\r"},
		{"bad length digit", "T000000009\r"},
		{"non digit length", "T00000000A\r"},
		{"bad data digit", "T0000000012Z\r"},
		{"truncated id", "T0001\r"},
		{"truncated length", "T00000001\r"},
		{"truncated data", "T0000000121\r"},
		{"line too long", "T0000000010000\r"},
		{"standard id out of range", "tFFF0\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			frames, errs := decodeAll(t, d, tt.input+"T000000011AA\r")
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if !errors.Is(errs[0], ErrMalformedLine) {
				t.Errorf("error %v does not wrap ErrMalformedLine", errs[0])
			}
			if len(frames) != 1 || frames[0] != NewFrame(0x1, []byte{0xAA}) {
				t.Errorf("decoder did not resynchronise: frames = %+v", frames)
			}
		})
	}
}

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder()
	frames, errs := d.Decode([]byte("T000007FF0\rgarbage\rT000000011AA\r"))
	if errs != 1 {
		t.Errorf("errors = %d, want 1", errs)
	}
	if len(frames) != 2 {
		t.Fatalf("decoded %d frames, want 2", len(frames))
	}
	if frames[0].ID != 0x7FF || frames[1].ID != 0x1 {
		t.Errorf("frames = %+v", frames)
	}
}

func TestDecoder_SplitAcrossChunks(t *testing.T) {
	d := NewDecoder()
	line := "T18FEF10080123456789ABCDEF\r"

	var got []Frame
	for _, chunk := range []string{line[:5], line[5:14], line[14:]} {
		frames, errs := d.Decode([]byte(chunk))
		if errs != 0 {
			t.Fatalf("unexpected errors in chunk %q", chunk)
		}
		got = append(got, frames...)
	}
	if len(got) != 1 || got[0].ID != 0x18FEF100 || got[0].Length != 8 {
		t.Errorf("frames = %+v", got)
	}
}
