// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestCapture_WriteRead(t *testing.T) {
	frames := []Frame{
		NewFrame(0x7FF, nil),
		NewFrame(0x1, []byte{0xAA}),
		NewFrame(0x18FEF100, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
	}
	base := time.Unix(1700000000, 0)

	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for i, f := range frames {
		if err := w.WriteFrame(f, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	r := NewCaptureReader(&buf)
	for i, want := range frames {
		got, ts, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if got != want {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
		if !ts.Equal(base.Add(time.Duration(i) * time.Millisecond)) {
			t.Errorf("frame %d timestamp = %v", i, ts)
		}
	}

	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestCapture_RejectsOversizedPayload(t *testing.T) {
	data, err := cbor.Marshal(CaptureRecord{ID: 1, Data: make([]byte, 9)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	_, _, err = NewCaptureReader(bytes.NewReader(data)).Next()
	if !errors.Is(err, ErrInvalidLength) {
		t.Errorf("Next error = %v, want ErrInvalidLength", err)
	}
}

func TestCapture_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	NewCaptureWriter(&buf).WriteFrame(NewFrame(0x123, []byte{0xDE, 0xAD}), time.Now())
	truncated := buf.Bytes()[:buf.Len()-1]

	_, _, err := NewCaptureReader(bytes.NewReader(truncated)).Next()
	if err == nil || err == io.EOF {
		t.Errorf("Next on truncated record = %v, want decode error", err)
	}
}
