// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureRecord is one frame in a CBOR capture file. Files are a plain
// sequence of CBOR maps with integer keys.
type CaptureRecord struct {
	Timestamp int64  `cbor:"1,keyasint"` // Unix nanoseconds
	ID        uint32 `cbor:"2,keyasint"`
	Data      []byte `cbor:"3,keyasint"`
}

// CaptureWriter appends frames to a capture stream
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// WriteFrame writes one frame with its receive time
func (c *CaptureWriter) WriteFrame(f Frame, ts time.Time) error {
	rec := CaptureRecord{
		Timestamp: ts.UnixNano(),
		ID:        f.ID,
		Data:      f.Payload(),
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads frames back from a capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next frame and its timestamp. It returns io.EOF at the
// end of the stream.
func (c *CaptureReader) Next() (Frame, time.Time, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, time.Time{}, io.EOF
		}
		return Frame{}, time.Time{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	if len(rec.Data) > MaxDataLength {
		return Frame{}, time.Time{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(rec.Data))
	}
	return NewFrame(rec.ID, rec.Data), time.Unix(0, rec.Timestamp), nil
}
