// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLength reports a data length above MaxDataLength.
	ErrInvalidLength = errors.New("slcan: invalid data length")
	// ErrShortRecord reports a queued record smaller than RecordSize.
	ErrShortRecord = errors.New("slcan: short record")
)

// Frame is a received CAN data frame. Only the first Length bytes of Data
// are meaningful.
type Frame struct {
	ID     uint32
	Length uint8
	Data   [MaxDataLength]byte
}

// NewFrame builds a frame from a payload, keeping at most 8 bytes.
func NewFrame(id uint32, payload []byte) Frame {
	f := Frame{ID: id}
	f.Length = uint8(copy(f.Data[:], payload))
	return f
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte {
	n := min(int(f.Length), MaxDataLength)
	return f.Data[:n]
}

// Extended reports whether the identifier needs 29 bits.
func (f Frame) Extended() bool {
	return f.ID > MaxStandardID
}

// String formats the frame in candump notation (ID#DATA).
func (f Frame) String() string {
	var sb strings.Builder
	if f.Extended() {
		fmt.Fprintf(&sb, "%08X#", f.ID)
	} else {
		fmt.Fprintf(&sb, "%03X#", f.ID)
	}
	for _, b := range f.Payload() {
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// PutRecord serializes a frame into dst, which must hold RecordSize bytes.
//
// Layout (little-endian): 0..3 identifier, 4 length, 5..7 zero, 8..15 data.
// The stored length is min(length, len(data), 8).
func PutRecord(dst []byte, id uint32, data []byte, length uint8) {
	_ = dst[RecordSize-1]
	n := min(int(length), len(data), MaxDataLength)

	binary.LittleEndian.PutUint32(dst[0:4], id)
	dst[4] = uint8(n)
	dst[5], dst[6], dst[7] = 0, 0, 0
	copy(dst[8:8+n], data[:n])
	clear(dst[8+n : RecordSize])
}

// MarshalRecord returns the record form of f.
func (f Frame) MarshalRecord() []byte {
	b := make([]byte, RecordSize)
	PutRecord(b, f.ID, f.Data[:], f.Length)
	return b
}

// UnmarshalRecord parses a queued record.
func UnmarshalRecord(b []byte) (Frame, error) {
	if len(b) < RecordSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}
	f := Frame{
		ID:     binary.LittleEndian.Uint32(b[0:4]),
		Length: b[4],
	}
	if f.Length > MaxDataLength {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidLength, f.Length)
	}
	copy(f.Data[:], b[8:8+int(f.Length)])
	return f, nil
}
