// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import "fmt"

// Encoder encodes frames as SLCAN lines.
type Encoder struct{}

// NewEncoder creates a new SLCAN encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a frame to wire format.
func (e *Encoder) Encode(f Frame) ([]byte, error) {
	return EncodeFrame(f)
}

// LineLength returns the encoded size of a frame carrying n data bytes.
func LineLength(n int) int {
	return lineOverhead + 2*n
}

// EncodeFrame returns the SLCAN line for f, including the trailing CR.
func EncodeFrame(f Frame) ([]byte, error) {
	if f.Length > MaxDataLength {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidLength, f.Length, MaxDataLength)
	}
	return AppendFrame(make([]byte, 0, LineLength(int(f.Length))), f), nil
}

// AppendFrame appends the SLCAN line for f to dst. f.Length must not exceed
// MaxDataLength.
//
// Every frame is written in extended form: all eight identifier nibbles are
// emitted, most significant first.
func AppendFrame(dst []byte, f Frame) []byte {
	dst = append(dst, CmdExtendedFrame)
	for shift := 28; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(f.ID>>uint(shift))&0xF])
	}
	dst = append(dst, '0'+f.Length)
	for _, b := range f.Data[:f.Length] {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0xF])
	}
	return append(dst, CR)
}
