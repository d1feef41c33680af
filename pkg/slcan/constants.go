// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package slcan implements the SLCAN (Lawicel) ASCII framing used to carry
// CAN frames over a serial line.
//
// A received extended frame is written as
//
//	T iiiiiiii l dd.. \r
//
// with the identifier as 8 uppercase hex digits, a single length digit and
// two hex digits per payload byte. The package also defines the fixed-size
// binary record used to queue frames between capture and transmission, a
// line decoder for the host side, and helpers for candump logs and CBOR
// capture files.
package slcan

// Command bytes
const (
	CmdExtendedFrame = 'T'
	CmdStandardFrame = 't'
)

// Line terminators
const (
	CR = '\r'
	LF = '\n'
)

// Frame and line size limits
const (
	MaxDataLength    = 8
	ExtendedIDDigits = 8
	StandardIDDigits = 3
	MaxExtendedID    = 0x1FFFFFFF
	MaxStandardID    = 0x7FF

	// command + id + length digit + CR
	lineOverhead  = 1 + ExtendedIDDigits + 1 + 1
	MaxLineLength = lineOverhead + 2*MaxDataLength // 27
)

// RecordSize is the size of a queued frame record in bytes.
const RecordSize = 16

const hexDigits = "0123456789ABCDEF"
