// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"fmt"
)

// ErrMalformedLine is wrapped by every error returned from DecodeByte.
var ErrMalformedLine = errors.New("slcan: malformed line")

// Decoder states
const (
	stateIdle = iota
	stateID
	stateLength
	stateData
	stateEnd
	stateSkip // discard until CR after an error
)

// Decoder implements the SLCAN line decoder state machine
type Decoder struct {
	state     int
	frame     Frame
	idDigits  int
	digits    int
	rawBuffer []byte // bytes of the current line
}

// NewDecoder creates a new line decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		rawBuffer: make([]byte, 0, MaxLineLength*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.frame = Frame{}
	d.idDigits = 0
	d.digits = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the bytes of the line being decoded, or of the last
// completed line
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// fail reports a malformed line and discards input up to the next CR.
func (d *Decoder) fail(b byte, format string, args ...any) error {
	if b == CR {
		d.state = stateIdle
	} else {
		d.state = stateSkip
	}
	return fmt.Errorf("%w: %s", ErrMalformedLine, fmt.Sprintf(format, args...))
}

func hexValue(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the line is incomplete
// Returns an error if the line is malformed
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if d.state == stateIdle {
		d.rawBuffer = d.rawBuffer[:0]
	}
	d.rawBuffer = append(d.rawBuffer, b)

	switch d.state {
	case stateIdle:
		switch b {
		case CR, LF:
			// Empty line or the LF of a CRLF pair
			d.rawBuffer = d.rawBuffer[:0]
			return nil, nil
		case CmdExtendedFrame:
			d.frame = Frame{}
			d.idDigits = ExtendedIDDigits
		case CmdStandardFrame:
			d.frame = Frame{}
			d.idDigits = StandardIDDigits
		default:
			return nil, d.fail(b, "unknown command 0x%02X", b)
		}
		d.digits = 0
		d.state = stateID
		return nil, nil

	case stateID:
		if b == CR {
			return nil, d.fail(b, "truncated identifier (%d of %d digits)", d.digits, d.idDigits)
		}
		v, ok := hexValue(b)
		if !ok {
			return nil, d.fail(b, "invalid identifier digit 0x%02X", b)
		}
		d.frame.ID = d.frame.ID<<4 | uint32(v)
		d.digits++
		if d.digits == d.idDigits {
			if d.idDigits == StandardIDDigits && d.frame.ID > MaxStandardID {
				return nil, d.fail(b, "standard identifier 0x%X out of range", d.frame.ID)
			}
			d.state = stateLength
		}
		return nil, nil

	case stateLength:
		if b < '0' || b > '0'+MaxDataLength {
			return nil, d.fail(b, "invalid length digit 0x%02X", b)
		}
		d.frame.Length = b - '0'
		d.digits = 0
		if d.frame.Length == 0 {
			d.state = stateEnd
		} else {
			d.state = stateData
		}
		return nil, nil

	case stateData:
		if b == CR {
			return nil, d.fail(b, "truncated data (%d of %d digits)", d.digits, 2*int(d.frame.Length))
		}
		v, ok := hexValue(b)
		if !ok {
			return nil, d.fail(b, "invalid data digit 0x%02X", b)
		}
		i := d.digits / 2
		d.frame.Data[i] = d.frame.Data[i]<<4 | v
		d.digits++
		if d.digits == 2*int(d.frame.Length) {
			d.state = stateEnd
		}
		return nil, nil

	case stateEnd:
		if b != CR {
			return nil, d.fail(b, "line too long")
		}
		d.state = stateIdle
		frame := d.frame
		return &frame, nil

	case stateSkip:
		if b == CR {
			d.state = stateIdle
		}
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds p through the decoder and returns every completed frame
// along with the number of malformed lines encountered.
func (d *Decoder) Decode(p []byte) ([]Frame, int) {
	var frames []Frame
	errs := 0
	for _, b := range p {
		f, err := d.DecodeByte(b)
		if err != nil {
			errs++
			continue
		}
		if f != nil {
			frames = append(frames, *f)
		}
	}
	return frames, errs
}
