// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"strings"
	"testing"
)

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	std := NewFrame(0x123, []byte{1, 2})
	ext := NewFrame(0x18FEF100, []byte{1, 2, 3})
	s.Update(&std, nil)
	s.Update(&std, nil)
	s.Update(&ext, nil)
	s.Update(nil, errors.New("bad line"))

	if s.TotalLines != 4 {
		t.Errorf("TotalLines = %d, want 4", s.TotalLines)
	}
	if s.ValidFrames != 3 || s.MalformedLines != 1 {
		t.Errorf("ValidFrames = %d, MalformedLines = %d", s.ValidFrames, s.MalformedLines)
	}
	if s.StandardFrames != 2 || s.ExtendedFrames != 1 {
		t.Errorf("StandardFrames = %d, ExtendedFrames = %d", s.StandardFrames, s.ExtendedFrames)
	}
	if s.DataBytes != 7 {
		t.Errorf("DataBytes = %d, want 7", s.DataBytes)
	}

	top := s.TopIDs(1)
	if len(top) != 1 || top[0].ID != 0x123 || top[0].Count != 2 {
		t.Errorf("TopIDs(1) = %+v", top)
	}

	out := s.String()
	if !strings.Contains(out, "Malformed Lines:") || !strings.Contains(out, "00000123:") {
		t.Errorf("String() missing fields:\n%s", out)
	}

	s.Reset()
	if s.TotalLines != 0 || len(s.PerID) != 0 {
		t.Error("Reset did not clear counters")
	}
}
