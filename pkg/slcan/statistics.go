// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"fmt"
	"sort"
	"time"
)

// Statistics tracks received frames and line errors on the host side
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines     uint64
	ValidFrames    uint64
	MalformedLines uint64
	ExtendedFrames uint64
	StandardFrames uint64
	DataBytes      uint64
	PerID          map[uint32]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		PerID:          make(map[uint32]uint64),
	}
}

// Update records the outcome of one decoded line
func (s *Statistics) Update(frame *Frame, decodeErr error) {
	s.TotalLines++
	if decodeErr != nil {
		s.MalformedLines++
		return
	}
	if frame == nil {
		return
	}

	s.ValidFrames++
	if frame.Extended() {
		s.ExtendedFrames++
	} else {
		s.StandardFrames++
	}
	s.DataBytes += uint64(frame.Length)
	s.PerID[frame.ID]++

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.MalformedLines) / elapsed
	}
}

// IDCount is a per-identifier frame count
type IDCount struct {
	ID    uint32
	Count uint64
}

// TopIDs returns the n busiest identifiers, busiest first
func (s *Statistics) TopIDs(n int) []IDCount {
	counts := make([]IDCount, 0, len(s.PerID))
	for id, c := range s.PerID {
		counts = append(counts, IDCount{ID: id, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ID < counts[j].ID
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, malformedPercent float64
	if s.TotalLines > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalLines)
		malformedPercent = float64(s.MalformedLines) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	if s.MalformedLines > 0 {
		result += fmt.Sprintf("Malformed Lines: %8d (%.1f%%)\n", s.MalformedLines, malformedPercent)
	}
	result += fmt.Sprintf("  Standard:        %6d\n", s.StandardFrames)
	result += fmt.Sprintf("  Extended:        %6d\n", s.ExtendedFrames)
	result += fmt.Sprintf("Data Bytes:      %8d\n", s.DataBytes)
	result += fmt.Sprintf("Unique IDs:      %8d\n", len(s.PerID))
	for _, c := range s.TopIDs(5) {
		result += fmt.Sprintf("  %08X:        %6d\n", c.ID, c.Count)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
