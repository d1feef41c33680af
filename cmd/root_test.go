// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import "testing"

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error", ""} {
		if _, err := parseLogLevel(s); err != nil {
			t.Errorf("parseLogLevel(%q) failed: %v", s, err)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Error("parseLogLevel(\"verbose\") should fail")
	}
}
