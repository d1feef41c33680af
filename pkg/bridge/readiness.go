// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

// LinkState is the host readiness state.
type LinkState int

const (
	Disconnected LinkState = iota
	Ready
)

func (s LinkState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// OnLineState records the host's control lines. The bridge transmits only
// while both DTR and RTS are asserted.
func (b *Bridge) OnLineState(dtr, rts bool) {
	ready := dtr && rts
	if b.ready.Swap(ready) != ready {
		b.logger.Info("host link state changed", "state", stateOf(ready), "dtr", dtr, "rts", rts)
	}
}

// Ready reports whether the host is ready to receive.
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// State returns the current link state.
func (b *Bridge) State() LinkState {
	return stateOf(b.ready.Load())
}

func stateOf(ready bool) LinkState {
	if ready {
		return Ready
	}
	return Disconnected
}
