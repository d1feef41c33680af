// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ringbuf

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// record returns a 16-byte item tagged with seq
func record(seq uint32) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b, seq)
	b[4] = 0xA5
	return b
}

func seqOf(t *testing.T, item Item) uint32 {
	t.Helper()
	if len(item.Data) != 16 {
		t.Fatalf("item length = %d, want 16", len(item.Data))
	}
	return binary.LittleEndian.Uint32(item.Data)
}

func mustNew(t *testing.T, size int) *Buffer {
	t.Helper()
	b, err := New(size)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", size, err)
	}
	return b
}

// ============================================================
// Construction
// ============================================================

func TestNew_SizeTooSmall(t *testing.T) {
	for _, size := range []int{0, 4, 8, 11} {
		if _, err := New(size); err != ErrSizeTooSmall {
			t.Errorf("New(%d) error = %v, want ErrSizeTooSmall", size, err)
		}
	}
}

func TestNew_RoundsDownToAlignment(t *testing.T) {
	b := mustNew(t, 67)
	if b.Cap() != 64 {
		t.Errorf("Cap() = %d, want 64", b.Cap())
	}
	if b.Free() != 56 {
		t.Errorf("Free() = %d, want 56", b.Free())
	}
}

// ============================================================
// FIFO behaviour
// ============================================================

func TestSendReceive_FIFO(t *testing.T) {
	b := mustNew(t, 8192)
	const n = 300

	for i := uint32(0); i < n; i++ {
		if !b.Send(record(i)) {
			t.Fatalf("Send(%d) dropped with free=%d", i, b.Free())
		}
	}
	if b.Len() != n {
		t.Fatalf("Len() = %d, want %d", b.Len(), n)
	}

	for i := uint32(0); i < n; i++ {
		item, ok := b.ReceiveTimeout(time.Second)
		if !ok {
			t.Fatalf("Receive %d timed out", i)
		}
		if got := seqOf(t, item); got != i {
			t.Fatalf("received seq %d, want %d", got, i)
		}
		b.Return(item)
	}

	if !b.Empty() {
		t.Error("buffer should be empty after returning every item")
	}
}

func TestSend_CopiesData(t *testing.T) {
	b := mustNew(t, 64)
	data := []byte{1, 2, 3}
	b.Send(data)
	data[0] = 0xFF

	item, ok := b.ReceiveTimeout(time.Second)
	if !ok {
		t.Fatal("Receive timed out")
	}
	if !bytes.Equal(item.Data, []byte{1, 2, 3}) {
		t.Errorf("item data = %X, want 010203", item.Data)
	}
	if cap(item.Data) != len(item.Data) {
		t.Errorf("item data capacity %d leaks arena storage", cap(item.Data))
	}
}

func TestSend_ZeroLength(t *testing.T) {
	b := mustNew(t, 64)
	if !b.Send(nil) {
		t.Fatal("zero-length Send dropped")
	}
	item, ok := b.ReceiveTimeout(time.Second)
	if !ok {
		t.Fatal("Receive timed out")
	}
	if len(item.Data) != 0 {
		t.Errorf("item length = %d, want 0", len(item.Data))
	}
	b.Return(item)
	if !b.Empty() {
		t.Error("buffer should be empty")
	}
}

// ============================================================
// Overflow and wrap handling
// ============================================================

func TestSend_OverflowDropsAndKeepsOrder(t *testing.T) {
	// 64 bytes hold two 24-byte slots
	b := mustNew(t, 64)

	if !b.Send(record(1)) || !b.Send(record(2)) {
		t.Fatal("first two sends should fit")
	}
	if b.Send(record(3)) {
		t.Fatal("third send should be dropped")
	}

	first, _ := b.ReceiveTimeout(time.Second)
	got := []uint32{seqOf(t, first)}
	b.Return(first)

	// Wraps to the start of the arena with a padding marker at offset 48
	if !b.Send(record(4)) {
		t.Fatal("send after return should fit")
	}
	if b.Free() != 0 {
		t.Errorf("Free() = %d, want 0 when full", b.Free())
	}

	for i := 0; i < 2; i++ {
		item, ok := b.ReceiveTimeout(time.Second)
		if !ok {
			t.Fatal("Receive timed out")
		}
		got = append(got, seqOf(t, item))
		b.Return(item)
	}

	want := []uint32{1, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("received %v, want %v", got, want)
		}
	}
	if !b.Empty() {
		t.Error("buffer should be empty")
	}
}

func TestSend_ImplicitWrapWithoutMarkerRoom(t *testing.T) {
	// 52 bytes: two 24-byte slots leave a 4-byte tail, too small for a header
	b := mustNew(t, 52)
	b.Send(record(1))
	b.Send(record(2))

	item, _ := b.ReceiveTimeout(time.Second)
	b.Return(item)

	if !b.Send(record(3)) {
		t.Fatal("send should wrap to the start of the arena")
	}

	for _, want := range []uint32{2, 3} {
		item, ok := b.ReceiveTimeout(time.Second)
		if !ok {
			t.Fatal("Receive timed out")
		}
		if got := seqOf(t, item); got != want {
			t.Fatalf("received %d, want %d", got, want)
		}
		b.Return(item)
	}
	if !b.Empty() {
		t.Error("buffer should be empty")
	}
}

func TestSend_VariableSizeKeepsOrderAcrossWrap(t *testing.T) {
	b := mustNew(t, 64)
	fill := func(c byte, n int) []byte { return bytes.Repeat([]byte{c}, n) }

	b.Send(fill('A', 16))
	b.Send(fill('B', 16))
	item, _ := b.ReceiveTimeout(time.Second)
	b.Return(item)

	// Pads 48..63 and lands at offset 0
	if !b.Send(fill('C', 16)) {
		t.Fatal("C should wrap to the start of the arena")
	}
	item, _ = b.ReceiveTimeout(time.Second)
	if string(item.Data) != string(fill('B', 16)) {
		t.Fatalf("received %q, want B", item.Data)
	}
	b.Return(item)

	// Padding is still ahead of the reader, so only 24..47 is usable
	if !b.Send(fill('D', 4)) || !b.Send(fill('E', 4)) {
		t.Fatal("D and E should fit between C and the padding")
	}
	if b.Send(fill('F', 4)) {
		t.Fatal("F should be dropped while the padding is unread")
	}

	var got []string
	for !b.Empty() {
		item, ok := b.ReceiveTimeout(time.Second)
		if !ok {
			t.Fatalf("Receive timed out after %q", got)
		}
		got = append(got, string(item.Data))
		b.Return(item)
	}
	want := []string{string(fill('C', 16)), "DDDD", "EEEE"}
	if len(got) != len(want) {
		t.Fatalf("received %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("received %q, want %q", got, want)
		}
	}
}

func TestSend_RandomVariableSizes(t *testing.T) {
	for _, seed := range []int64{1, 5, 42, 1234} {
		rng := rand.New(rand.NewSource(seed))
		b := mustNew(t, 64+4*rng.Intn(16))

		var queued [][]byte
		var held []Item
		returnHeld := func() {
			for _, item := range held {
				b.Return(item)
			}
			held = held[:0]
		}
		next := uint32(0)
		for step := 0; step < 5000; step++ {
			switch op := rng.Intn(4); {
			case op < 2:
				data := make([]byte, 4+rng.Intn(21))
				binary.LittleEndian.PutUint32(data, next)
				for i := 4; i < len(data); i++ {
					data[i] = byte(next) + byte(i)
				}
				next++
				if b.Send(data) {
					queued = append(queued, data)
				}
			case op == 2:
				item, ok := b.ReceiveTimeout(0)
				if !ok {
					if len(queued) != 0 {
						t.Fatalf("seed %d step %d: receive failed with %d queued", seed, step, len(queued))
					}
					continue
				}
				if !bytes.Equal(item.Data, queued[0]) {
					t.Fatalf("seed %d step %d: received %X, want %X", seed, step, item.Data, queued[0])
				}
				queued = queued[1:]
				if rng.Intn(2) == 0 {
					held = append(held, item)
				} else {
					b.Return(item)
				}
			case op == 3:
				returnHeld()
			}
		}
		returnHeld()

		for len(queued) > 0 {
			item, ok := b.ReceiveTimeout(time.Second)
			if !ok || !bytes.Equal(item.Data, queued[0]) {
				t.Fatalf("seed %d: drain received %X, want %X", seed, item.Data, queued[0])
			}
			queued = queued[1:]
			b.Return(item)
		}
		if !b.Empty() {
			t.Errorf("seed %d: buffer not empty after drain", seed)
		}
	}
}

func TestSend_ItemLargerThanArena(t *testing.T) {
	b := mustNew(t, 64)
	if b.Send(make([]byte, 100)) {
		t.Error("oversized item should be dropped")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

// ============================================================
// Return protocol
// ============================================================

func TestReturn_OutOfOrderReclaimsInFIFOOrder(t *testing.T) {
	b := mustNew(t, 64)
	b.Send(record(1))
	b.Send(record(2))

	first, _ := b.ReceiveTimeout(time.Second)
	second, _ := b.ReceiveTimeout(time.Second)

	b.Return(second)
	if b.Send(record(3)) {
		t.Fatal("storage reclaimed before the older item was returned")
	}

	b.Return(first)
	if b.Free() != 56 {
		t.Errorf("Free() = %d, want 56 after returning everything", b.Free())
	}
	if !b.Empty() {
		t.Error("buffer should be empty")
	}
}

func TestReturn_HeldItemReservesStorage(t *testing.T) {
	b := mustNew(t, 64)
	b.Send(record(1))
	item, _ := b.ReceiveTimeout(time.Second)

	if b.Empty() {
		t.Fatal("received but unreturned item must keep its storage")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	b.Return(item)
	if !b.Empty() {
		t.Error("buffer should be empty after return")
	}
}

// ============================================================
// Blocking receive
// ============================================================

func TestReceive_TimesOutWhenEmpty(t *testing.T) {
	b := mustNew(t, 64)
	start := time.Now()
	if _, ok := b.ReceiveTimeout(20 * time.Millisecond); ok {
		t.Fatal("Receive on empty buffer should time out")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Receive returned before the timeout")
	}
}

func TestReceive_ContextCancel(t *testing.T) {
	b := mustNew(t, 64)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		_, ok := b.Receive(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("Receive should report no item after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after cancel")
	}
}

func TestReceive_WakesOnSend(t *testing.T) {
	b := mustNew(t, 64)
	got := make(chan uint32)
	go func() {
		item, ok := b.Receive(context.Background())
		if ok {
			got <- binary.LittleEndian.Uint32(item.Data)
			b.Return(item)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Send(record(42))

	select {
	case seq := <-got:
		if seq != 42 {
			t.Errorf("received %d, want 42", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Receive was not woken by Send")
	}
}

// ============================================================
// Concurrency
// ============================================================

func TestConcurrent_ProducerNeverBlocksAndOrderHolds(t *testing.T) {
	b := mustNew(t, 256)
	const total = 20000

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make([]uint32, 0, total)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			item, ok := b.Receive(ctx)
			if !ok {
				return
			}
			received = append(received, binary.LittleEndian.Uint32(item.Data))
			b.Return(item)
		}
	}()

	sent := 0
	for i := uint32(0); i < total; i++ {
		if b.Send(record(i)) {
			sent++
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for !b.Empty() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	wg.Wait()

	if len(received) != sent {
		t.Fatalf("received %d items, producer enqueued %d", len(received), sent)
	}
	for i := 1; i < len(received); i++ {
		if received[i] <= received[i-1] {
			t.Fatalf("order violated at %d: %d after %d", i, received[i], received[i-1])
		}
	}
}
