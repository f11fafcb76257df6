package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManualFiresInOrder(t *testing.T) {
	m := NewManual()
	var order []string
	m.Every(30*time.Millisecond, func() { order = append(order, "a") })
	m.Every(20*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(60 * time.Millisecond)
	want := []string{"b", "a", "b", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
	if m.Now() != 60*time.Millisecond {
		t.Fatalf("now = %v", m.Now())
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual()
	n := 0
	cancel := m.Every(10*time.Millisecond, func() { n++ })
	m.Advance(25 * time.Millisecond)
	cancel()
	cancel()
	m.Advance(100 * time.Millisecond)
	if n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
	if m.Pending() != 0 {
		t.Fatalf("pending = %d", m.Pending())
	}
}

func TestManualCancelFromCallback(t *testing.T) {
	m := NewManual()
	n := 0
	var cancel func()
	cancel = m.Every(time.Millisecond, func() {
		n++
		cancel()
	})
	m.Advance(10 * time.Millisecond)
	if n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestTickerRunsAndStops(t *testing.T) {
	var n atomic.Int32
	cancel := Ticker{}.Every(time.Millisecond, func() { n.Add(1) })
	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if n.Load() < 3 {
		t.Fatalf("ticker fired %d times", n.Load())
	}
	time.Sleep(5 * time.Millisecond)
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	if n.Load() != after {
		t.Fatalf("ticker kept firing after cancel")
	}
}
