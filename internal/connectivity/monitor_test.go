package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// flakyProbe returns the errors queued in sequence, then succeeds.
type flakyProbe struct {
	mu   sync.Mutex
	errs []error
}

func (f *flakyProbe) probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestMonitor(probe Probe) *Monitor {
	return New(probe, Config{
		Interval:         time.Hour, // tests drive probes manually
		FailureThreshold: 2,
		ProbeTimeout:     time.Second,
	})
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := newTestMonitor(func(ctx context.Context) error { return nil })
	if m.IsOnline() {
		t.Error("monitor online before any probe")
	}
}

func TestMonitor_SingleSuccessGoesOnline(t *testing.T) {
	m := newTestMonitor(func(ctx context.Context) error { return nil })
	m.runProbe()
	if !m.IsOnline() {
		t.Error("monitor offline after successful probe")
	}
}

func TestMonitor_FlapGuard(t *testing.T) {
	fp := &flakyProbe{errs: []error{errors.New("timeout")}}
	m := newTestMonitor(fp.probe)

	m.SetOnline(true)

	// One failed probe is below the threshold of 2: still online.
	m.runProbe()
	if !m.IsOnline() {
		t.Error("single probe failure declared offline")
	}

	// A success in between resets the failure count.
	m.runProbe()
	if !m.IsOnline() {
		t.Error("monitor offline after recovery probe")
	}

	// Two consecutive failures cross the threshold.
	fp.mu.Lock()
	fp.errs = []error{errors.New("timeout"), errors.New("timeout")}
	fp.mu.Unlock()
	m.runProbe()
	m.runProbe()
	if m.IsOnline() {
		t.Error("monitor still online after consecutive failures")
	}
}

func TestMonitor_EdgeTriggeredEvents(t *testing.T) {
	m := newTestMonitor(func(ctx context.Context) error { return nil })

	var events []bool
	var mu sync.Mutex
	if err := m.Subscribe(func(online bool) {
		mu.Lock()
		events = append(events, online)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Repeated probes in the same state publish nothing extra.
	m.runProbe()
	m.runProbe()
	m.runProbe()
	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true}
	if len(events) != len(want) {
		t.Fatalf("got %d events (%v), want %v", len(events), events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := newTestMonitor(func(ctx context.Context) error { return nil })

	var calls atomic.Int32
	handler := func(online bool) { calls.Add(1) }
	if err := m.Subscribe(handler); err != nil {
		t.Fatal(err)
	}
	m.SetOnline(true)
	if err := m.Unsubscribe(handler); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	m.SetOnline(false)

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	var probes atomic.Int32
	m := New(func(ctx context.Context) error {
		probes.Add(1)
		return nil
	}, Config{
		Interval:         10 * time.Millisecond,
		FailureThreshold: 2,
		ProbeTimeout:     time.Second,
	})

	m.Start()
	if !m.IsOnline() {
		t.Error("monitor offline after Start with healthy probe")
	}

	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if probes.Load() < 2 {
		t.Errorf("probe ran %d times, want immediate plus periodic runs", probes.Load())
	}
}
