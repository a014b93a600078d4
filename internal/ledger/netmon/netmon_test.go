package netmon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManual_Subscribe(t *testing.T) {
	m := NewManual(false)

	var fired int
	unsubscribe := m.Subscribe(func() { fired++ })

	m.SetOnline(true)
	if fired != 1 {
		t.Errorf("became-reachable fired %d times, want 1", fired)
	}

	// Staying online is not a transition.
	m.SetOnline(true)
	if fired != 1 {
		t.Errorf("repeated online fired subscriber, count = %d", fired)
	}

	m.SetOnline(false)
	if fired != 1 {
		t.Errorf("going offline fired subscriber, count = %d", fired)
	}

	m.SetOnline(true)
	if fired != 2 {
		t.Errorf("second transition fired %d times, want 2", fired)
	}

	unsubscribe()
	m.SetOnline(false)
	m.SetOnline(true)
	if fired != 2 {
		t.Error("subscriber still notified after unsubscribe")
	}
}

func TestProbe_Transitions(t *testing.T) {
	var reachable atomic.Bool

	p := NewProbe("remote:5432", 10*time.Millisecond, time.Second)
	p.Dial = func(addr string, timeout time.Duration) error {
		if reachable.Load() {
			return nil
		}
		return errors.New("unreachable")
	}

	var fired atomic.Int32
	p.Subscribe(func() { fired.Add(1) })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	if p.Online() {
		t.Error("probe reports online while dial fails")
	}

	reachable.Store(true)
	deadline := time.After(time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("became-reachable never fired after dial started succeeding")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !p.Online() {
		t.Error("probe reports offline while dial succeeds")
	}
}

func TestProbe_StartTwice(t *testing.T) {
	p := NewProbe("remote:5432", time.Hour, time.Second)
	p.Dial = func(string, time.Duration) error { return errors.New("unreachable") }

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}

func TestProbe_StopWithoutStart(t *testing.T) {
	p := NewProbe("remote:5432", time.Hour, time.Second)
	p.Stop() // must not panic or block
}
