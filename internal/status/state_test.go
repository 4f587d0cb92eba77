package status

import (
	"testing"

	"github.com/mudassir044/aupair-messaging/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Draining); err == nil {
		t.Error("Transition(BOOTING -> DRAINING) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (should not have changed)", m.Current())
	}
}

// TestServeLifecycle walks the normal path: BOOTING → READY → DRAINING → STOPPED.
func TestServeLifecycle(t *testing.T) {
	m := NewMachine(nil)

	for _, s := range []State{Ready, Draining, Stopped} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Stopped {
		t.Errorf("final state = %s, want STOPPED", m.Current())
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{Ready, Draining, Stopped} {
		if err := m.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(STOPPED -> READY) should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("server.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindServerStatus {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindServerStatus)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Ready {
		t.Errorf("change = %v -> %v, want BOOTING -> READY", change.From, change.To)
	}
}

func TestUptimeAdvances(t *testing.T) {
	m := NewMachine(nil)
	if m.Uptime() < 0 {
		t.Error("uptime should not be negative")
	}
}
