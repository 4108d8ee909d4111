package status

import (
	"errors"
	"testing"
)

func TestMachineTransitions(t *testing.T) {
	t.Parallel()
	m := NewMachine()
	if m.Current() != Synced {
		t.Fatalf("expected initial synced, got %s", m.Current())
	}

	var seen []Sync
	unsubscribe := m.Subscribe(func(s Sync) { seen = append(seen, s) })

	m.Begin()
	m.End(errors.New("remote down"))
	if m.Current() != Error {
		t.Errorf("expected error, got %s", m.Current())
	}
	m.Begin()
	m.End(nil)
	if m.Current() != Synced {
		t.Errorf("expected synced, got %s", m.Current())
	}

	want := []Sync{Syncing, Error, Syncing, Synced}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}

	unsubscribe()
	m.Set(Unsynced)
	if len(seen) != len(want) {
		t.Error("unsubscribed callback still invoked")
	}
	m.Set(Unsynced)
}
