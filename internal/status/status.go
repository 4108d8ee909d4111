// Package status holds the sync indicator shared by the access service and
// the connectivity tracker.
package status

import "sync"

// Sync describes whether the local cache and the remote store agree.
type Sync int

const (
	Synced Sync = iota
	Syncing
	Unsynced
	Error
)

func (s Sync) String() string {
	switch s {
	case Synced:
		return "synced"
	case Syncing:
		return "syncing"
	case Unsynced:
		return "unsynced"
	case Error:
		return "error"
	}
	return "unknown"
}

// Machine is a concurrency-safe Sync value with change notification.
// It starts in Synced.
type Machine struct {
	mu   sync.Mutex
	cur  Sync
	subs map[int]func(Sync)
	next int
}

// NewMachine returns a machine in the Synced state.
func NewMachine() *Machine {
	return &Machine{subs: make(map[int]func(Sync))}
}

// Current returns the present state.
func (m *Machine) Current() Sync {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Begin enters Syncing.
func (m *Machine) Begin() { m.Set(Syncing) }

// End leaves Syncing for Synced, or Error when err is non-nil.
func (m *Machine) End(err error) {
	if err != nil {
		m.Set(Error)
		return
	}
	m.Set(Synced)
}

// Set moves to s and notifies subscribers if the state changed.
func (m *Machine) Set(s Sync) {
	m.mu.Lock()
	if m.cur == s {
		m.mu.Unlock()
		return
	}
	m.cur = s
	fns := make([]func(Sync), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Subscribe registers fn and returns its unsubscribe.
func (m *Machine) Subscribe(fn func(Sync)) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
