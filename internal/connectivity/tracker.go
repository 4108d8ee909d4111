// Package connectivity tracks whether the remote store is reachable and
// drives the UI sync indicator.
package connectivity

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nissyi-gh/taskr/internal/status"
	"go.uber.org/zap"
)

// Event is delivered whenever the online flag or the indicator changes.
type Event struct {
	Online bool
	Status status.Sync
}

// Probe reports whether the remote store is reachable.
type Probe func(ctx context.Context) error

// DialProbe returns a probe that opens and closes a TCP connection to addr.
func DialProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn.Close()
	}
}

// Tracker holds the online flag and the indicator status. The indicator is
// independent of the access service's per-call status.
type Tracker struct {
	mu          sync.Mutex
	online      bool
	onReconnect func(context.Context) error
	subs        map[int]func(Event)
	next        int

	status *status.Machine
	log    *zap.SugaredLogger
}

// NewTracker creates a tracker in the given connectivity state.
func NewTracker(online bool, log *zap.SugaredLogger) *Tracker {
	t := &Tracker{
		online: online,
		subs:   make(map[int]func(Event)),
		status: status.NewMachine(),
		log:    log,
	}
	t.status.Subscribe(func(status.Sync) { t.notify() })
	return t
}

// OnReconnect sets the callback that drains pending changes once the
// remote store becomes reachable again.
func (t *Tracker) OnReconnect(fn func(context.Context) error) {
	t.mu.Lock()
	t.onReconnect = fn
	t.mu.Unlock()
}

// Online reports the last observed connectivity.
func (t *Tracker) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Status returns the indicator state.
func (t *Tracker) Status() status.Sync {
	return t.status.Current()
}

// MarkUnsynced records that local changes are waiting for the remote store.
func (t *Tracker) MarkUnsynced() {
	if t.status.Current() != status.Syncing {
		t.status.Set(status.Unsynced)
	}
}

// SetOnline records a connectivity transition. Coming back online runs the
// reconnect callback; its error is returned and shown as status.Error.
func (t *Tracker) SetOnline(ctx context.Context, online bool) error {
	t.mu.Lock()
	if t.online == online {
		t.mu.Unlock()
		return nil
	}
	t.online = online
	drain := t.onReconnect
	t.mu.Unlock()

	if !online {
		t.log.Infow("connectivity lost")
		t.notify()
		return nil
	}

	t.log.Infow("connectivity restored")
	t.notify()
	if drain == nil {
		return nil
	}
	t.status.Begin()
	err := drain(ctx)
	if err != nil {
		t.log.Warnw("draining pending changes failed", "error", err)
	}
	t.status.End(err)
	return err
}

// Watch polls probe every interval until ctx is done.
func (t *Tracker) Watch(ctx context.Context, probe Probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := probe(pctx)
		cancel()
		if err != nil && ctx.Err() != nil {
			return
		}
		t.SetOnline(ctx, err == nil)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Subscribe registers fn and returns its unsubscribe.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) notify() {
	t.mu.Lock()
	ev := Event{Online: t.online, Status: t.status.Current()}
	fns := make([]func(Event), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
