package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nissyi-gh/taskr/internal/store"
	"go.uber.org/zap"
)

// Logger returns a logger that discards everything.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OpenStore opens a throwaway SQLite cache closed at test cleanup.
func OpenStore(t *testing.T) *store.TaskStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "taskr.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Clock is a manual clock that advances one second per reading.
type Clock struct {
	mu  sync.Mutex
	cur time.Time
}

func NewClock() *Clock {
	return &Clock{cur: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// Network is a settable connectivity stand-in.
type Network struct {
	mu       sync.Mutex
	offline  bool
	unsynced int
}

func (n *Network) SetOffline(off bool) {
	n.mu.Lock()
	n.offline = off
	n.mu.Unlock()
}

func (n *Network) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.offline
}

func (n *Network) MarkUnsynced() {
	n.mu.Lock()
	n.unsynced++
	n.mu.Unlock()
}

// Unsynced returns how often MarkUnsynced was called.
func (n *Network) Unsynced() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unsynced
}
