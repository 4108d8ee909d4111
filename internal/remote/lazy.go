package remote

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Opener connects to the remote store.
type Opener func() (*GormBackend, error)

// Lazy defers connecting until the first call and retries the connection
// on later calls after a failure, so the client starts while offline.
// Each call is bounded by timeout when it is positive.
type Lazy struct {
	open    Opener
	timeout time.Duration

	mu      sync.Mutex
	backend *GormBackend
}

// NewLazy returns a backend that connects through open on first use.
func NewLazy(open Opener, timeout time.Duration) *Lazy {
	return &Lazy{open: open, timeout: timeout}
}

func (l *Lazy) get() (*GormBackend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		return l.backend, nil
	}
	b, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("connect remote store: %w", err)
	}
	l.backend = b
	return b, nil
}

func (l *Lazy) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Lazy) SelectByOwner(ctx context.Context, owner string) ([]Row, error) {
	b, err := l.get()
	if err != nil {
		return nil, err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return b.SelectByOwner(ctx, owner)
}

func (l *Lazy) Insert(ctx context.Context, row Row) (Row, error) {
	b, err := l.get()
	if err != nil {
		return Row{}, err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return b.Insert(ctx, row)
}

func (l *Lazy) UpdateFields(ctx context.Context, id, owner string, fields map[string]any) (Row, error) {
	b, err := l.get()
	if err != nil {
		return Row{}, err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return b.UpdateFields(ctx, id, owner, fields)
}

func (l *Lazy) Delete(ctx context.Context, id, owner string) (bool, error) {
	b, err := l.get()
	if err != nil {
		return false, err
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return b.Delete(ctx, id, owner)
}

// Close releases the pool if a connection was ever made.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	return err
}
