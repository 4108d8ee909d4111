// Package testutil provides in-memory collaborators shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/remote"
)

// ErrMockRemote is returned by MemBackend when failure is injected.
var ErrMockRemote = errors.New("mock remote error")

// MemBackend implements remote.Backend in memory.
type MemBackend struct {
	mu      sync.Mutex
	rows    map[string]remote.Row
	seq     map[string]int
	nextSeq int

	// Fail makes every call return ErrMockRemote.
	Fail bool
	// FailInsert, when set, fails inserts for which it returns true.
	FailInsert func(remote.Row) bool
	// FailDelete, when set, fails deletes of the ids it returns true for.
	FailDelete func(id string) bool

	Inserts int
	Updates int
	Deletes int
}

func NewMemBackend() *MemBackend {
	return &MemBackend{rows: make(map[string]remote.Row), seq: make(map[string]int)}
}

func (b *MemBackend) SetFail(fail bool) {
	b.mu.Lock()
	b.Fail = fail
	b.mu.Unlock()
}

func (b *MemBackend) SelectByOwner(_ context.Context, owner string) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return nil, ErrMockRemote
	}
	var out []remote.Row
	for _, r := range b.rows {
		if r.UserID == owner {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return b.seq[out[i].ID] > b.seq[out[j].ID]
	})
	return out, nil
}

func (b *MemBackend) Insert(_ context.Context, row remote.Row) (remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail || (b.FailInsert != nil && b.FailInsert(row)) {
		return remote.Row{}, ErrMockRemote
	}
	if _, dup := b.rows[row.ID]; dup {
		return remote.Row{}, fmt.Errorf("duplicate key %s", row.ID)
	}
	b.Inserts++
	b.nextSeq++
	b.seq[row.ID] = b.nextSeq
	b.rows[row.ID] = row
	return row, nil
}

func (b *MemBackend) UpdateFields(_ context.Context, id, owner string, fields map[string]any) (remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return remote.Row{}, ErrMockRemote
	}
	r, ok := b.rows[id]
	if !ok || r.UserID != owner {
		return remote.Row{}, remote.ErrRowNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			r.Title = v.(string)
		case "description":
			r.Description = optString(v)
		case "status":
			r.Status = v.(string)
		case "due_date":
			r.DueDate = optString(v)
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		default:
			return remote.Row{}, fmt.Errorf("unknown column %s", k)
		}
	}
	b.Updates++
	b.rows[id] = r
	return r, nil
}

func (b *MemBackend) Delete(_ context.Context, id, owner string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail || (b.FailDelete != nil && b.FailDelete(id)) {
		return false, ErrMockRemote
	}
	r, ok := b.rows[id]
	if !ok || r.UserID != owner {
		return false, nil
	}
	b.Deletes++
	delete(b.rows, id)
	return true, nil
}

// Rows returns every stored row for owner, unordered.
func (b *MemBackend) Rows(owner string) []remote.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []remote.Row
	for _, r := range b.rows {
		if r.UserID == owner {
			out = append(out, r)
		}
	}
	return out
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// Owner is a settable session stand-in.
type Owner struct {
	mu   sync.Mutex
	user *auth.User
}

// NewOwner returns an Owner signed in as userID, or signed out when empty.
func NewOwner(userID string) *Owner {
	o := &Owner{}
	o.Set(userID)
	return o
}

func (o *Owner) Set(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if userID == "" {
		o.user = nil
		return
	}
	o.user = &auth.User{ID: userID}
}

func (o *Owner) CurrentUser() *auth.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user == nil {
		return nil
	}
	u := *o.user
	return &u
}
