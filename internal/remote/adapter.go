// Package remote maps tasks to and from the hosted store's rows and issues
// owner-scoped CRUD calls. Failures are logged and reported as nil, false
// or an empty result so callers can fall back uniformly.
package remote

import (
	"context"
	"time"

	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/model"
	"go.uber.org/zap"
)

// Owner yields the authenticated user whose rows are visible.
type Owner interface {
	CurrentUser() *auth.User
}

// Adapter translates between model.Task and Row.
type Adapter struct {
	backend Backend
	owner   Owner
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewAdapter scopes backend calls to the signed-in owner.
func NewAdapter(backend Backend, owner Owner, log *zap.SugaredLogger) *Adapter {
	return &Adapter{backend: backend, owner: owner, log: log, now: time.Now}
}

func (a *Adapter) ownerID() (string, bool) {
	u := a.owner.CurrentUser()
	if u == nil || u.ID == "" {
		return "", false
	}
	return u.ID, true
}

// List returns the owner's top-level tasks, newest first, with subtasks
// nested. ok is false when there is no session or the call failed.
func (a *Adapter) List(ctx context.Context) ([]model.Task, bool) {
	owner, ok := a.ownerID()
	if !ok {
		return nil, false
	}
	rows, err := a.backend.SelectByOwner(ctx, owner)
	if err != nil {
		a.log.Errorw("fetching remote tasks failed", "error", err)
		return nil, false
	}
	flat := make([]model.Task, len(rows))
	for i, r := range rows {
		flat[i] = r.Task()
	}
	return model.Assemble(flat), true
}

// Create writes t as a new row and returns the saved shape, or nil on
// failure. Only t itself is written; subtasks are created separately.
func (a *Adapter) Create(ctx context.Context, t model.Task) *model.Task {
	owner, ok := a.ownerID()
	if !ok {
		return nil
	}
	row, err := a.backend.Insert(ctx, ToRow(t, owner))
	if err != nil {
		a.log.Errorw("saving remote task failed", "task", t.ID, "error", err)
		return nil
	}
	saved := row.Task()
	return &saved
}

// Update writes only the fields present in p and refreshes updated_at.
func (a *Adapter) Update(ctx context.Context, id string, p model.Patch) *model.Task {
	owner, ok := a.ownerID()
	if !ok {
		return nil
	}
	row, err := a.backend.UpdateFields(ctx, id, owner, patchFields(p, a.now()))
	if err != nil {
		a.log.Errorw("updating remote task failed", "task", id, "error", err)
		return nil
	}
	updated := row.Task()
	return &updated
}

// Delete removes the owner's row id.
func (a *Adapter) Delete(ctx context.Context, id string) bool {
	owner, ok := a.ownerID()
	if !ok {
		return false
	}
	deleted, err := a.backend.Delete(ctx, id, owner)
	if err != nil {
		a.log.Errorw("deleting remote task failed", "task", id, "error", err)
		return false
	}
	return deleted
}
