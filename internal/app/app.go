// Package app assembles the local cache, remote store, session, tracker and
// access service, and reacts to sign-in and sign-out.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/config"
	"github.com/nissyi-gh/taskr/internal/connectivity"
	"github.com/nissyi-gh/taskr/internal/migrate"
	"github.com/nissyi-gh/taskr/internal/preset"
	"github.com/nissyi-gh/taskr/internal/remote"
	"github.com/nissyi-gh/taskr/internal/service"
	"github.com/nissyi-gh/taskr/internal/store"
	"go.uber.org/zap"
)

// App is the running client.
type App struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Store    *store.TaskStore
	Session  *auth.Session
	Tracker  *connectivity.Tracker
	Service  *service.Service
	Migrator *migrate.Migrator

	ctx    context.Context
	cancel context.CancelFunc
	probe  connectivity.Probe
	unsubs []func()
	closer func() error

	mu        sync.Mutex
	migration *MigrationResult
	// migrating serializes migration runs.
	migrating sync.Mutex
}

// MigrationResult is the outcome of the migration run on the last sign-in.
type MigrationResult struct {
	Report migrate.Report
	Err    error
}

// errQueueNotDrained blocks a resumed migration until queued changes have
// been replayed, so a queued add is not uploaded twice.
var errQueueNotDrained = errors.New("pending changes must be replayed before migrating")

// Option customizes New.
type Option func(*options)

type options struct {
	backend remote.Backend
	probe   connectivity.Probe
}

// WithBackend replaces the configured remote backend.
func WithBackend(b remote.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithProbe replaces the TCP reachability probe.
func WithProbe(p connectivity.Probe) Option {
	return func(o *options) { o.probe = p }
}

// New opens the cache, restores any saved session and wires the graph.
// Presets are seeded into an empty cache on the first signed-out start.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, Store: st, closer: func() error { return nil }}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	backend := o.backend
	switch {
	case backend != nil:
	case cfg.RemoteEnabled():
		lazy := remote.NewLazy(func() (*remote.GormBackend, error) {
			return remote.OpenMySQL(cfg.Remote.DSN, log)
		}, cfg.Remote.Timeout)
		backend, a.closer = lazy, lazy.Close
	default:
		backend = remote.Disabled{}
	}

	a.probe = o.probe
	if a.probe == nil && cfg.ProbeAddr() != "" {
		a.probe = connectivity.DialProbe(cfg.ProbeAddr(), cfg.Remote.Timeout)
	}
	online := cfg.RemoteEnabled() || o.backend != nil
	if online && a.probe != nil {
		online = a.probe(ctx) == nil
	}

	a.Session = auth.NewSession(cfg.Auth.JWTSecret, st, log)
	if err := a.Session.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Tracker = connectivity.NewTracker(online, log)
	adapter := remote.NewAdapter(backend, a.Session, log)
	a.Service = service.New(st, adapter, a.Session, a.Tracker, log,
		service.WithBeforeMirror(a.resumeMigration))
	a.Migrator = migrate.New(st, adapter, log)

	a.Tracker.OnReconnect(func(ctx context.Context) error {
		if _, err := a.Service.FlushPending(ctx); err != nil {
			return err
		}
		return a.resumeMigration(ctx)
	})
	a.unsubs = append(a.unsubs, a.Session.Subscribe(a.onAuth))

	unsynced, err := a.unsynced(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if unsynced {
		a.Tracker.MarkUnsynced()
	}

	if cfg.Presets && a.Session.CurrentUser() == nil {
		seeded, err := preset.Seed(ctx, st, time.Now(), func() string { return uuid.New().String() })
		if err != nil {
			a.Close()
			return nil, err
		}
		if seeded {
			log.Infow("seeded onboarding tasks")
		}
	}
	return a, nil
}

// unsynced reports whether the cache holds work the remote store has not
// seen: queued changes or an unfinished migration.
func (a *App) unsynced(ctx context.Context) (bool, error) {
	if a.Session.CurrentUser() == nil {
		return false, nil
	}
	pending, err := a.Store.ReadPendingChanges(ctx)
	if err != nil {
		return false, fmt.Errorf("read pending changes: %w", err)
	}
	_, unfinished, err := a.Store.Meta(ctx, migrate.PendingKey)
	if err != nil {
		return false, fmt.Errorf("read migration state: %w", err)
	}
	return len(pending) > 0 || unfinished, nil
}

func (a *App) onAuth(ev auth.Event) {
	if ev.User == nil {
		if err := a.Service.ResetLocal(a.ctx); err != nil {
			a.Log.Errorw("clearing local cache after sign-out failed", "error", err)
		}
		if err := a.Store.DeleteMeta(a.ctx, migrate.PendingKey); err != nil {
			a.Log.Errorw("clearing migration state after sign-out failed", "error", err)
		}
		return
	}

	a.migrating.Lock()
	res := &MigrationResult{}
	res.Report, res.Err = a.Migrator.Run(a.ctx)
	if res.Err != nil {
		a.Log.Warnw("migration after sign-in failed, will retry", "user", ev.User.ID, "error", res.Err)
		if err := a.Store.SetMeta(a.ctx, migrate.PendingKey, ev.User.ID); err != nil {
			a.Log.Errorw("recording pending migration failed", "error", err)
		}
		a.Tracker.MarkUnsynced()
	} else if err := a.Store.DeleteMeta(a.ctx, migrate.PendingKey); err != nil {
		a.Log.Errorw("clearing migration state failed", "error", err)
	}
	a.migrating.Unlock()

	a.mu.Lock()
	a.migration = res
	a.mu.Unlock()
}

// resumeMigration re-runs a sign-in migration that did not complete. Until
// it succeeds the remote set must not replace the cache, since the cache
// still holds tasks created before sign-in.
func (a *App) resumeMigration(ctx context.Context) error {
	a.migrating.Lock()
	defer a.migrating.Unlock()

	_, pending, err := a.Store.Meta(ctx, migrate.PendingKey)
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}
	if !pending {
		return nil
	}
	queued, err := a.Store.ReadPendingChanges(ctx)
	if err != nil {
		return fmt.Errorf("read pending changes: %w", err)
	}
	if len(queued) > 0 {
		return errQueueNotDrained
	}

	rep, err := a.Migrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("resume migration: %w", err)
	}
	if err := a.Store.DeleteMeta(ctx, migrate.PendingKey); err != nil {
		return fmt.Errorf("clear migration state: %w", err)
	}
	a.Log.Infow("resumed migration finished", "migrated", rep.Migrated, "skipped", rep.Skipped)

	a.mu.Lock()
	a.migration = &MigrationResult{Report: rep}
	a.mu.Unlock()
	return nil
}

// SignIn validates token and starts the session. Local tasks are migrated
// before it returns; the migration outcome is reported alongside.
func (a *App) SignIn(ctx context.Context, token string) (*auth.User, *MigrationResult, error) {
	a.mu.Lock()
	a.migration = nil
	a.mu.Unlock()

	user, err := a.Session.SignIn(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return user, a.migration, nil
}

// SignOut replays what it can, then ends the session, which clears the
// cache and the queue. Changes still queued at that point are dropped and
// logged.
func (a *App) SignOut(ctx context.Context) error {
	if a.Session.CurrentUser() == nil {
		return a.Session.SignOut(ctx)
	}
	rep, err := a.Service.FlushPending(ctx)
	switch {
	case errors.Is(err, service.ErrOffline):
	case err != nil:
		a.Log.Warnw("flush before sign-out failed", "error", err)
	}
	if pending, err := a.Store.ReadPendingChanges(ctx); err == nil && len(pending) > 0 {
		a.Log.Warnw("dropping unsynced changes on sign-out", "count", len(pending), "replayed", rep.Replayed)
	}
	return a.Session.SignOut(ctx)
}

// CheckConnectivity probes once and records the result.
func (a *App) CheckConnectivity(ctx context.Context) error {
	if a.probe == nil {
		return nil
	}
	return a.Tracker.SetOnline(ctx, a.probe(ctx) == nil)
}

// Watch polls connectivity until ctx is done. It returns at once when no
// probe is configured.
func (a *App) Watch(ctx context.Context) {
	if a.probe == nil {
		return
	}
	interval := a.Config.Connectivity.ProbeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	a.Tracker.Watch(ctx, a.probe, interval)
}

// Close releases every resource.
func (a *App) Close() error {
	a.cancel()
	for _, unsub := range a.unsubs {
		unsub()
	}
	var errs []error
	if err := a.closer(); err != nil {
		errs = append(errs, fmt.Errorf("close remote store: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errs...)
}
