// Package engine implements the local/cloud reconciliation core.
//
// The engine routes reads and writes for named streams between the local
// store and the remote store based on the authentication session, performs
// the one-time local-to-cloud migration on first sign-in, and exposes the
// subscription and write primitives feature stores are built on.
//
// Error policy: every remote failure is terminal here. It is logged and
// translated into state (a fallback read, a toggled syncing flag), never
// re-raised to callers. The local store is written synchronously before any
// remote write, so a crash mid-sync loses nothing.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nexusapp/nexus/internal/identity"
	"github.com/nexusapp/nexus/internal/local"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
)

// Storage modes reported in SyncState.
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// DefaultRemoteTimeout bounds individual remote calls. A hung remote call
// otherwise leaves the syncing flag stuck until it resolves.
const DefaultRemoteTimeout = 15 * time.Second

// SyncState is the process-wide sync status, scoped to the current session.
type SyncState struct {
	IsSyncing    bool
	LastSyncedAt *time.Time
	HasMigrated  bool
	StorageMode  string
}

// MigrationResult reports what MigrateLocalToCloud did.
type MigrationResult struct {
	Migrated bool
	Reason   string   // set when skipped: cloud_data_exists, already_migrated, not_authenticated
	Pushed   []string // stream names pushed to the cloud
}

// Engine reconciles the local store and the remote store for all streams.
// Construct one per process with New and hand it to each feature store.
type Engine struct {
	local  *local.Store
	remote remote.Store
	logger *log.Logger

	timeout time.Duration

	mu          sync.Mutex
	session     identity.Session
	hasMigrated bool
	syncing     int
	lastSynced  *time.Time
	sessCtx     context.Context
	sessCancel  context.CancelFunc
	subCancels  map[int]remote.CancelFunc
	nextSubID   int

	saves sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithRemoteTimeout overrides the per-call remote timeout.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates a sync engine over the given stores.
//
// If logger is nil, a default logger writing to stderr is used.
func New(localStore *local.Store, remoteStore remote.Store, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	e := &Engine{
		local:      localStore,
		remote:     remoteStore,
		logger:     logger,
		timeout:    DefaultRemoteTimeout,
		subCancels: make(map[int]remote.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind wires the engine to an identity manager: session changes route
// reads/writes, the first authenticated transition triggers migration, and
// sign-out resets sync state and stops subscriptions. Returns a cancel
// function for teardown.
func (e *Engine) Bind(idm *identity.Manager) func() {
	e.SetSession(idm.Session())
	return idm.Watch(e.SetSession)
}

// SetSession applies a new identity session.
//
// The transition into an authenticated, non-loading session starts the
// one-time migration in the background. Repeated callbacks with the same
// session do not re-trigger it.
func (e *Engine) SetSession(s identity.Session) {
	e.mu.Lock()
	prev := e.session
	e.session = s

	if !s.IsAuthenticated && prev.IsAuthenticated {
		// Sign-out: reset per-session state and drop live feeds.
		e.hasMigrated = false
		e.lastSynced = nil
		cancels := e.takeSubCancelsLocked()
		if e.sessCancel != nil {
			e.sessCancel()
			e.sessCtx, e.sessCancel = nil, nil
		}
		e.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		e.logger.Printf("Signed out, sync state reset")
		return
	}

	if s.IsAuthenticated && !s.IsLoading && !prev.IsAuthenticated {
		e.sessCtx, e.sessCancel = context.WithCancel(context.Background())
		ctx := e.sessCtx
		e.mu.Unlock()
		e.logger.Printf("Signed in as %s, starting migration check", s.UserID)
		e.saves.Add(1)
		go func() {
			defer e.saves.Done()
			if _, err := e.MigrateLocalToCloud(ctx); err != nil {
				e.logger.Printf("Migration failed: %v", err)
			}
		}()
		return
	}

	e.mu.Unlock()
}

// State returns the current sync state snapshot.
func (e *Engine) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := ModeLocal
	if e.session.IsAuthenticated {
		mode = ModeCloud
	}
	return SyncState{
		IsSyncing:    e.syncing > 0,
		LastSyncedAt: e.lastSynced,
		HasMigrated:  e.hasMigrated,
		StorageMode:  mode,
	}
}

// Flush waits for all in-flight background remote writes. Call before
// process exit and in tests.
func (e *Engine) Flush() {
	e.saves.Wait()
}

// Load reads the current value of a stream.
//
// Authenticated sessions read from the remote store; any remote failure is
// logged and answered from the local store instead, never surfaced. Guest
// sessions read the local store directly with no remote call.
func (e *Engine) Load(ctx context.Context, name stream.Name) (json.RawMessage, error) {
	uid, authed := e.currentUser()
	if !authed {
		return e.local.GetContext(ctx, name.LocalKey())
	}

	value, err := e.loadRemote(ctx, uid, name)
	if err != nil {
		e.logger.Printf("Error loading %s from cloud, falling back to local: %v", name, err)
		return e.local.GetContext(ctx, name.LocalKey())
	}
	return value, nil
}

func (e *Engine) loadRemote(ctx context.Context, uid string, name stream.Name) (json.RawMessage, error) {
	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	if name.IsCollection() {
		items, err := e.remote.ListItems(rctx, uid, name)
		if err != nil {
			return nil, err
		}
		return itemsToJSON(items)
	}

	doc, err := e.remote.GetDocument(rctx, uid, name)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Value, nil
}

// Save persists a stream value.
//
// The local store is written synchronously first, so the value survives
// even if the process dies before the cloud write lands. When
// authenticated, the remote write then runs in the background; its failure
// is logged but neither rolls back the local write nor reaches the caller.
// Concurrent saves to the same stream are last-write-wins at the remote.
func (e *Engine) Save(ctx context.Context, name stream.Name, value json.RawMessage) error {
	if err := e.local.PutContext(ctx, name.LocalKey(), value); err != nil {
		return err
	}

	uid, authed := e.currentUser()
	if !authed {
		return nil
	}

	e.saves.Add(1)
	go func() {
		defer e.saves.Done()
		e.beginSync()
		defer e.endSync()

		if err := e.pushStream(context.Background(), uid, name, value); err != nil {
			e.logger.Printf("Error syncing %s to cloud: %v", name, err)
			return
		}
		e.markSynced()
	}()
	return nil
}

// SaveLocal writes a stream value to the local store only. Feature stores
// that issue their own per-item remote mutations persist through this.
func (e *Engine) SaveLocal(name stream.Name, value json.RawMessage) error {
	return e.local.Put(name.LocalKey(), value)
}

// pushStream writes one stream's full value to the remote store. Collection
// streams are replaced wholesale in one batch so the remote exactly mirrors
// the given value; document streams get a fresh envelope timestamp.
func (e *Engine) pushStream(ctx context.Context, uid string, name stream.Name, value json.RawMessage) error {
	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	if name.IsCollection() {
		items, err := itemsFromJSON(value)
		if err != nil {
			return fmt.Errorf("invalid collection value: %w", err)
		}
		return e.remote.ReplaceItems(rctx, uid, name, items)
	}

	doc := stream.Document{Value: value, UpdatedAt: time.Now().UTC()}
	return e.remote.SetDocument(rctx, uid, name, doc)
}

// PutItem merge-writes one collection item to the remote store. Guest
// sessions are a no-op. Unlike Save, the error is returned: feature stores
// roll back their optimistic state on failure.
func (e *Engine) PutItem(ctx context.Context, name stream.Name, item stream.Item) error {
	uid, authed := e.currentUser()
	if !authed {
		return nil
	}

	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	e.beginSync()
	defer e.endSync()

	if err := e.remote.PutItem(rctx, uid, name, item); err != nil {
		e.logger.Printf("Error writing %s item %s to cloud: %v", name, item.ID, err)
		return err
	}
	e.markSynced()
	return nil
}

// DeleteItem removes one collection item from the remote store. Guest
// sessions are a no-op; the error is returned for rollback handling.
func (e *Engine) DeleteItem(ctx context.Context, name stream.Name, itemID string) error {
	uid, authed := e.currentUser()
	if !authed {
		return nil
	}

	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	e.beginSync()
	defer e.endSync()

	if err := e.remote.DeleteItem(rctx, uid, name, itemID); err != nil {
		e.logger.Printf("Error deleting %s item %s from cloud: %v", name, itemID, err)
		return err
	}
	e.markSynced()
	return nil
}

// Subscribe opens a live feed of remote changes to the stream and invokes
// fn for each event. In guest mode there are no live updates and the
// returned cancel is a no-op. The cancel function is idempotent, and all
// feeds stop automatically on sign-out.
func (e *Engine) Subscribe(name stream.Name, fn func(remote.Event)) remote.CancelFunc {
	e.mu.Lock()
	uid := e.session.UserID
	authed := e.session.IsAuthenticated
	ctx := e.sessCtx
	e.mu.Unlock()

	if !authed {
		return func() {}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ch, cancel, err := e.remote.Subscribe(ctx, uid, name)
	if err != nil {
		e.logger.Printf("Error subscribing to %s: %v", name, err)
		return func() {}
	}

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subCancels[id] = cancel
	e.mu.Unlock()

	go func() {
		for ev := range ch {
			fn(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subCancels, id)
			e.mu.Unlock()
			cancel()
		})
	}
}

// MigrateLocalToCloud pushes pre-existing local data into the remote store
// the first time a session authenticates.
//
// The migration runs at most once per session. If the remote already has a
// user profile document the cloud data wins: nothing is pushed and the
// skip reason is recorded. Otherwise every local stream with data is pushed.
func (e *Engine) MigrateLocalToCloud(ctx context.Context) (MigrationResult, error) {
	e.mu.Lock()
	uid := e.session.UserID
	authed := e.session.IsAuthenticated
	if !authed {
		e.mu.Unlock()
		return MigrationResult{Reason: "not_authenticated"}, nil
	}
	if e.hasMigrated {
		e.mu.Unlock()
		return MigrationResult{Reason: "already_migrated"}, nil
	}
	// Claim the migration before releasing the lock so a concurrent call
	// sees it as done.
	e.hasMigrated = true
	e.mu.Unlock()

	e.beginSync()
	defer e.endSync()

	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	profile, err := e.remote.GetDocument(rctx, uid, stream.User)
	if err != nil {
		// Can't tell whether cloud data exists; release the claim so a
		// later call can retry.
		e.mu.Lock()
		e.hasMigrated = false
		e.mu.Unlock()
		return MigrationResult{}, fmt.Errorf("failed to check cloud profile: %w", err)
	}
	if profile != nil {
		e.logger.Printf("Cloud data exists, skipping migration")
		return MigrationResult{Reason: "cloud_data_exists"}, nil
	}

	result := MigrationResult{Migrated: true}
	for _, name := range stream.All() {
		value, err := e.local.GetContext(ctx, name.LocalKey())
		if err != nil {
			e.logger.Printf("Migration: error reading local %s: %v", name, err)
			continue
		}
		if value == nil {
			continue
		}
		if err := e.pushStream(ctx, uid, name, value); err != nil {
			e.logger.Printf("Migration: error pushing %s: %v", name, err)
			continue
		}
		result.Pushed = append(result.Pushed, string(name))
	}

	e.markSynced()
	e.logger.Printf("Migration complete: pushed %d streams", len(result.Pushed))
	return result, nil
}

// currentUser returns the session's user id and whether it is usable for
// remote routing.
func (e *Engine) currentUser() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.UserID, e.session.IsAuthenticated && e.session.UserID != ""
}

func (e *Engine) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) beginSync() {
	e.mu.Lock()
	e.syncing++
	e.mu.Unlock()
}

func (e *Engine) endSync() {
	e.mu.Lock()
	e.syncing--
	e.mu.Unlock()
}

func (e *Engine) markSynced() {
	now := time.Now()
	e.mu.Lock()
	e.lastSynced = &now
	e.mu.Unlock()
}

// takeSubCancelsLocked empties the subscription registry and returns the
// cancel functions. Caller holds e.mu.
func (e *Engine) takeSubCancelsLocked() []remote.CancelFunc {
	cancels := make([]remote.CancelFunc, 0, len(e.subCancels))
	for _, c := range e.subCancels {
		cancels = append(cancels, c)
	}
	e.subCancels = make(map[int]remote.CancelFunc)
	return cancels
}

// itemsFromJSON splits a JSON array of objects into collection items keyed
// by each object's "id" field.
func itemsFromJSON(value json.RawMessage) ([]stream.Item, error) {
	if len(value) == 0 {
		return []stream.Item{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(value, &elems); err != nil {
		return nil, err
	}
	items := make([]stream.Item, 0, len(elems))
	for i, raw := range elems {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		id, err := itemID(probe.ID)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, stream.Item{ID: id, Data: raw})
	}
	return items, nil
}

// itemID normalizes a JSON id value (number or string) to its string form.
func itemID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("missing id")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("unsupported id value %s", raw)
}

// itemsToJSON flattens collection items back into a JSON array of their
// bodies, preserving order.
func itemsToJSON(items []stream.Item) (json.RawMessage, error) {
	elems := make([]json.RawMessage, len(items))
	for i, it := range items {
		elems[i] = it.Data
	}
	return json.Marshal(elems)
}
