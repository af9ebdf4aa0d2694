package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexusapp/nexus/internal/stream"
)

// Memory is an in-memory Store. It backs the wire server and is the
// authoritative double in tests: it preserves collection insertion order,
// fans out change events to subscribers, and can be told to reject writes
// to exercise rollback paths.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[stream.Name]stream.Document
	items    map[string]map[stream.Name][]stream.Item
	subs     map[string]map[stream.Name]map[int]chan Event
	nextSub  int
	writeErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]map[stream.Name]stream.Document),
		items: make(map[string]map[stream.Name][]stream.Item),
		subs:  make(map[string]map[stream.Name]map[int]chan Event),
	}
}

// SetWriteErr makes every subsequent write fail with err until called again
// with nil. Reads and subscriptions are unaffected.
func (m *Memory) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// GetDocument implements Store.GetDocument.
func (m *Memory) GetDocument(ctx context.Context, uid string, name stream.Name) (*stream.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[uid][name]
	if !ok {
		return nil, nil
	}
	out := doc
	return &out, nil
}

// SetDocument implements Store.SetDocument.
func (m *Memory) SetDocument(ctx context.Context, uid string, name stream.Name, doc stream.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	if m.docs[uid] == nil {
		m.docs[uid] = make(map[stream.Name]stream.Document)
	}
	m.docs[uid][name] = doc
	m.notifyLocked(uid, name)
	return nil
}

// ListItems implements Store.ListItems.
func (m *Memory) ListItems(ctx context.Context, uid string, name stream.Name) ([]stream.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.items[uid][name]), nil
}

// PutItem implements Store.PutItem. The write is a shallow JSON merge with
// any existing item body.
func (m *Memory) PutItem(ctx context.Context, uid string, name stream.Name, item stream.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	if m.items[uid] == nil {
		m.items[uid] = make(map[stream.Name][]stream.Item)
	}

	coll := m.items[uid][name]
	for i := range coll {
		if coll[i].ID == item.ID {
			merged, err := mergeJSON(coll[i].Data, item.Data)
			if err != nil {
				return fmt.Errorf("failed to merge item %s: %w", item.ID, err)
			}
			coll[i].Data = merged
			m.notifyLocked(uid, name)
			return nil
		}
	}

	m.items[uid][name] = append(coll, item)
	m.notifyLocked(uid, name)
	return nil
}

// DeleteItem implements Store.DeleteItem.
func (m *Memory) DeleteItem(ctx context.Context, uid string, name stream.Name, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	coll := m.items[uid][name]
	for i := range coll {
		if coll[i].ID == itemID {
			m.items[uid][name] = append(coll[:i:i], coll[i+1:]...)
			m.notifyLocked(uid, name)
			return nil
		}
	}
	return nil
}

// ReplaceItems implements Store.ReplaceItems.
func (m *Memory) ReplaceItems(ctx context.Context, uid string, name stream.Name, items []stream.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	if m.items[uid] == nil {
		m.items[uid] = make(map[stream.Name][]stream.Item)
	}
	m.items[uid][name] = cloneItems(items)
	m.notifyLocked(uid, name)
	return nil
}

// Subscribe implements Store.Subscribe. The feed channel is buffered; a
// subscriber that stops draining loses events rather than blocking writers.
func (m *Memory) Subscribe(ctx context.Context, uid string, name stream.Name) (<-chan Event, CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[uid] == nil {
		m.subs[uid] = make(map[stream.Name]map[int]chan Event)
	}
	if m.subs[uid][name] == nil {
		m.subs[uid][name] = make(map[int]chan Event)
	}

	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 32)
	m.subs[uid][name][id] = ch

	// Deliver the current snapshot immediately so the subscriber can make
	// its first-sync merge decision even when nothing changes afterwards.
	ch <- m.snapshotLocked(uid, name)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if subs, ok := m.subs[uid][name]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
			}
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// snapshotLocked builds the current Event snapshot of (uid, name).
// Caller holds m.mu.
func (m *Memory) snapshotLocked(uid string, name stream.Name) Event {
	ev := Event{Stream: name}
	if name.IsCollection() {
		ev.Items = cloneItems(m.items[uid][name])
		if ev.Items == nil {
			ev.Items = []stream.Item{}
		}
	} else {
		if doc, ok := m.docs[uid][name]; ok {
			d := doc
			ev.Doc = &d
		}
	}
	return ev
}

// notifyLocked delivers the current snapshot of (uid, name) to every
// subscriber. Caller holds m.mu.
func (m *Memory) notifyLocked(uid string, name stream.Name) {
	subs := m.subs[uid][name]
	if len(subs) == 0 {
		return
	}

	ev := m.snapshotLocked(uid, name)
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it will catch up on the next event.
		}
	}
}

// cloneItems deep-copies an item slice so callers never alias store state.
func cloneItems(items []stream.Item) []stream.Item {
	if items == nil {
		return nil
	}
	out := make([]stream.Item, len(items))
	for i, it := range items {
		out[i] = stream.Item{ID: it.ID, Data: append(json.RawMessage(nil), it.Data...)}
	}
	return out
}

// mergeJSON shallow-merges the patch object into base. Non-object values
// replace base entirely.
func mergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	var baseMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return patch, nil
	}
	var patchMap map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return patch, nil
	}
	for k, v := range patchMap {
		baseMap[k] = v
	}
	return json.Marshal(baseMap)
}
