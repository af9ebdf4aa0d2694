// Package remote defines the document-store capability the sync engine is
// written against, plus an in-memory implementation.
//
// The remote store holds a per-user namespace keyed by user id. Document
// streams live at users/{uid}/data/{stream} wrapped in an envelope carrying
// an updatedAt timestamp; collection streams live at users/{uid}/{stream}/
// {itemId} with the item itself as the document body.
//
// Every call can fail: the store may be unreachable at any point, and
// callers are expected to degrade to local-only operation without data loss.
package remote

import (
	"context"
	"errors"

	"github.com/nexusapp/nexus/internal/stream"
)

// ErrUnavailable indicates the remote store cannot be reached. Callers
// treat this like any other transient failure: log and fall back.
var ErrUnavailable = errors.New("remote store unavailable")

// Event is one change-feed notification for a subscribed stream. Exactly
// one of Items or Doc is set depending on the stream shape. Items is the
// full collection snapshot after the change, in insertion order.
type Event struct {
	Stream stream.Name
	Items  []stream.Item
	Doc    *stream.Document
}

// CancelFunc stops a subscription. Safe to call more than once.
type CancelFunc func()

// Store is the abstract document-store capability.
//
// Implementations must be safe for concurrent use. Writes within one user's
// namespace follow last-write-wins; no cross-call ordering is guaranteed.
type Store interface {
	// GetDocument reads a document stream. Returns (nil, nil) when the
	// document does not exist.
	GetDocument(ctx context.Context, uid string, name stream.Name) (*stream.Document, error)

	// SetDocument writes a document stream envelope, replacing any
	// existing value.
	SetDocument(ctx context.Context, uid string, name stream.Name, doc stream.Document) error

	// ListItems returns all items of a collection stream in insertion
	// order. An absent collection yields an empty slice.
	ListItems(ctx context.Context, uid string, name stream.Name) ([]stream.Item, error)

	// PutItem merge-writes a single collection item. Existing fields not
	// present in data are preserved; a missing item is created.
	PutItem(ctx context.Context, uid string, name stream.Name, item stream.Item) error

	// DeleteItem removes a single collection item. Removing a missing
	// item is not an error (idempotent).
	DeleteItem(ctx context.Context, uid string, name stream.Name, itemID string) error

	// ReplaceItems atomically replaces the whole collection: existing
	// items are deleted and the given items inserted in one batch, so
	// the remote collection exactly mirrors the caller's afterwards.
	ReplaceItems(ctx context.Context, uid string, name stream.Name, items []stream.Item) error

	// Subscribe opens a live change feed for one user's stream. Every
	// change to the stream (including the subscriber's own writes)
	// produces an Event with the full post-change snapshot. The feed
	// stops when ctx is done or the cancel function is called.
	Subscribe(ctx context.Context, uid string, name stream.Name) (<-chan Event, CancelFunc, error)
}
