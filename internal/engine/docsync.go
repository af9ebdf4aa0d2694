package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexusapp/nexus/internal/stream"
)

// ReconcileDocument merges a document stream between the local and remote
// stores and returns the winning value.
//
// Documents are edited as whole units, so the merge is timestamp-based: the
// side with the newer lastModified wins and overwrites the other. When only
// one side has data it wins unconditionally. Remote failures leave the
// local value in place and are not surfaced.
func (e *Engine) ReconcileDocument(ctx context.Context, name stream.Name) (json.RawMessage, error) {
	if name.IsCollection() {
		return nil, fmt.Errorf("stream %s is a collection, not a document", name)
	}

	localValue, err := e.local.GetContext(ctx, name.LocalKey())
	if err != nil {
		return nil, err
	}

	uid, authed := e.currentUser()
	if !authed {
		return localValue, nil
	}

	localTime, _ := e.local.UpdatedAt(name.LocalKey())

	rctx, cancel := e.remoteCtx(ctx)
	remoteDoc, err := e.remote.GetDocument(rctx, uid, name)
	cancel()
	if err != nil {
		e.logger.Printf("Error reading %s from cloud during reconcile: %v", name, err)
		return localValue, nil
	}

	switch {
	case remoteDoc == nil && localValue == nil:
		return nil, nil

	case remoteDoc == nil:
		// Only local has data: push it up, keeping its timestamp.
		e.pushDocument(ctx, uid, name, localValue, localTime)
		return localValue, nil

	case localValue == nil:
		// Only remote has data: pull it down.
		if err := e.local.PutContext(ctx, name.LocalKey(), remoteDoc.Value); err != nil {
			return nil, err
		}
		return remoteDoc.Value, nil

	case remoteDoc.UpdatedAt.After(localTime):
		e.logger.Printf("Reconcile %s: cloud copy newer, adopting", name)
		if err := e.local.PutContext(ctx, name.LocalKey(), remoteDoc.Value); err != nil {
			return nil, err
		}
		return remoteDoc.Value, nil

	default:
		e.logger.Printf("Reconcile %s: local copy newer, pushing", name)
		e.pushDocument(ctx, uid, name, localValue, localTime)
		return localValue, nil
	}
}

// pushDocument writes a document envelope to the remote store, logging
// rather than propagating failure.
func (e *Engine) pushDocument(ctx context.Context, uid string, name stream.Name, value json.RawMessage, modified time.Time) {
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	doc := stream.Document{Value: value, UpdatedAt: modified}
	if err := e.remote.SetDocument(rctx, uid, name, doc); err != nil {
		e.logger.Printf("Error pushing %s during reconcile: %v", name, err)
	}
}
