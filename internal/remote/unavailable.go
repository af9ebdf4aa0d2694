package remote

import (
	"context"

	"github.com/nexusapp/nexus/internal/stream"
)

// Unavailable returns a Store whose every call fails with ErrUnavailable.
// It stands in when no sync server is configured or reachable, exercising
// the same local-fallback paths as a mid-session outage.
func Unavailable() Store {
	return unavailable{}
}

type unavailable struct{}

func (unavailable) GetDocument(context.Context, string, stream.Name) (*stream.Document, error) {
	return nil, ErrUnavailable
}

func (unavailable) SetDocument(context.Context, string, stream.Name, stream.Document) error {
	return ErrUnavailable
}

func (unavailable) ListItems(context.Context, string, stream.Name) ([]stream.Item, error) {
	return nil, ErrUnavailable
}

func (unavailable) PutItem(context.Context, string, stream.Name, stream.Item) error {
	return ErrUnavailable
}

func (unavailable) DeleteItem(context.Context, string, stream.Name, string) error {
	return ErrUnavailable
}

func (unavailable) ReplaceItems(context.Context, string, stream.Name, []stream.Item) error {
	return ErrUnavailable
}

func (unavailable) Subscribe(context.Context, string, stream.Name) (<-chan Event, CancelFunc, error) {
	return nil, nil, ErrUnavailable
}
