package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
)

// Client implements remote.Store over a single WebSocket connection to a
// sync server. All methods are safe for concurrent use; requests are
// multiplexed by id and subscription pushes are routed to their feed
// channels.
//
// A dropped connection fails pending calls with remote.ErrUnavailable and
// closes all subscription feeds. The client does not reconnect; callers
// treat the failure like any other remote outage and fall back to local.
type Client struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	nextSub int64
	pending map[int64]chan Response
	feeds   map[int64]chan remote.Event
	closed  bool
}

// Dial connects to a sync server at url (e.g. ws://host:8787/sync).
func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial sync server: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[int64]chan Response),
		feeds:   make(map[int64]chan remote.Event),
	}
	go c.readLoop()
	return c, nil
}

// Close shuts the connection down. Pending calls fail and feeds close.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.fail()
	return err
}

// readLoop routes incoming frames to pending calls and subscription feeds.
func (c *Client) readLoop() {
	defer c.fail()

	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Printf("Bad frame from server: %v", err)
			continue
		}

		if frame.Push {
			c.mu.Lock()
			feed := c.feeds[frame.Sub]
			c.mu.Unlock()
			if feed == nil {
				continue
			}
			ev := remote.Event{Stream: frame.Stream, Items: frame.Items, Doc: frame.Doc}
			select {
			case feed <- ev:
			default:
				// Slow consumer; it will catch up on the next push.
			}
			continue
		}

		c.mu.Lock()
		ch := c.pending[frame.ID]
		delete(c.pending, frame.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- Response{ID: frame.ID, OK: frame.OK, Error: frame.Error, Doc: frame.Doc, Items: frame.Items, Sub: frame.Sub}
		}
	}
}

// fail terminates every pending call and subscription feed.
func (c *Client) fail() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	feeds := c.feeds
	c.pending = make(map[int64]chan Response)
	c.feeds = make(map[int64]chan remote.Event)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	for _, feed := range feeds {
		close(feed)
	}
}

// call performs one request/response exchange.
func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, remote.ErrUnavailable
	}
	c.nextID++
	req.ID = c.nextID
	ch := make(chan Response, 1)
	c.pending[req.ID] = ch
	c.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		c.drop(req.ID)
		return Response{}, err
	}

	c.writeMu.Lock()
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = c.conn.Write(wctx, websocket.MessageText, data)
	cancel()
	c.writeMu.Unlock()
	if err != nil {
		c.drop(req.ID)
		return Response{}, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		c.drop(req.ID)
		return Response{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return Response{}, remote.ErrUnavailable
		}
		if !resp.OK {
			return Response{}, fmt.Errorf("server error: %s", resp.Error)
		}
		return resp, nil
	}
}

// drop abandons a pending call after a local failure.
func (c *Client) drop(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// GetDocument implements remote.Store.
func (c *Client) GetDocument(ctx context.Context, uid string, name stream.Name) (*stream.Document, error) {
	resp, err := c.call(ctx, Request{Op: OpGetDoc, UID: uid, Stream: name})
	if err != nil {
		return nil, err
	}
	return resp.Doc, nil
}

// SetDocument implements remote.Store.
func (c *Client) SetDocument(ctx context.Context, uid string, name stream.Name, doc stream.Document) error {
	_, err := c.call(ctx, Request{Op: OpSetDoc, UID: uid, Stream: name, Doc: &doc})
	return err
}

// ListItems implements remote.Store.
func (c *Client) ListItems(ctx context.Context, uid string, name stream.Name) ([]stream.Item, error) {
	resp, err := c.call(ctx, Request{Op: OpList, UID: uid, Stream: name})
	if err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []stream.Item{}, nil
	}
	return resp.Items, nil
}

// PutItem implements remote.Store.
func (c *Client) PutItem(ctx context.Context, uid string, name stream.Name, item stream.Item) error {
	_, err := c.call(ctx, Request{Op: OpPutItem, UID: uid, Stream: name, Item: &item})
	return err
}

// DeleteItem implements remote.Store.
func (c *Client) DeleteItem(ctx context.Context, uid string, name stream.Name, itemID string) error {
	_, err := c.call(ctx, Request{Op: OpDeleteItem, UID: uid, Stream: name, ItemID: itemID})
	return err
}

// ReplaceItems implements remote.Store.
func (c *Client) ReplaceItems(ctx context.Context, uid string, name stream.Name, items []stream.Item) error {
	_, err := c.call(ctx, Request{Op: OpReplace, UID: uid, Stream: name, Items: items})
	return err
}

// Subscribe implements remote.Store. The feed is registered under a
// client-chosen id before the request is sent, so the server's initial
// snapshot push cannot be lost to a routing race.
func (c *Client) Subscribe(ctx context.Context, uid string, name stream.Name) (<-chan remote.Event, remote.CancelFunc, error) {
	feed := make(chan remote.Event, 32)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, remote.ErrUnavailable
	}
	c.nextSub++
	sub := c.nextSub
	c.feeds[sub] = feed
	c.mu.Unlock()

	if _, err := c.call(ctx, Request{Op: OpSubscribe, UID: uid, Stream: name, Sub: sub}); err != nil {
		c.mu.Lock()
		delete(c.feeds, sub)
		c.mu.Unlock()
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			f, ok := c.feeds[sub]
			delete(c.feeds, sub)
			c.mu.Unlock()
			if ok {
				close(f)
			}
			cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer ccancel()
			if _, err := c.call(cctx, Request{Op: OpUnsubscribe, Sub: sub}); err != nil {
				c.logger.Printf("Error unsubscribing: %v", err)
			}
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return feed, cancel, nil
}
