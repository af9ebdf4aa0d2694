package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nexusapp/nexus/internal/remote"
)

// Server hosts a remote.Store over WebSocket. Any number of clients can
// connect; each connection multiplexes requests and subscription pushes.
type Server struct {
	addr     string
	store    remote.Store
	listener net.Listener
	server   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Addr to listen on, e.g. ":8787". An addr with port 0 picks a free
	// port; see Addr().
	Addr string

	// Logger for server activity (default: log.Default()).
	Logger *log.Logger
}

// NewServer creates a sync server over the given store.
func NewServer(store remote.Store, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	if config.Addr == "" {
		config.Addr = ":8787"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:   config.Addr,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
		logger: config.Logger,
	}
}

// Start begins listening and serving connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 0, // WebSocket connections are long-lived
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Sync server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server and all connections.
func (s *Server) Stop() error {
	s.logger.Println("Stopping sync server")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("Sync server stopped")
	return nil
}

// handleHealth responds to health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleSync upgrades the connection and runs its request loop.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.logger.Printf("Client connected from %s", r.RemoteAddr)
	c := &serverConn{
		server: s,
		conn:   conn,
		subs:   make(map[int64]remote.CancelFunc),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.run(s.ctx)
	}()
}

// serverConn is the per-connection state: one write lock and the set of
// active subscriptions to cancel on disconnect.
type serverConn struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex
	subsMu  sync.Mutex
	subs    map[int64]remote.CancelFunc
}

// run reads requests until the connection drops or the server stops.
func (c *serverConn) run(ctx context.Context) {
	defer c.teardown()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.server.logger.Printf("Bad request frame: %v", err)
			continue
		}

		resp := c.handle(ctx, req)
		if err := c.write(ctx, resp); err != nil {
			return
		}
	}
}

// handle dispatches one request against the store.
func (c *serverConn) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, OK: true}

	fail := func(err error) Response {
		return Response{ID: req.ID, Error: err.Error()}
	}

	switch req.Op {
	case OpGetDoc:
		doc, err := c.server.store.GetDocument(ctx, req.UID, req.Stream)
		if err != nil {
			return fail(err)
		}
		resp.Doc = doc

	case OpSetDoc:
		if req.Doc == nil {
			return fail(fmt.Errorf("set_doc requires a doc"))
		}
		if err := c.server.store.SetDocument(ctx, req.UID, req.Stream, *req.Doc); err != nil {
			return fail(err)
		}

	case OpList:
		items, err := c.server.store.ListItems(ctx, req.UID, req.Stream)
		if err != nil {
			return fail(err)
		}
		resp.Items = items

	case OpPutItem:
		if req.Item == nil {
			return fail(fmt.Errorf("put_item requires an item"))
		}
		if err := c.server.store.PutItem(ctx, req.UID, req.Stream, *req.Item); err != nil {
			return fail(err)
		}

	case OpDeleteItem:
		if err := c.server.store.DeleteItem(ctx, req.UID, req.Stream, req.ItemID); err != nil {
			return fail(err)
		}

	case OpReplace:
		if err := c.server.store.ReplaceItems(ctx, req.UID, req.Stream, req.Items); err != nil {
			return fail(err)
		}

	case OpSubscribe:
		sub, err := c.subscribe(ctx, req)
		if err != nil {
			return fail(err)
		}
		resp.Sub = sub

	case OpUnsubscribe:
		c.unsubscribe(req.Sub)

	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}

	return resp
}

// subscribe opens a store subscription and pumps its events to the client
// as push frames. The subscription id is chosen by the client so it can
// route pushes that arrive before the subscribe response does.
func (c *serverConn) subscribe(ctx context.Context, req Request) (int64, error) {
	if req.Sub == 0 {
		return 0, fmt.Errorf("subscribe requires a sub id")
	}

	ch, cancel, err := c.server.store.Subscribe(ctx, req.UID, req.Stream)
	if err != nil {
		return 0, err
	}

	sub := req.Sub
	c.subsMu.Lock()
	c.subs[sub] = cancel
	c.subsMu.Unlock()

	go func() {
		for ev := range ch {
			frame := Frame{Push: true, Sub: sub, Stream: ev.Stream, Items: ev.Items, Doc: ev.Doc}
			if err := c.write(ctx, frame); err != nil {
				c.unsubscribe(sub)
				return
			}
		}
	}()

	return sub, nil
}

// unsubscribe cancels one subscription. Unknown ids are no-ops.
func (c *serverConn) unsubscribe(sub int64) {
	c.subsMu.Lock()
	cancel := c.subs[sub]
	delete(c.subs, sub)
	c.subsMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// teardown cancels all subscriptions and closes the connection.
func (c *serverConn) teardown() {
	c.subsMu.Lock()
	cancels := make([]remote.CancelFunc, 0, len(c.subs))
	for _, cancel := range c.subs {
		cancels = append(cancels, cancel)
	}
	c.subs = make(map[int64]remote.CancelFunc)
	c.subsMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	c.server.logger.Printf("Client disconnected")
}

// write sends one frame, serializing writers on the connection.
func (c *serverConn) write(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}
