// Package wire carries the remote store protocol over WebSocket.
//
// The protocol is JSON text frames. Clients send numbered requests; the
// server answers each with a response bearing the same id, and pushes
// unsolicited event frames for active subscriptions. One connection
// multiplexes any number of requests and subscriptions.
package wire

import (
	"github.com/nexusapp/nexus/internal/stream"
)

// Request operations.
const (
	OpGetDoc      = "get_doc"
	OpSetDoc      = "set_doc"
	OpList        = "list"
	OpPutItem     = "put_item"
	OpDeleteItem  = "del_item"
	OpReplace     = "replace"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Request is a client-to-server frame.
type Request struct {
	ID     int64            `json:"id"`
	Op     string           `json:"op"`
	UID    string           `json:"uid,omitempty"`
	Stream stream.Name      `json:"stream,omitempty"`
	ItemID string           `json:"item_id,omitempty"`
	Item   *stream.Item     `json:"item,omitempty"`
	Items  []stream.Item    `json:"items,omitempty"`
	Doc    *stream.Document `json:"doc,omitempty"`
	Sub    int64            `json:"sub,omitempty"`
}

// Response is a server-to-client answer frame. Push is false.
type Response struct {
	ID    int64            `json:"id"`
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	Doc   *stream.Document `json:"doc,omitempty"`
	Items []stream.Item    `json:"items,omitempty"`
	Sub   int64            `json:"sub,omitempty"`
}

// Frame is the union read off the socket: a response when Push is false,
// a subscription event otherwise.
type Frame struct {
	Push   bool             `json:"push,omitempty"`
	Sub    int64            `json:"sub,omitempty"`
	Stream stream.Name      `json:"stream,omitempty"`
	Items  []stream.Item    `json:"items,omitempty"`
	Doc    *stream.Document `json:"doc,omitempty"`

	// Response fields, meaningful when Push is false.
	ID    int64  `json:"id,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}
