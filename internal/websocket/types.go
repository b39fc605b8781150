package websocket

import (
	"encoding/json"
	"sync/atomic"

	"github.com/coder/websocket"
)

// TypeReload is the only notification type the broadcaster emits.
const TypeReload = "reload"

// Notification is the message sent to browsers. It is serialized as a
// single JSON text frame: {"type":"reload","file":"<path>"}.
type Notification struct {
	Type string `json:"type"`
	File string `json:"file"`
}

// NewReloadNotification builds the notification for a changed file.
func NewReloadNotification(file string) Notification {
	return Notification{Type: TypeReload, File: file}
}

// Encode returns the wire form of the notification.
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// DecodeNotification parses a frame received from the broadcaster.
func DecodeNotification(data []byte) (Notification, error) {
	var n Notification
	err := json.Unmarshal(data, &n)
	return n, err
}

// Client represents a WebSocket client connection
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
	closed atomic.Bool
}

// markClosed flags the connection as no longer open. Broadcasts skip
// closed clients instead of queueing for them.
func (c *Client) markClosed() {
	c.closed.Store(true)
}

func (c *Client) isOpen() bool {
	return !c.closed.Load()
}
