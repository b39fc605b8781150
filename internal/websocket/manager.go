// Package websocket implements the reload broadcaster: a WebSocket endpoint
// browsers connect to, and a hub that pushes one reload notification per
// content change to every connection open at that moment.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/docsite/internal/logging"
)

const (
	// Send pings to peers with this period to notice dead connections.
	pingPeriod = 30 * time.Second

	// Time allowed for a ping round trip.
	pingWait = 10 * time.Second

	// Browsers never send anything meaningful; cap what we read.
	maxMessageSize = 512

	defaultSendBuffer = 64
)

// BroadcasterOptions configures a Broadcaster.
type BroadcasterOptions struct {
	// OriginPatterns lists host patterns allowed to connect cross-origin,
	// for example "localhost:*".
	OriginPatterns []string
	// SendBuffer is the per-connection queue length.
	SendBuffer int
	Logger     logging.Logger
}

type registration struct {
	client *Client
	ack    chan bool
}

type broadcastRequest struct {
	data []byte
	sent chan int
}

// Broadcaster tracks open browser connections and fans notifications out
// to them.
//
// The client set is owned by the hub goroutine; register, unregister and
// broadcast are serialized through it, so a broadcast reaches exactly the
// connections registered before it and none registered after.
type Broadcaster struct {
	clients map[*Client]struct{}

	countMutex sync.RWMutex
	count      int

	register   chan registration
	unregister chan *Client
	broadcast  chan broadcastRequest

	originPatterns []string
	sendBuffer     int
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	startOnce    sync.Once
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewBroadcaster creates a broadcaster. Call Start before serving.
func NewBroadcaster(opts BroadcasterOptions) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	size := opts.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}

	return &Broadcaster{
		clients:        make(map[*Client]struct{}),
		register:       make(chan registration),
		unregister:     make(chan *Client, 32),
		broadcast:      make(chan broadcastRequest),
		originPatterns: opts.OriginPatterns,
		sendBuffer:     size,
		logger:         logging.OrNop(opts.Logger).WithComponent("broadcaster"),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Start runs the hub until ctx is cancelled or Shutdown is called.
func (b *Broadcaster) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				b.cancel()
			case <-b.ctx.Done():
			}
		}()
		go b.runHub()
	})
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the peer goes away.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if b.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  b.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		b.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, b.sendBuffer),
		remote: r.RemoteAddr,
	}

	ack := make(chan bool, 1)
	select {
	case b.register <- registration{client: client, ack: ack}:
	case <-b.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if !<-ack {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	b.logger.Info(r.Context(), "Browser connected for hot-reload", "remote", client.remote)

	go b.writeToClient(client)
	b.readFromClient(client)

	b.logger.Info(context.Background(), "Browser disconnected", "remote", client.remote)
}

// Broadcast sends n to every connection open right now and returns how
// many connections it was queued on. Connections that are closed, or whose
// queue is full, are skipped; nothing is retried.
func (b *Broadcaster) Broadcast(n Notification) int {
	data, err := n.Encode()
	if err != nil {
		b.logger.Error(context.Background(), err, "Failed to marshal notification")
		return 0
	}

	req := broadcastRequest{data: data, sent: make(chan int, 1)}
	select {
	case b.broadcast <- req:
	case <-b.ctx.Done():
		return 0
	}

	select {
	case sent := <-req.sent:
		return sent
	case <-b.ctx.Done():
		return 0
	}
}

// NotifyChange broadcasts a reload notification for path.
func (b *Broadcaster) NotifyChange(path string) int {
	sent := b.Broadcast(NewReloadNotification(path))
	if sent > 0 {
		b.logger.Info(context.Background(), "Sent reload signal", "file", path, "clients", sent)
	}
	return sent
}

// ClientCount returns the number of registered connections.
func (b *Broadcaster) ClientCount() int {
	b.countMutex.RLock()
	defer b.countMutex.RUnlock()
	return b.count
}

// Shutdown stops the hub and closes every connection.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	var err error
	b.shutdownOnce.Do(func() {
		b.cancel()

		// A hub that never started has nothing to wait for.
		b.startOnce.Do(func() { close(b.done) })

		select {
		case <-b.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (b *Broadcaster) runHub() {
	defer close(b.done)

	for {
		select {
		case reg := <-b.register:
			b.clients[reg.client] = struct{}{}
			b.setCount(len(b.clients))
			reg.ack <- true

		case client := <-b.unregister:
			b.removeClient(client)

		case req := <-b.broadcast:
			req.sent <- b.broadcastToClients(req.data)

		case <-b.ctx.Done():
			for client := range b.clients {
				client.markClosed()
				close(client.send)
				go client.conn.Close(websocket.StatusGoingAway, "server shutting down")
				delete(b.clients, client)
			}
			b.setCount(0)
			// Fail any registration that raced with shutdown.
			for {
				select {
				case reg := <-b.register:
					reg.ack <- false
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) broadcastToClients(data []byte) int {
	sent := 0
	for client := range b.clients {
		if !client.isOpen() {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			b.logger.Warn(context.Background(), nil, "Client send queue full, skipping notification",
				"remote", client.remote)
		}
	}
	return sent
}

func (b *Broadcaster) removeClient(client *Client) {
	if _, ok := b.clients[client]; !ok {
		return
	}
	delete(b.clients, client)
	client.markClosed()
	close(client.send)
	b.setCount(len(b.clients))
}

func (b *Broadcaster) setCount(n int) {
	b.countMutex.Lock()
	b.count = n
	b.countMutex.Unlock()
}

// readFromClient blocks until the connection fails or closes, then
// unregisters the client.
func (b *Broadcaster) readFromClient(client *Client) {
	defer func() {
		client.markClosed()
		select {
		case b.unregister <- client:
		case <-b.ctx.Done():
		}
		_ = client.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, message, err := client.conn.Read(b.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && b.ctx.Err() == nil {
				b.logger.Debug(context.Background(), "WebSocket read ended", "remote", client.remote, "error", err.Error())
			}
			return
		}
		b.logger.Debug(context.Background(), "Ignoring client message", "remote", client.remote, "bytes", len(message))
	}
}

// writeToClient drains the client's queue. Writes carry no deadline; a
// stuck peer is noticed by the ping loop.
func (b *Broadcaster) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if err := client.conn.Write(b.ctx, websocket.MessageText, message); err != nil {
				client.markClosed()
				b.logger.Debug(context.Background(), "WebSocket write failed", "remote", client.remote, "error", err.Error())
				_ = client.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(b.ctx, pingWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				client.markClosed()
				_ = client.conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}

		case <-b.ctx.Done():
			return
		}
	}
}
