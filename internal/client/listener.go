// Package client implements the reload listener: it keeps a WebSocket
// connection to the broadcaster open, reconnecting after a fixed delay, and
// triggers a reload when a reload notification arrives.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/docsite/internal/config"
	"github.com/conneroisu/docsite/internal/logging"
	reload "github.com/conneroisu/docsite/internal/websocket"
)

// State is the connection state of a Listener.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrRetriesExhausted is returned by Run when MaxRetries consecutive
// reconnect attempts have failed.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

const maxMessageSize = 64 * 1024

// ReloadFunc performs the reload for a notification.
type ReloadFunc func(ctx context.Context, n reload.Notification) error

// Options configures a Listener.
type Options struct {
	URL string
	// Mode is the runtime mode; the listener only runs in development.
	Mode           string
	ReconnectDelay time.Duration
	// MaxRetries bounds consecutive failed reconnects; 0 retries forever.
	MaxRetries    int
	Reloader      ReloadFunc
	OnStateChange func(State)
	Logger        logging.Logger
}

// Listener is a single-use reload listener. Run returns after the first
// reload.
type Listener struct {
	opts   Options
	logger logging.Logger
	state  atomic.Int32

	stateMutex sync.Mutex
}

// New creates a listener. Zero values fall back to ws://localhost:3001 and a
// one second reconnect delay.
func New(opts Options) *Listener {
	if opts.URL == "" {
		opts.URL = fmt.Sprintf("ws://%s:%d", config.DefaultHost, config.DefaultPort)
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = config.DefaultReconnectDelay
	}
	return &Listener{
		opts:   opts,
		logger: logging.OrNop(opts.Logger).WithComponent("listener").With("url", opts.URL),
	}
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Run connects and listens until a reload arrives, ctx is cancelled, or
// MaxRetries is exceeded. It returns nil after a reload and ctx.Err() on
// teardown. Outside development mode it returns nil without dialing.
func (l *Listener) Run(ctx context.Context) error {
	if l.opts.Mode != config.ModeDevelopment {
		l.logger.Debug(ctx, "Hot-reload listener disabled", "mode", l.opts.Mode)
		return nil
	}

	failures := 0
	for {
		l.setState(StateConnecting)
		conn, _, err := websocket.Dial(ctx, l.opts.URL, nil)
		if err != nil {
			l.setState(StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			l.logger.Warn(ctx, err, "Failed to connect to hot-reload server", "attempt", failures)
		} else {
			failures = 0
			l.setState(StateConnected)
			l.logger.Info(ctx, "Connected to hot-reload server")

			reloaded, err := l.listen(ctx, conn)
			l.setState(StateDisconnected)
			if reloaded {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Info(ctx, "Disconnected from hot-reload server, attempting reconnect...")
		}

		if l.opts.MaxRetries > 0 && failures >= l.opts.MaxRetries {
			return ErrRetriesExhausted
		}

		timer := time.NewTimer(l.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// listen reads frames until the connection ends or a reload arrives. It
// reports whether a reload was handled, with the reloader's error.
func (l *Listener) listen(ctx context.Context, conn *websocket.Conn) (bool, error) {
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Debug(ctx, "Connection closed", "status", websocket.CloseStatus(err).String())
			}
			return false, nil
		}
		if typ != websocket.MessageText {
			continue
		}

		n, err := reload.DecodeNotification(data)
		if err != nil {
			l.logger.Error(ctx, err, "Hot-reload message error", "bytes", len(data))
			continue
		}
		if n.Type != reload.TypeReload {
			l.logger.Debug(ctx, "Ignoring message", "type", n.Type)
			continue
		}

		l.logger.Info(ctx, "Content changed, reloading...", "file", n.File)
		_ = conn.Close(websocket.StatusNormalClosure, "reloading")
		if l.opts.Reloader == nil {
			return true, nil
		}
		return true, l.opts.Reloader(ctx, n)
	}
}

func (l *Listener) setState(s State) {
	l.stateMutex.Lock()
	defer l.stateMutex.Unlock()
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	if l.opts.OnStateChange != nil {
		l.opts.OnStateChange(s)
	}
}
