package websocket

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
	"github.com/conneroisu/docsite/internal/middleware"
)

// ClientScript is the browser-side listener served at /client.js.
//
//go:embed client.js
var ClientScript []byte

// Server exposes a Broadcaster over HTTP: "/" upgrades to WebSocket and
// "/client.js" serves the browser listener.
type Server struct {
	broadcaster *Broadcaster
	httpServer  *http.Server
	logger      logging.Logger

	mutex    sync.Mutex
	listener net.Listener
	serveErr chan error
}

// NewServer creates a server for b on addr (host:port).
func NewServer(addr string, b *Broadcaster, logger logging.Logger) *Server {
	s := &Server{
		broadcaster: b,
		logger:      logging.OrNop(logger).WithComponent("reload-server"),
		serveErr:    make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/client.js", s.handleClientScript)
	mux.HandleFunc("/", b.HandleWebSocket)

	chain := middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           chain.Apply(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's routes, for embedding in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return docerrors.NewNetworkError("listen", s.httpServer.Addr, err)
	}

	s.mutex.Lock()
	s.listener = ln
	s.mutex.Unlock()

	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()

	s.logger.Info(context.Background(), "WebSocket server running", "url", "ws://"+ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Errors reports a serve failure after Start; it yields nil after a clean
// Shutdown.
func (s *Server) Errors() <-chan error {
	return s.serveErr
}

// Shutdown closes connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	// Hijacked WebSocket connections are not tracked by http.Server, so the
	// broadcaster closes them first.
	bErr := s.broadcaster.Shutdown(ctx)
	hErr := s.httpServer.Shutdown(ctx)
	return errors.Join(bErr, hErr)
}

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(ClientScript)
}
