// Package services holds the command-level business logic: the hot-reload
// service behind "docsite watch" and the asset sync behind "docsite sync".
package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
	"github.com/conneroisu/docsite/internal/registry"
	"github.com/conneroisu/docsite/internal/relocator"
	"github.com/conneroisu/docsite/internal/watcher"
	"github.com/conneroisu/docsite/internal/websocket"
)

// ErrStartFailed is returned by Start once an earlier Start has failed.
var ErrStartFailed = errors.New("hot-reload service cannot be restarted after a failed start")

// HotReloadService owns the content watcher and the reload broadcaster.
// Every change under the content root becomes one reload notification to
// every browser connected at that moment.
type HotReloadService struct {
	config *config.Config
	logger logging.Logger

	contentRoot string
	watcher     *watcher.FileWatcher
	broadcaster *websocket.Broadcaster
	server      *websocket.Server
	relocator   *relocator.Relocator
	registry    *registry.Registry

	mutex    sync.Mutex
	started  bool
	failed   bool
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewHotReloadService wires the components for cfg. Nothing touches the
// network or the filesystem until Start.
func NewHotReloadService(cfg *config.Config, logger logging.Logger) (*HotReloadService, error) {
	if cfg == nil {
		return nil, docerrors.NewConfigError("config", "config cannot be nil")
	}
	logger = logging.OrNop(logger)

	contentRoot, err := cfg.ContentRoot()
	if err != nil {
		return nil, docerrors.NewIOError("resolve", cfg.Content.Dir, err)
	}
	publicRoot, err := cfg.PublicRoot()
	if err != nil {
		return nil, docerrors.NewIOError("resolve", cfg.Content.PublicDir, err)
	}
	mirrorRoot, err := cfg.MirrorRoot()
	if err != nil {
		return nil, docerrors.NewIOError("resolve", cfg.Content.PublicSubdir, err)
	}

	fw, err := watcher.New(watcher.Options{
		Root:     contentRoot,
		Ignore:   cfg.Watch.Ignore,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	b := websocket.NewBroadcaster(websocket.BroadcasterOptions{
		OriginPatterns: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	s := &HotReloadService{
		config:      cfg,
		logger:      logger.WithComponent("hotreload"),
		contentRoot: contentRoot,
		watcher:     fw,
		broadcaster: b,
		server:      websocket.NewServer(cfg.Addr(), b, logger),
		relocator: relocator.New(relocator.Options{
			ContentRoot: contentRoot,
			PublicRoot:  publicRoot,
			MirrorRoot:  mirrorRoot,
			Logger:      logger,
		}),
		registry: registry.New(contentRoot, logger),
	}
	fw.AddHandler(s.handleChange)
	return s, nil
}

// Start builds the docs registry, binds the WebSocket server and starts
// watching. A failure to bind is returned; everything after that is
// logged. Start is single-shot: a failed Start shuts the broadcaster down,
// and every later call returns ErrStartFailed. Build a new service to retry.
func (s *HotReloadService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return nil
	}
	if s.failed {
		return ErrStartFailed
	}

	if err := s.registry.Refresh(); err != nil {
		s.logger.Warn(ctx, err, "Failed to build docs registry")
	}
	s.logger.Info(ctx, "Docs registry loaded", "documents", s.registry.Count())

	runCtx, cancel := context.WithCancel(ctx)
	s.broadcaster.Start(runCtx)

	if err := s.server.Start(); err != nil {
		cancel()
		_ = s.broadcaster.Shutdown(context.Background())
		s.failed = true
		return err
	}

	if err := s.watcher.Start(runCtx); err != nil {
		cancel()
		_ = s.server.Shutdown(context.Background())
		s.failed = true
		return err
	}

	s.cancel = cancel
	s.started = true

	s.logger.Info(ctx, "Watching content directory", "path", s.contentRoot)
	s.logger.Info(ctx, "Hot-reload system ready!", "url", "ws://"+s.server.Addr())
	return nil
}

// Stop stops watching, closes every browser connection and releases the
// port. It is safe to call more than once.
func (s *HotReloadService) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mutex.Lock()
		cancel := s.cancel
		s.mutex.Unlock()

		watchErr := s.watcher.Stop()
		serverErr := s.server.Shutdown(ctx)
		if cancel != nil {
			cancel()
		}
		err = errors.Join(watchErr, serverErr)
		s.logger.Info(context.Background(), "Hot-reload system stopped")
	})
	return err
}

// Addr returns the address the WebSocket server is bound to.
func (s *HotReloadService) Addr() string {
	return s.server.Addr()
}

// Errors reports a failure of the WebSocket server after Start.
func (s *HotReloadService) Errors() <-chan error {
	return s.server.Errors()
}

// Registry returns the docs registry kept current by the service.
func (s *HotReloadService) Registry() *registry.Registry {
	return s.registry
}

// Broadcaster returns the reload broadcaster.
func (s *HotReloadService) Broadcaster() *websocket.Broadcaster {
	return s.broadcaster
}

// handleChange runs for every watcher event, in order.
func (s *HotReloadService) handleChange(event watcher.ChangeEvent) error {
	ctx := context.Background()
	s.logger.Info(ctx, "Content file changed", "path", event.Path, "event", event.Kind.String())

	if s.config.Watch.RelocateOnChange {
		s.mirror(ctx, event)
	}

	if s.config.Watch.RefreshRegistry && s.isTopLevelDocument(event.Path) {
		if err := s.registry.Refresh(); err != nil {
			s.logger.Warn(ctx, err, "Failed to refresh docs registry")
		}
	}

	// Relocation happens first so the page reload finds the asset.
	s.broadcaster.NotifyChange(event.Path)
	return nil
}

func (s *HotReloadService) mirror(ctx context.Context, event watcher.ChangeEvent) {
	switch event.Kind {
	case watcher.EventAdded, watcher.EventModified:
		action, err := s.relocator.SyncFile(event.Path)
		if err != nil {
			s.logger.Warn(ctx, err, "Failed to mirror content file", "path", event.Path)
			return
		}
		if action == relocator.ActionCopied {
			s.logger.Debug(ctx, "Mirrored content file", "path", event.Path)
		}
	case watcher.EventRemoved:
		if err := s.relocator.RemoveMirror(event.Path); err != nil {
			s.logger.Warn(ctx, err, "Failed to remove mirrored file", "path", event.Path)
		}
	}
}

func (s *HotReloadService) isTopLevelDocument(path string) bool {
	return filepath.Dir(path) == s.contentRoot && registry.IsDocument(path)
}
