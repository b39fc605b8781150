// Package registry is the lookup table of content documents. It is built
// from the content root at startup and refreshed on change, so slugs are
// resolved against a fixed set instead of being turned into file paths.
package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
)

// ErrNotFound is returned for slugs that are not in the registry.
var ErrNotFound = errors.New("document not found")

// Registry manages all discovered documents
type Registry struct {
	root      string
	documents map[string]*Document
	config    *DocsConfig
	mutex     sync.RWMutex
	watchers  []chan DocumentEvent
	logger    logging.Logger
}

// DocumentEvent represents a change in the registry
type DocumentEvent struct {
	Type      EventType
	Document  *Document
	Timestamp time.Time
}

// EventType represents the type of document event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// New creates an empty registry for contentRoot. Call Refresh to populate it.
func New(contentRoot string, logger logging.Logger) *Registry {
	return &Registry{
		root:      contentRoot,
		documents: make(map[string]*Document),
		watchers:  make([]chan DocumentEvent, 0),
		logger:    logging.OrNop(logger).WithComponent("registry"),
	}
}

// Load builds a registry from the documents directly under contentRoot. A
// missing content root yields an empty registry. An invalid docs.yml is
// returned together with the populated registry.
func Load(contentRoot string) (*Registry, error) {
	r := New(contentRoot, nil)
	if err := r.Refresh(); err != nil {
		if docerrors.IsType(err, docerrors.ErrorTypeConfig) {
			return r, err
		}
		return nil, err
	}
	return r, nil
}

// Root returns the content root the registry scans.
func (r *Registry) Root() string {
	return r.root
}

// Refresh rescans the content root and notifies watchers of documents that
// were added, changed or removed. Documents that fail to parse are logged
// and left out. An invalid docs.yml keeps the previous site config and is
// returned as an ErrorTypeConfig error once the documents have been swapped.
func (r *Registry) Refresh() error {
	scanned, err := r.scan()
	if err != nil {
		return err
	}

	cfg, cfgErr := LoadDocsConfig(r.root)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	var events []DocumentEvent
	now := time.Now()
	for slug, doc := range scanned {
		old, exists := r.documents[slug]
		switch {
		case !exists:
			events = append(events, DocumentEvent{Type: EventTypeAdded, Document: doc, Timestamp: now})
		case old.Hash != doc.Hash || old.FilePath != doc.FilePath:
			events = append(events, DocumentEvent{Type: EventTypeUpdated, Document: doc, Timestamp: now})
		}
	}
	for slug, old := range r.documents {
		if _, ok := scanned[slug]; !ok {
			events = append(events, DocumentEvent{Type: EventTypeRemoved, Document: old, Timestamp: now})
		}
	}

	r.documents = scanned
	if cfgErr == nil {
		r.config = cfg
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Document.Slug < events[j].Document.Slug
	})
	for _, event := range events {
		r.notify(event)
	}
	return cfgErr
}

func (r *Registry) scan() (map[string]*Document, error) {
	documents := make(map[string]*Document)

	entries, err := os.ReadDir(r.root)
	if errors.Is(err, os.ErrNotExist) {
		return documents, nil
	}
	if err != nil {
		return nil, docerrors.NewIOError("scan", r.root, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.root, entry.Name())
		slug, ok := SlugFor(path)
		if !ok {
			continue
		}
		// a.mdx wins over a.md.
		if existing, ok := documents[slug]; ok && filepath.Ext(existing.FilePath) == ".mdx" {
			continue
		}

		src, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn(context.Background(), err, "Failed to read document", "path", path)
			continue
		}
		doc, err := ParseDocument(path, src)
		if err != nil {
			r.logger.Warn(context.Background(), err, "Skipping document", "path", path)
			continue
		}
		if info, err := entry.Info(); err == nil {
			doc.LastMod = info.ModTime()
		}
		documents[slug] = doc
	}
	return documents, nil
}

// notify must be called with the mutex held.
func (r *Registry) notify(event DocumentEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Lookup retrieves a document by slug
func (r *Registry) Lookup(slug string) (*Document, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	doc, exists := r.documents[slug]
	return doc, exists
}

// All returns every document sorted by slug
func (r *Registry) All() []*Document {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Document, 0, len(r.documents))
	for _, doc := range r.documents {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result
}

// Slugs returns the slugs of every document, sorted.
func (r *Registry) Slugs() []string {
	docs := r.All()
	slugs := make([]string, len(docs))
	for i, doc := range docs {
		slugs[i] = doc.Slug
	}
	return slugs
}

// Config returns the docs.yml configuration, or nil if there is none.
func (r *Registry) Config() *DocsConfig {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.config
}

// Watch returns a channel that receives document events
func (r *Registry) Watch() <-chan DocumentEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan DocumentEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry) UnWatch(ch <-chan DocumentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered documents
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.documents)
}
