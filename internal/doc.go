// Package internal contains the core implementation packages for docsite.
//
// # Package Organization
//
//   - watcher: Recursive fsnotify watcher over the content tree
//   - websocket: Reload broadcaster and the HTTP server browsers connect to
//   - client: Reconnecting listener that reacts to reload notifications
//   - relocator: Copies assets referenced by documents into public/
//   - registry: Slug to document lookup over the content root
//   - services: Hot-reload and asset sync services wiring the above
//   - config, logging, errors, middleware, validation, version: shared support
//
// # Data Flow
//
//	content/ change -> watcher -> services.HotReloadService
//	    -> relocator (mirror) + registry (refresh)
//	    -> websocket.Broadcaster -> every open browser connection
//	    -> client.Listener -> reload
package internal
