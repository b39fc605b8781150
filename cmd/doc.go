// Package cmd provides the command-line interface for docsite.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - watch: Watch content/ and broadcast reload notifications over WebSocket
//   - listen: Connect to a watcher like a browser would and report the next reload
//   - sync: Copy assets referenced by documents from content/ to public/
//   - list: List the documents in content/ with their front matter
//   - config: Show or validate the effective configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Watch content and serve ws://localhost:3001
//	docsite watch
//
//	// Mirror changed files into public/content as well
//	docsite watch --relocate
//
//	// Copy referenced assets for two documents
//	docsite sync intro guide
//
//	// List documents as JSON
//	docsite list --format json
//
// # Error Handling
//
// Commands return errors to Execute, which exits non-zero. Ctrl+C stops
// long-running commands gracefully.
package cmd
