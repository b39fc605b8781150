// Package relocator makes assets referenced from content documents
// servable. References rooted at "/" that name a file under the content
// root are copied to the same relative path under the public root; the
// reference itself is never rewritten.
package relocator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
)

// Action is the outcome of relocating one reference.
type Action int

const (
	// ActionUnchanged means the reference is not rooted at "/".
	ActionUnchanged Action = iota
	ActionCopied
	ActionUpToDate
	// ActionSkippedExternal covers http, data: and mailto: references.
	ActionSkippedExternal
	// ActionMissing means no regular file exists at the reference.
	ActionMissing
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionCopied:
		return "copied"
	case ActionUpToDate:
		return "up-to-date"
	case ActionSkippedExternal:
		return "skipped-external"
	case ActionMissing:
		return "missing"
	case ActionFailed:
		return "failed"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Options configures a Relocator.
type Options struct {
	// ContentRoot is where referenced assets are looked up.
	ContentRoot string
	// PublicRoot receives assets referenced from documents.
	PublicRoot string
	// MirrorRoot receives changed content files from SyncFile. It defaults
	// to PublicRoot.
	MirrorRoot string
	Logger     logging.Logger
}

// Relocator copies referenced assets into the public root.
type Relocator struct {
	contentRoot string
	publicRoot  string
	mirrorRoot  string
	logger      logging.Logger
}

// New creates a relocator.
func New(opts Options) *Relocator {
	mirror := opts.MirrorRoot
	if mirror == "" {
		mirror = opts.PublicRoot
	}
	return &Relocator{
		contentRoot: opts.ContentRoot,
		publicRoot:  opts.PublicRoot,
		mirrorRoot:  mirror,
		logger:      logging.OrNop(opts.Logger).WithComponent("relocator"),
	}
}

// IsExternal reports whether ref points outside the site: anything starting
// with "http", "data:" or "mailto:".
func IsExternal(ref string) bool {
	return strings.HasPrefix(ref, "http") ||
		strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "mailto:")
}

// TransformPath applies the relocation rule to a single reference and
// returns the reference unchanged along with what was done. Copy failures
// are logged and reported as ActionFailed.
func (r *Relocator) TransformPath(ref string) (string, Action) {
	action, _ := r.relocate(ref)
	return ref, action
}

func (r *Relocator) relocate(ref string) (Action, error) {
	if IsExternal(ref) {
		return ActionSkippedExternal, nil
	}
	if !strings.HasPrefix(ref, "/") {
		return ActionUnchanged, nil
	}

	if escapesRoot(ref) {
		return ActionMissing, nil
	}

	rel := filepath.FromSlash(strings.TrimPrefix(path.Clean(ref), "/"))
	if rel == "" {
		return ActionMissing, nil
	}
	src := filepath.Join(r.contentRoot, rel)

	info, err := os.Stat(src)
	if err != nil || !info.Mode().IsRegular() {
		return ActionMissing, nil
	}

	dst := filepath.Join(r.publicRoot, rel)
	action, err := copyIfNewer(src, dst, info)
	if err != nil {
		r.logger.Error(context.Background(), err, "Failed to sync asset", "ref", ref)
		return ActionFailed, err
	}
	if action == ActionCopied {
		r.logger.Info(context.Background(), "Synced asset", "ref", ref)
	}
	return action, nil
}

// escapesRoot reports a ".." segment anywhere in ref. path.Clean would
// silently fold "/../x" into "/x".
func escapesRoot(ref string) bool {
	for _, part := range strings.Split(ref, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// SyncFile mirrors a file under the content root into the mirror root.
func (r *Relocator) SyncFile(contentPath string) (Action, error) {
	rel, err := r.relative(contentPath)
	if err != nil {
		return ActionFailed, err
	}

	info, err := os.Stat(contentPath)
	if errors.Is(err, os.ErrNotExist) {
		return ActionMissing, nil
	}
	if err != nil {
		return ActionFailed, docerrors.NewIOError("stat", contentPath, err)
	}

	dst := filepath.Join(r.mirrorRoot, rel)
	if info.IsDir() {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return ActionFailed, docerrors.NewIOError("mkdir", dst, err)
		}
		return ActionUnchanged, nil
	}
	if !info.Mode().IsRegular() {
		return ActionUnchanged, nil
	}

	action, err := copyIfNewer(contentPath, dst, info)
	if err != nil {
		return ActionFailed, err
	}
	if action == ActionCopied {
		r.logger.Debug(context.Background(), "Mirrored content file", "path", contentPath, "dest", dst)
	}
	return action, nil
}

// RemoveMirror deletes the mirrored copy of a removed content file. A copy
// that does not exist is not an error.
func (r *Relocator) RemoveMirror(contentPath string) error {
	rel, err := r.relative(contentPath)
	if err != nil {
		return err
	}
	dst := filepath.Join(r.mirrorRoot, rel)
	if err := os.RemoveAll(dst); err != nil {
		return docerrors.NewIOError("remove", dst, err)
	}
	return nil
}

func (r *Relocator) relative(contentPath string) (string, error) {
	rel, err := filepath.Rel(r.contentRoot, contentPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", docerrors.NewContentError("sync", contentPath,
			fmt.Errorf("path is outside content root %s", r.contentRoot))
	}
	return rel, nil
}

// copyIfNewer copies src to dst when dst is missing, older than src, or a
// different size. The copy keeps the source modification time.
func copyIfNewer(src, dst string, srcInfo os.FileInfo) (Action, error) {
	if dstInfo, err := os.Stat(dst); err == nil &&
		!srcInfo.ModTime().After(dstInfo.ModTime()) &&
		srcInfo.Size() == dstInfo.Size() {
		return ActionUpToDate, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ActionFailed, docerrors.NewIOError("mkdir", filepath.Dir(dst), err)
	}
	if err := copyFile(src, dst); err != nil {
		return ActionFailed, err
	}
	if err := os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return ActionFailed, docerrors.NewIOError("chtimes", dst, err)
	}
	return ActionCopied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return docerrors.NewIOError("open", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return docerrors.NewIOError("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return docerrors.NewIOError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return docerrors.NewIOError("close", dst, err)
	}
	return nil
}
