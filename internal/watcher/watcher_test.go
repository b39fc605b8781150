package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func startWatcher(t *testing.T, opts Options) *FileWatcher {
	t.Helper()
	fw, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, fw.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = fw.Stop()
	})

	// Give the watcher time to register its inotify watches.
	time.Sleep(50 * time.Millisecond)
	return fw
}

// waitFor drains events until match returns true or the timeout expires,
// returning everything seen.
func waitFor(t *testing.T, events <-chan ChangeEvent, match func(ChangeEvent) bool) []ChangeEvent {
	t.Helper()
	var seen []ChangeEvent
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("events closed; seen %v", seen)
			}
			seen = append(seen, ev)
			if match(ev) {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event; seen %v", seen)
		}
	}
}

func TestEventKindString(t *testing.T) {
	testCases := []struct {
		kind     EventKind
		expected string
	}{
		{EventAdded, "added"},
		{EventModified, "modified"},
		{EventRemoved, "removed"},
		{EventOther, "other"},
		{EventKind(99), "other"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.String())
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".env"))
	assert.True(t, IsHidden(".git/config"))
	assert.True(t, IsHidden("guides/.draft.mdx"))
	assert.False(t, IsHidden("guides/intro.mdx"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("../content/a.mdx"))
}

func TestNewRejectsBadIgnorePattern(t *testing.T) {
	_, err := New(Options{Root: t.TempDir(), Ignore: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestNewSkipsCommentsAndBlanks(t *testing.T) {
	fw, err := New(Options{Root: t.TempDir(), Ignore: []string{"", "  ", "# note", "*.tmp"}})
	require.NoError(t, err)
	defer fw.Stop()

	assert.Len(t, fw.ignore, 1)
}

func TestWatcherReportsLifecycle(t *testing.T) {
	root := tempRoot(t)
	fw := startWatcher(t, Options{Root: root})
	path := filepath.Join(root, "intro.mdx")

	require.NoError(t, os.WriteFile(path, []byte("# Intro"), 0o644))
	waitFor(t, fw.Events(), func(ev ChangeEvent) bool {
		return ev.Path == path && ev.Kind == EventAdded
	})

	time.Sleep(20 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\nmore")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	waitFor(t, fw.Events(), func(ev ChangeEvent) bool {
		return ev.Path == path && ev.Kind == EventModified
	})

	require.NoError(t, os.Remove(path))
	waitFor(t, fw.Events(), func(ev ChangeEvent) bool {
		return ev.Path == path && ev.Kind == EventRemoved
	})
}

func TestWatcherSkipsInitialFiles(t *testing.T) {
	root := tempRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing.mdx"), []byte("x"), 0o644))

	fw := startWatcher(t, Options{Root: root})

	select {
	case ev := <-fw.Events():
		t.Fatalf("unexpected event for pre-existing file: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	root := tempRoot(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	fw := startWatcher(t, Options{Root: root, Ignore: []string{"*.tmp", "drafts/**"}})

	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)

	visible := filepath.Join(root, "visible.mdx")
	require.NoError(t, os.WriteFile(visible, []byte("x"), 0o644))

	seen := waitFor(t, fw.Events(), func(ev ChangeEvent) bool { return ev.Path == visible })
	for _, ev := range seen {
		assert.Equal(t, visible, ev.Path, "only the visible file should be reported")
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := tempRoot(t)
	fw := startWatcher(t, Options{Root: root})

	sub := filepath.Join(root, "guides", "advanced")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(sub, "deep.mdx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	waitFor(t, fw.Events(), func(ev ChangeEvent) bool { return ev.Path == path })
}

func TestWatcherWaitsForMissingRoot(t *testing.T) {
	parent := tempRoot(t)
	root := filepath.Join(parent, "content")

	fw := startWatcher(t, Options{Root: root})
	assert.Equal(t, root, fw.Root())

	// A sibling of the root is not reported.
	require.NoError(t, os.WriteFile(filepath.Join(parent, "README.md"), []byte("x"), 0o644))

	require.NoError(t, os.Mkdir(root, 0o755))
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(root, "late.mdx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	seen := waitFor(t, fw.Events(), func(ev ChangeEvent) bool { return ev.Path == path })
	for _, ev := range seen {
		assert.NotEqual(t, filepath.Join(parent, "README.md"), ev.Path)
	}
}

func TestWatcherFollowsRecreatedRoot(t *testing.T) {
	parent := tempRoot(t)
	root := filepath.Join(parent, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))

	fw := startWatcher(t, Options{Root: root})

	require.NoError(t, os.RemoveAll(root))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Mkdir(root, 0o755))
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(root, "back.mdx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	waitFor(t, fw.Events(), func(ev ChangeEvent) bool {
		return ev.Path == path && ev.Kind != EventRemoved
	})
}

func TestWatcherHandlerErrorsDoNotStopIt(t *testing.T) {
	root := tempRoot(t)
	fw, err := New(Options{Root: root})
	require.NoError(t, err)

	var calls atomic.Int32
	fw.AddHandler(func(ChangeEvent) error {
		calls.Add(1)
		return errors.New("handler failed")
	})

	var mu sync.Mutex
	var order []string
	fw.AddHandler(func(ev ChangeEvent) error {
		mu.Lock()
		order = append(order, filepath.Base(ev.Path))
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))
	defer fw.Stop()
	time.Sleep(50 * time.Millisecond)

	first := filepath.Join(root, "a.mdx")
	second := filepath.Join(root, "b.mdx")
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	waitFor(t, fw.Events(), func(ev ChangeEvent) bool { return ev.Path == first })
	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))
	waitFor(t, fw.Events(), func(ev ChangeEvent) bool { return ev.Path == second })

	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, order, "a.mdx")
	assert.Contains(t, order, "b.mdx")
}

func TestWatcherDebounceCoalesces(t *testing.T) {
	root := tempRoot(t)
	fw, err := New(Options{Root: root, Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	var count atomic.Int32
	path := filepath.Join(root, "busy.mdx")
	fw.AddHandler(func(ev ChangeEvent) error {
		if ev.Path == path {
			count.Add(1)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))
	defer fw.Stop()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestWatcherStopClosesEvents(t *testing.T) {
	fw, err := New(Options{Root: tempRoot(t)})
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))

	require.NoError(t, fw.Stop())
	// A second Stop is a no-op.
	require.NoError(t, fw.Stop())

	select {
	case _, ok := <-fw.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed")
	}
}

func TestStopWithoutStart(t *testing.T) {
	fw, err := New(Options{Root: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, fw.Stop())
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/a/b", "/a/b"))
	assert.True(t, isWithin("/a/b", "/a/b/c/d"))
	assert.False(t, isWithin("/a/b", "/a/bc"))
	assert.False(t, isWithin("/a/b", "/a"))
}
