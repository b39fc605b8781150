package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestContentTree creates a content tree with the specified number of
// documents spread across subdirectories, plus a hidden directory.
func createTestContentTree(b *testing.B, fileCount int) string {
	b.Helper()
	root := b.TempDir()

	for i := 0; i < fileCount; i++ {
		dir := root
		if sub := i / 10; sub > 0 {
			dir = filepath.Join(root, fmt.Sprintf("section_%d", sub))
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.Fatal(err)
		}

		content := fmt.Sprintf("---\ntitle: Page %d\n---\n\n# Page %d\n", i, i)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("page_%d.mdx", i)), []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	if err := os.MkdirAll(filepath.Join(root, ".cache"), 0o755); err != nil {
		b.Fatal(err)
	}
	return root
}

// BenchmarkFileWatcher_Start benchmarks the recursive registration of a tree
func BenchmarkFileWatcher_Start(b *testing.B) {
	sizes := []int{100, 500, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("files-%d", size), func(b *testing.B) {
			root := createTestContentTree(b, size)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				fw, err := New(Options{Root: root})
				if err != nil {
					b.Fatal(err)
				}
				if err := fw.Start(context.Background()); err != nil {
					b.Fatal(err)
				}
				_ = fw.Stop()
			}
		})
	}
}

// BenchmarkFileWatcher_IsIgnored benchmarks ignore matching
func BenchmarkFileWatcher_IsIgnored(b *testing.B) {
	fw, err := New(Options{Root: "/content", Ignore: []string{"*.tmp", "drafts/**", "*~"}})
	if err != nil {
		b.Fatal(err)
	}
	defer fw.Stop()

	testPaths := []string{
		"/content/intro.mdx",
		"/content/guides/setup.md",
		"/content/.DS_Store",
		"/content/.git/config",
		"/content/drafts/wip.mdx",
		"/content/images/hero.png",
		"/content/notes.tmp",
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for _, path := range testPaths {
			fw.isIgnored(path)
		}
	}
}

// BenchmarkDebouncer_Process benchmarks debouncing performance
func BenchmarkDebouncer_Process(b *testing.B) {
	debouncer := NewDebouncer(50 * time.Millisecond)
	defer debouncer.Stop()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		debouncer.Process(fmt.Sprintf("page_%d.mdx", i%100), func() {})
	}
}
