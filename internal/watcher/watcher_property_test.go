//go:build property

package watcher

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestHiddenPathProperties validates dotfile exclusion
func TestHiddenPathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	segment := gen.OneGenOf(
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString().Map(func(s string) string { return "." + s }),
	)

	// Property: A path is hidden exactly when some segment is a dotfile
	properties.Property("hidden iff a segment starts with a dot", prop.ForAll(
		func(segments []string) bool {
			want := false
			for _, s := range segments {
				if strings.HasPrefix(s, ".") && s != "." && s != ".." {
					want = true
				}
			}
			return IsHidden(strings.Join(segments, "/")) == want
		},
		gen.SliceOfN(4, segment),
	))

	// Property: Files below a hidden directory are hidden too
	properties.Property("hidden directories hide their contents", prop.ForAll(
		func(dir, name string) bool {
			return IsHidden("."+dir+"/"+name) && IsHidden("docs/."+dir+"/"+name)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestDebouncerProperties validates debouncing of rapid calls
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	// Property: A burst for one key runs only the last callback, once
	properties.Property("burst collapses to last call", prop.ForAll(
		func(count int) bool {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			var runs, last atomic.Int64
			for i := 1; i <= count; i++ {
				i := int64(i)
				d.Process("intro.mdx", func() {
					runs.Add(1)
					last.Store(i)
				})
			}

			time.Sleep(80 * time.Millisecond)
			return runs.Load() == 1 && last.Load() == int64(count) && d.Pending() == 0
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
