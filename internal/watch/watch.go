// Package watch reports batches of changed source files under a workspace.
package watch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"
)

// ErrBadPattern is returned when a watch pattern is not a valid glob.
var ErrBadPattern = errors.New("invalid watch pattern")

// skipDirs are directories owned by the build itself or by gradle.
var skipDirs = map[string]bool{
	"build":   true,
	".git":    true,
	".cache":  true,
	".build":  true,
	".bin":    true,
	".run":    true,
	".gradle": true,
}

// Watcher monitors a workspace tree and delivers debounced batches of
// changed files whose contents actually differ from the last batch.
type Watcher struct {
	Root     string
	Patterns []string
	Debounce time.Duration
	Batches  <-chan []string // Slash-separated paths relative to Root

	batches  chan []string
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	watcher  *fsnotify.Watcher
	sums     map[string][32]byte
}

// New creates a watcher for root. Patterns are doublestar globs matched
// against slash-separated paths relative to root.
func New(root string, patterns []string, debounce time.Duration) (*Watcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan []string, 4)
	return &Watcher{
		Root:     root,
		Patterns: patterns,
		Debounce: debounce,
		Batches:  ch,
		batches:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		sums:     make(map[string][32]byte),
	}, nil
}

// Start records the current contents of every matching file and begins
// watching the tree.
func (w *Watcher) Start() error {
	if err := w.addTree(w.Root, true); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Batches channel. Batches nobody has
// received yet are dropped. Stop may be called more than once and must only
// follow a successful Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		<-w.done
		close(w.batches)
	})
}

// Match reports whether a slash-separated relative path matches any pattern.
func (w *Watcher) Match(rel string) bool {
	for _, p := range w.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string, record bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != w.Root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if !record {
			return nil
		}
		if rel, ok := w.relative(path); ok && w.Match(rel) {
			if sum, ok := fingerprint(path); ok {
				w.sums[rel] = sum
			}
		}
		return nil
	})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]bool)
	var last time.Time
	ticker := time.NewTicker(w.Debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if skipDirs[filepath.Base(event.Name)] {
						continue
					}
					// Files created together with the directory produce no
					// events of their own.
					w.addTree(event.Name, false)
					w.pendingUnder(event.Name, pending)
					last = time.Now()
					continue
				}
			}
			rel, ok := w.relative(event.Name)
			if !ok || !w.Match(rel) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[rel] = true
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) > 0 && time.Since(last) >= w.Debounce {
				w.flush(pending)
			}

		case <-w.stop:
			return

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Overflow and similar errors are not fatal.
		}
	}
}

func (w *Watcher) pendingUnder(dir string, pending map[string]bool) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && w.Match(rel) {
			pending[rel] = true
		}
		return nil
	})
}

// flush emits the pending files whose fingerprint changed and clears pending.
func (w *Watcher) flush(pending map[string]bool) {
	var changed []string
	for rel := range pending {
		delete(pending, rel)
		sum, ok := fingerprint(filepath.Join(w.Root, filepath.FromSlash(rel)))
		old, had := w.sums[rel]
		switch {
		case !ok && !had:
			continue
		case !ok:
			delete(w.sums, rel)
		case had && old == sum:
			continue
		default:
			w.sums[rel] = sum
		}
		changed = append(changed, rel)
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	select {
	case w.batches <- changed:
	case <-w.stop:
	}
}

// fingerprint hashes a file's contents. ok is false when the file cannot be
// read, which callers treat as removal.
func fingerprint(path string) (sum [32]byte, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return sum, false
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, false
	}
	copy(sum[:], h.Sum(nil))
	return sum, true
}
