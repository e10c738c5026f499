// Package gallery serves the plots directory and the run history over HTTP.
package gallery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Plot describes one image in the plots directory.
type Plot struct {
	Name       string    `json:"name"`
	Diagnostic string    `json:"diagnostic"` // file name prefix, e.g. ohc or icearea
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
}

func isPlot(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}

func newPlot(name string, info os.FileInfo) Plot {
	prefix, _, _ := strings.Cut(name, "_")
	return Plot{
		Name:       name,
		Diagnostic: prefix,
		URL:        "/plots/" + name,
		Size:       info.Size(),
		ModTime:    info.ModTime().UTC(),
	}
}

// Index is the set of plots in one directory. Watch keeps it current.
type Index struct {
	mu    sync.RWMutex
	dir   string
	plots map[string]Plot

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewIndex creates an empty index over dir; call Scan to fill it.
func NewIndex(dir string) *Index {
	return &Index{dir: dir, plots: make(map[string]Plot)}
}

// Dir is the indexed directory.
func (ix *Index) Dir() string {
	return ix.dir
}

// Scan replaces the index with the current directory contents.
func (ix *Index) Scan() error {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		return eris.Wrapf(err, "gallery: read %s", ix.dir)
	}
	plots := make(map[string]Plot, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isPlot(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		plots[e.Name()] = newPlot(e.Name(), info)
	}

	ix.mu.Lock()
	ix.plots = plots
	ix.mu.Unlock()
	return nil
}

// List returns the plots whose diagnostic prefix matches (all when empty),
// sorted by name.
func (ix *Index) List(diagnostic string) []Plot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Plot, 0, len(ix.plots))
	for _, p := range ix.plots {
		if diagnostic != "" && p.Diagnostic != diagnostic {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one plot by file name.
func (ix *Index) Get(name string) (Plot, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.plots[name]
	return p, ok
}

func (ix *Index) update(path string) {
	name := filepath.Base(path)
	if !isPlot(name) {
		return
	}
	info, err := os.Stat(path)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err != nil || info.IsDir() {
		delete(ix.plots, name)
		return
	}
	ix.plots[name] = newPlot(name, info)
}

// Watch starts following changes to the directory until ctx is done or
// Stop is called. It is non-blocking.
func (ix *Index) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "gallery: create watcher")
	}
	if err := w.Add(ix.dir); err != nil {
		_ = w.Close()
		return eris.Wrapf(err, "gallery: watch %s", ix.dir)
	}
	ix.watcher = w
	ix.stopCh = make(chan struct{})
	ix.doneCh = make(chan struct{})
	go ix.run(ctx)
	return nil
}

// Stop ends a Watch and waits for the event loop to exit.
func (ix *Index) Stop() {
	if ix.watcher == nil {
		return
	}
	close(ix.stopCh)
	<-ix.doneCh
	if err := ix.watcher.Close(); err != nil {
		zap.L().Warn("gallery: close watcher", zap.Error(err))
	}
	ix.watcher = nil
}

func (ix *Index) run(ctx context.Context) {
	defer close(ix.doneCh)
	log := zap.L().With(zap.String("component", "gallery.index"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ix.stopCh:
			return
		case event, ok := <-ix.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("plot changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			ix.update(event.Name)
		case err, ok := <-ix.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}
