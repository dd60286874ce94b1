// Package watch rescans library roots when new directories appear in them.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/service/games"
)

// Scanner is satisfied by *games.Service.
type Scanner interface {
	Scan(ctx context.Context, in games.ScanInput) (*dom.ScanResult, error)
}

// Config controls the library watcher.
type Config struct {
	Roots    []string      `mapstructure:"roots"`
	Debounce time.Duration `mapstructure:"debounce"`
	// Depth is how many directory levels below each root are watched.
	Depth int `mapstructure:"depth"`
}

func DefaultConfig() Config { return Config{Debounce: 2 * time.Second, Depth: 1} }

type Watcher struct {
	cfg     Config
	scanner Scanner
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	debouncers map[string]*time.Timer
	running    bool
	wg         sync.WaitGroup
}

func New(cfg Config, scanner Scanner, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if cfg.Depth < 0 {
		cfg.Depth = 0
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		cfg:        cfg,
		scanner:    scanner,
		log:        logger.With("component", "watch"),
		watcher:    fw,
		debouncers: make(map[string]*time.Timer),
	}, nil
}

// Start registers the roots and processes events until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	for i, r := range w.cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return fmt.Errorf("watch root %q: %w", r, err)
		}
		w.cfg.Roots[i] = abs
		if err := w.addTree(abs, 0); err != nil {
			w.log.Error("watch root", "root", abs, "error", err)
		}
	}
	w.wg.Add(1)
	go w.loop(ctx)
	w.log.Info("library watcher started", "roots", w.cfg.Roots, "debounce", w.cfg.Debounce)
	return nil
}

func (w *Watcher) addTree(dir string, depth int) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	if depth >= w.cfg.Depth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			_ = w.addTree(filepath.Join(dir, e.Name()), depth+1)
		}
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	st, err := os.Stat(ev.Name)
	if err != nil || !st.IsDir() || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	root, depth := w.rootOf(ev.Name)
	if root == "" {
		return
	}
	if depth <= w.cfg.Depth {
		_ = w.addTree(ev.Name, depth)
	}
	w.log.Debug("directory appeared", "path", ev.Name, "root", root)
	w.debounce(ctx, root)
}

// rootOf returns the watched root containing p and p's depth below it.
func (w *Watcher) rootOf(p string) (string, int) {
	for _, r := range w.cfg.Roots {
		rel, err := filepath.Rel(r, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return r, len(strings.Split(rel, string(filepath.Separator)))
	}
	return "", 0
}

func (w *Watcher) debounce(ctx context.Context, root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debouncers[root]; ok {
		t.Stop()
	}
	w.debouncers[root] = time.AfterFunc(w.cfg.Debounce, func() { w.rescan(ctx, root) })
}

func (w *Watcher) rescan(ctx context.Context, root string) {
	if ctx.Err() != nil {
		return
	}
	res, err := w.scanner.Scan(ctx, games.ScanInput{Root: root, MaxDepth: -1})
	if err != nil {
		w.log.Warn("rescan failed", "root", root, "error", err)
		return
	}
	w.log.Info("rescanned library root", "root", root, "imported", res.Imported, "found", res.FoundGames)
}

// Stop releases the underlying watcher and cancels pending rescans.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for k, t := range w.debouncers {
		t.Stop()
		delete(w.debouncers, k)
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
