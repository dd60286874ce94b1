package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/service/games"
)

type recordingScanner struct {
	mu    sync.Mutex
	roots []string
	hit   chan struct{}
}

func (r *recordingScanner) Scan(_ context.Context, in games.ScanInput) (*dom.ScanResult, error) {
	r.mu.Lock()
	r.roots = append(r.roots, in.Root)
	r.mu.Unlock()
	select {
	case r.hit <- struct{}{}:
	default:
	}
	return &dom.ScanResult{}, nil
}

func TestNewDirectoryTriggersDebouncedRescan(t *testing.T) {
	root := t.TempDir()
	sc := &recordingScanner{hit: make(chan struct{}, 4)}
	w, err := New(Config{Roots: []string{root}, Debounce: 200 * time.Millisecond, Depth: 1}, sc, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, name := range []string{"GameA", "GameB"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-sc.hit:
	case <-time.After(5 * time.Second):
		t.Fatal("no rescan after directory creation")
	}
	time.Sleep(400 * time.Millisecond)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.roots) != 1 {
		t.Fatalf("expected one debounced rescan, got %v", sc.roots)
	}
	if sc.roots[0] != root {
		t.Fatalf("rescanned %q, want %q", sc.roots[0], root)
	}
}

func TestRootOfDepth(t *testing.T) {
	w := &Watcher{cfg: Config{Roots: []string{"/lib"}}}
	if r, d := w.rootOf(filepath.Join("/lib", "a", "b")); r != "/lib" || d != 2 {
		t.Fatalf("rootOf = %q %d", r, d)
	}
	if r, _ := w.rootOf("/elsewhere/a"); r != "" {
		t.Fatalf("outside root matched %q", r)
	}
}
