package runtimes

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuihairu/arcade/internal/db"
	"github.com/cuihairu/arcade/internal/ports"
	repoengines "github.com/cuihairu/arcade/internal/repo/gorm/engines"
)

const testTarget = "linux-x64"

type tarEntry struct {
	name string
	body string
	mode int64
	link string
}

func makeTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: e.mode, Size: int64(len(e.body)), Typeflag: tar.TypeReg, ModTime: time.Unix(0, 0)}
		if e.mode == 0 {
			h.Mode = 0o644
		}
		if strings.HasSuffix(e.name, "/") {
			h.Typeflag, h.Mode, h.Size = tar.TypeDir, 0o755, 0
		}
		if e.link != "" {
			h.Typeflag, h.Linkname, h.Size = tar.TypeSymlink, e.link, 0
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if h.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// runtimeArchive builds a tarball shaped like an upstream NW.js release.
func runtimeArchive(t *testing.T, version string, f Flavor) []byte {
	root := strings.TrimSuffix(ArchiveName(version, f, testTarget), ".tar.gz") + "/"
	return makeTarGz(t, []tarEntry{
		{name: root},
		{name: root + "nw", body: "#!/bin/sh\n", mode: 0o755},
		{name: root + "nw.pak", body: strings.Repeat("p", 100<<10)},
		{name: root + "icudtl.dat", body: "icu"},
		{name: root + "locales/"},
		{name: root + "locales/en-US.pak", body: "en"},
	})
}

// upstream is a fake dl.nwjs.io + versions.json.
type upstream struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	files  map[string][]byte
	hits   map[string]int
	ranges []string
	stable string
	gate   chan struct{}
}

func newUpstream(t *testing.T, stable string) *upstream {
	u := &upstream{t: t, files: map[string][]byte{}, hits: map[string]int{}, stable: stable}
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.hits[r.URL.Path]++
	if rg := r.Header.Get("Range"); rg != "" {
		u.ranges = append(u.ranges, rg)
	}
	body, ok := u.files[r.URL.Path]
	gate := u.gate
	stable := u.stable
	u.mu.Unlock()

	if r.URL.Path == "/versions.json" {
		fmt.Fprintf(w, `{"stable":%q,"latest":"0.99.0"}`, stable)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if gate != nil && strings.HasSuffix(r.URL.Path, ".tar.gz") {
		<-gate
	}
	http.ServeContent(w, r, r.URL.Path, time.Unix(0, 0), bytes.NewReader(body))
}

// publish adds an archive for version/flavor and (optionally) its checksum.
func (u *upstream) publish(version string, f Flavor, withSum bool) []byte {
	name := ArchiveName(version, f, testTarget)
	body := runtimeArchive(u.t, version, f)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.files["/"+ArchiveKey(version, name)] = body
	if withSum {
		sum := sha256.Sum256(body)
		u.files["/"+ArchiveKey(version, ChecksumsName)] = []byte(hex.EncodeToString(sum[:]) + "  " + name + "\n")
	}
	return body
}

func (u *upstream) hitCount(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

type recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recorder) Publish(ev ports.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) byTask(id string) []ports.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.Event
	for _, ev := range r.events {
		if ev.TaskID == id {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	up        *upstream
	repo      *repoengines.Repo
	rec       *recorder
	installer *Installer
	manager   *Manager
	root      string
}

func newHarness(t *testing.T, stable string) *harness {
	t.Helper()
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb, db.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h := &harness{up: newUpstream(t, stable), repo: repoengines.NewRepo(gdb), rec: &recorder{}, root: t.TempDir()}
	src := NewHTTPSource(h.up.srv.URL, h.up.srv.Client())
	h.installer = NewInstaller(InstallerOptions{
		Root:           h.root,
		Source:         src,
		Repo:           h.repo,
		Events:         h.rec,
		VerifyChecksum: true,
		Target:         testTarget,
	})
	resolver := NewResolver(h.up.srv.URL+"/versions.json", h.up.srv.Client())
	h.manager = NewManager(resolver, h.installer, h.repo, src, nil)
	return h
}

func (h *harness) engines(t *testing.T) []*ports.Engine {
	t.Helper()
	list, err := h.repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return list
}
