package runtimes

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

func itoa(n int) string { return strconv.Itoa(n) }

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func TestResolverCachesAndCollapses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"latest":"v0.82.1"}`))
	}))
	defer srv.Close()
	r := NewResolver(srv.URL, srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.Stable(context.Background())
			if err != nil || v != "0.82.1" {
				t.Errorf("stable = %q, %v", v, err)
			}
		}()
	}
	wg.Wait()
	if _, err := r.Stable(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := hits.Load(); n < 1 || n > 8 {
		t.Fatalf("hits = %d", n)
	}
	before := hits.Load()
	_, _ = r.Stable(context.Background())
	if hits.Load() != before {
		t.Fatal("cached value not reused")
	}
}

func TestResolverErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	if _, err := NewResolver(srv.URL, srv.Client()).Stable(context.Background()); !apperrors.HasCode(err, apperrors.CodeDownloadFailed) {
		t.Fatalf("expected DOWNLOAD_FAILED, got %v", err)
	}
}

func TestStableInfoAndDownload(t *testing.T) {
	h := newHarness(t, "v0.80.0")
	h.up.publish("0.80.0", FlavorSDK, true)
	ctx := context.Background()

	info, err := h.manager.StableInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != "0.80.0" || info.Target != testTarget || info.SDKURL != h.up.srv.URL+"/v0.80.0/nwjs-sdk-v0.80.0-linux-x64.tar.gz" {
		t.Fatalf("info = %+v", info)
	}

	res, err := h.manager.DownloadStable(ctx, FlavorSDK, "dl-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.TaskID != "dl-1" || res.EngineID == "" || res.State != StateInstalled {
		t.Fatalf("result = %+v", res)
	}
}

func TestUpdateReplacesOlderRuntime(t *testing.T) {
	h := newHarness(t, "0.79.0")
	h.up.publish("0.79.0", FlavorNormal, true)
	h.up.publish("0.80.0", FlavorNormal, true)
	ctx := context.Background()

	old, err := h.installer.Install(ctx, "0.79.0", FlavorNormal)
	if err != nil {
		t.Fatal(err)
	}
	info, err := h.manager.UpdateInfo(ctx, old.ID)
	if err != nil || info.UpdateAvailable {
		t.Fatalf("same version must not offer an update: %+v %v", info, err)
	}
	res, err := h.manager.Update(ctx, old.ID)
	if err != nil || res.Updated {
		t.Fatalf("equal version update: %+v %v", res, err)
	}

	// a new process resolves a newer stable
	h.up.mu.Lock()
	h.up.stable = "0.80.0"
	h.up.mu.Unlock()
	h.manager.resolver = NewResolver(h.up.srv.URL+"/versions.json", h.up.srv.Client())

	res, err = h.manager.Update(ctx, old.ID)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.Updated || res.FromVersion != "0.79.0" || res.ToVersion != "0.80.0" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := h.repo.Get(ctx, old.ID); !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
		t.Fatalf("old row still present: %v", err)
	}
	if _, err := os.Stat(old.InstallPath); !os.IsNotExist(err) {
		t.Fatalf("old dir still present: %v", err)
	}
	list := h.engines(t)
	if len(list) != 1 || list[0].Version != "0.80.0" || list[0].EngineType != ports.EngineNWJS {
		t.Fatalf("rows = %+v", list)
	}
}

func TestUpdateInfoForNonRuntime(t *testing.T) {
	h := newHarness(t, "0.80.0")
	ctx := context.Background()
	eng := &ports.Engine{ID: "manual", Name: "Ren'Py SDK", Version: "8.1.0", EngineType: ports.EngineRenPy, InstallPath: t.TempDir()}
	if err := h.repo.Create(ctx, eng); err != nil {
		t.Fatal(err)
	}
	info, err := h.manager.UpdateInfo(ctx, "manual")
	if err != nil || info.UpdateAvailable || info.LatestVersion != "8.1.0" {
		t.Fatalf("info = %+v, %v", info, err)
	}
}
