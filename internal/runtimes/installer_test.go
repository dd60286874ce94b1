package runtimes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuihairu/arcade/internal/objstore"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

func TestInstallRegistersEngineAfterMove(t *testing.T) {
	h := newHarness(t, "0.80.0")
	h.up.publish("0.80.0", FlavorNormal, true)

	task, err := h.installer.Start(context.Background(), "v0.80.0", FlavorNormal, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	eng, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	want := filepath.Join(h.root, "nwjs", "0.80.0", "normal", testTarget)
	if eng.InstallPath != want || eng.EngineType != ports.EngineNWJS || eng.Version != "0.80.0" {
		t.Fatalf("engine = %+v", eng)
	}
	if eng.Meta["sha256"] == "" || eng.Meta["flavor"] != "normal" {
		t.Fatalf("meta = %v", eng.Meta)
	}
	fi, err := os.Stat(filepath.Join(want, "nw"))
	if err != nil {
		t.Fatalf("nw binary missing: %v", err)
	}
	if fi.Mode().Perm()&0o100 == 0 {
		t.Fatalf("exec bit lost: %v", fi.Mode())
	}
	if task.State() != StateInstalled {
		t.Fatalf("state = %s", task.State())
	}
	if left, _ := os.ReadDir(filepath.Join(h.root, "_downloads")); len(left) != 0 {
		t.Fatalf("downloads not cleaned: %v", left)
	}

	evs := h.rec.byTask("task-1")
	if len(evs) < 3 {
		t.Fatalf("events: %+v", evs)
	}
	if evs[0].Kind != ports.EventDownloadProgress {
		t.Fatalf("first event %+v", evs[0])
	}
	n := len(evs)
	if evs[n-2].Stage != ports.StageDownloaded || evs[n-1].Stage != ports.StageInstalled || !evs[n-1].Terminal {
		t.Fatalf("stage events: %+v %+v", evs[n-2], evs[n-1])
	}
	if p := evs[n-2].Progress; p != 0 && p < 100 {
		t.Fatalf("downloaded stage reports progress %v after a complete download", p)
	}
	last := -1.0
	for _, ev := range evs {
		if ev.Kind == ports.EventDownloadProgress && ev.Percent != nil {
			if *ev.Percent < last {
				t.Fatalf("percent decreased")
			}
			last = *ev.Percent
		}
	}
	if last != 100 {
		t.Fatalf("download never reached 100%%: %v", last)
	}

	// second install of the same bundle reuses the row
	again, err := h.installer.Install(context.Background(), "0.80.0", FlavorNormal)
	if err != nil || again.ID != eng.ID {
		t.Fatalf("reinstall: %v %+v", err, again)
	}
}

func TestHoldExcludesInstalls(t *testing.T) {
	h := newHarness(t, "0.80.0")
	h.up.publish("0.80.0", FlavorNormal, false)
	ctx := context.Background()

	release, ok := h.installer.Hold(ports.EngineNWJS, "v0.80.0")
	if !ok {
		t.Fatal("hold refused with nothing running")
	}
	if _, err := h.installer.Start(ctx, "0.80.0", FlavorNormal, ""); !apperrors.HasCode(err, apperrors.CodeInstallConflict) {
		t.Fatalf("start while held: expected INSTALL_CONFLICT, got %v", err)
	}
	// other flavors are unaffected
	if _, ok := h.installer.Hold(ports.EngineNWJSSDK, "0.80.0"); !ok {
		t.Fatal("sdk hold refused")
	}
	release()

	gate := make(chan struct{})
	h.up.mu.Lock()
	h.up.gate = gate
	h.up.mu.Unlock()
	task, err := h.installer.Start(ctx, "0.80.0", FlavorNormal, "")
	if err != nil {
		t.Fatalf("start after release: %v", err)
	}
	if _, ok := h.installer.Hold(ports.EngineNWJS, "0.80.0"); ok {
		t.Fatal("hold granted during a running install")
	}
	close(gate)
	if _, err := task.Wait(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}
	r, ok := h.installer.Hold(ports.EngineNWJS, "0.80.0")
	if !ok {
		t.Fatal("hold refused after install finished")
	}
	r()
}

func TestConcurrentInstallsShareOneTask(t *testing.T) {
	h := newHarness(t, "0.80.0")
	h.up.publish("0.80.0", FlavorSDK, false)
	gate := make(chan struct{})
	h.up.mu.Lock()
	h.up.gate = gate
	h.up.mu.Unlock()

	const n = 4
	tasks := make([]*Task, n)
	for i := range tasks {
		task, err := h.installer.Start(context.Background(), "0.80.0", FlavorSDK, "")
		if err != nil {
			t.Fatal(err)
		}
		tasks[i] = task
	}
	for _, task := range tasks[1:] {
		if task != tasks[0] {
			t.Fatalf("task ids differ: %s vs %s", task.ID, tasks[0].ID)
		}
	}
	if _, ok := h.installer.Hold(ports.EngineNWJSSDK, "0.80.0"); ok {
		t.Fatal("install should be in flight")
	}
	close(gate)

	var wg sync.WaitGroup
	ids := make([]string, n)
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task *Task) {
			defer wg.Done()
			eng, err := task.Wait(context.Background())
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			ids[i] = eng.ID
		}(i, task)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("engines differ: %v", ids)
		}
	}
	if list := h.engines(t); len(list) != 1 || list[0].EngineType != ports.EngineNWJSSDK {
		t.Fatalf("rows: %+v", list)
	}
	if got := h.up.hitCount("/" + ArchiveKey("0.80.0", ArchiveName("0.80.0", FlavorSDK, testTarget))); got != 1 {
		t.Fatalf("archive fetched %d times", got)
	}
	dirs, _ := os.ReadDir(filepath.Join(h.root, "nwjs", "0.80.0"))
	if len(dirs) != 1 {
		t.Fatalf("install dirs: %v", dirs)
	}
	if release, ok := h.installer.Hold(ports.EngineNWJSSDK, "0.80.0"); !ok {
		t.Fatal("install still in flight")
	} else {
		release()
	}
}

func TestChecksumMismatchLeavesNoState(t *testing.T) {
	h := newHarness(t, "0.80.0")
	h.up.publish("0.80.0", FlavorNormal, false)
	name := ArchiveName("0.80.0", FlavorNormal, testTarget)
	h.up.mu.Lock()
	h.up.files["/"+ArchiveKey("0.80.0", ChecksumsName)] = []byte("deadbeef  " + name + "\n")
	h.up.mu.Unlock()

	task, err := h.installer.Start(context.Background(), "0.80.0", FlavorNormal, "bad-sum")
	if err != nil {
		t.Fatal(err)
	}
	_, err = task.Wait(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeDownloadFailed) {
		t.Fatalf("expected DOWNLOAD_FAILED, got %v", err)
	}
	if task.State() != StateFailed {
		t.Fatalf("state = %s", task.State())
	}
	if len(h.engines(t)) != 0 {
		t.Fatal("engine row created")
	}
	if _, err := os.Stat(task.InstallDir); !os.IsNotExist(err) {
		t.Fatalf("install dir exists: %v", err)
	}
	evs := h.rec.byTask("bad-sum")
	if last := evs[len(evs)-1]; last.Kind != ports.EventTaskFailed || !last.Terminal {
		t.Fatalf("last event %+v", last)
	}
}

func TestMissingArchiveFails(t *testing.T) {
	h := newHarness(t, "0.80.0")
	_, err := h.installer.Install(context.Background(), "0.80.0", FlavorNormal)
	if !apperrors.HasCode(err, apperrors.CodeDownloadFailed) {
		t.Fatalf("expected DOWNLOAD_FAILED, got %v", err)
	}
}

func TestDownloadResumesPartialFile(t *testing.T) {
	h := newHarness(t, "0.80.0")
	body := h.up.publish("0.80.0", FlavorNormal, true)
	name := ArchiveName("0.80.0", FlavorNormal, testTarget)
	if err := os.MkdirAll(filepath.Join(h.root, "_downloads"), 0o755); err != nil {
		t.Fatal(err)
	}
	half := len(body) / 2
	if err := os.WriteFile(filepath.Join(h.root, "_downloads", name+".part"), body[:half], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.installer.Install(context.Background(), "0.80.0", FlavorNormal); err != nil {
		t.Fatalf("install: %v", err)
	}
	h.up.mu.Lock()
	defer h.up.mu.Unlock()
	if len(h.up.ranges) != 1 || h.up.ranges[0] != "bytes="+itoa(half)+"-" {
		t.Fatalf("range requests: %v", h.up.ranges)
	}
}

func TestCallerCancelDoesNotStopTask(t *testing.T) {
	h := newHarness(t, "0.80.0")
	h.up.publish("0.80.0", FlavorNormal, true)
	gate := make(chan struct{})
	h.up.mu.Lock()
	h.up.gate = gate
	h.up.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	task, err := h.installer.Start(ctx, "0.80.0", FlavorNormal, "")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := task.Wait(ctx); err != context.Canceled {
		t.Fatalf("wait: %v", err)
	}
	close(gate)
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("task did not finish")
	}
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("task failed: %v", err)
	}
}

func TestMirrorSource(t *testing.T) {
	h := newHarness(t, "0.80.0")
	ctx := context.Background()
	st, err := objstore.Open(ctx, objstore.Config{Driver: "file", BaseDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	name := ArchiveName("0.81.0", FlavorNormal, testTarget)
	body := runtimeArchive(t, "0.81.0", FlavorNormal)
	if err := st.Put(ctx, ArchiveKey("0.81.0", name), bytesReader(body), "application/gzip"); err != nil {
		t.Fatal(err)
	}
	inst := NewInstaller(InstallerOptions{Root: h.root, Source: &MirrorSource{Store: st}, Repo: h.repo, VerifyChecksum: true, Target: testTarget})
	eng, err := inst.Install(ctx, "0.81.0", FlavorNormal)
	if err != nil {
		t.Fatalf("install from mirror: %v", err)
	}
	if eng.Meta["source"] != "mirror" {
		t.Fatalf("meta = %v", eng.Meta)
	}
}

func TestMirrorSourceFillsFromUpstream(t *testing.T) {
	h := newHarness(t, "0.80.0")
	ctx := context.Background()
	h.up.publish("0.81.0", FlavorNormal, true)
	st, err := objstore.Open(ctx, objstore.Config{Driver: "file", BaseDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	src := &MirrorSource{Store: st, Upstream: NewHTTPSource(h.up.srv.URL, h.up.srv.Client())}
	inst := NewInstaller(InstallerOptions{Root: h.root, Source: src, Repo: h.repo, VerifyChecksum: true, Target: testTarget})
	if _, err := inst.Install(ctx, "0.81.0", FlavorNormal); err != nil {
		t.Fatalf("install through mirror: %v", err)
	}

	key := ArchiveKey("0.81.0", ArchiveName("0.81.0", FlavorNormal, testTarget))
	rc, _, err := st.Open(ctx, key, 0)
	if err != nil {
		t.Fatalf("archive not copied into mirror: %v", err)
	}
	rc.Close()
	hits := h.up.hitCount("/" + key)
	if _, err := src.Fetch(ctx, key, 0); err != nil {
		t.Fatal(err)
	}
	if h.up.hitCount("/"+key) != hits {
		t.Fatal("second fetch went upstream")
	}

	missing := ArchiveKey("9.9.9", ArchiveName("9.9.9", FlavorNormal, testTarget))
	if _, err := src.Fetch(ctx, missing, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
