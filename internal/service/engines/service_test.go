package engines

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuihairu/arcade/internal/db"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
	repoengines "github.com/cuihairu/arcade/internal/repo/gorm/engines"
	"github.com/cuihairu/arcade/internal/runtimes"
)

type fakeTracker map[string]bool

func (f fakeTracker) Hold(t dom.EngineType, v string) (func(), bool) {
	if f[string(t)+"@"+v] {
		return nil, false
	}
	return func() {}, true
}

func newTestService(t *testing.T, tracker InstallTracker) (*Service, string) {
	t.Helper()
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb, db.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	root := t.TempDir()
	return NewService(repoengines.NewRepo(gdb), tracker, func(dir string) bool { return runtimes.Managed(root, dir) }, nil), root
}

func TestAddFindDelete(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	manual := t.TempDir()

	e, err := svc.Add(ctx, AddInput{Version: "0.70.0", EngineType: "nwjs", InstallPath: manual})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, AddInput{Version: "0.70.0", EngineType: "NW.js", InstallPath: manual}); !apperrors.HasCode(err, apperrors.CodeInstallConflict) {
		t.Fatalf("duplicate: expected INSTALL_CONFLICT, got %v", err)
	}
	if _, err := svc.Add(ctx, AddInput{Version: "1", EngineType: "nwjs", InstallPath: filepath.Join(manual, "nope")}); !apperrors.HasCode(err, apperrors.CodeInvalidPath) {
		t.Fatalf("missing path: %v", err)
	}
	got, err := svc.Find(ctx, "nwjs", "")
	if err != nil || got.ID != e.ID {
		t.Fatalf("find latest: %+v %v", got, err)
	}
	if _, err := svc.Find(ctx, "nwjs-sdk", ""); !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
		t.Fatalf("find sdk: %v", err)
	}

	// manual installs keep their directory
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(manual); err != nil {
		t.Fatalf("manual dir removed: %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
		t.Fatalf("row still there: %v", err)
	}
}

func TestDeleteManagedRemovesDirectory(t *testing.T) {
	svc, root := newTestService(t, nil)
	ctx := context.Background()
	dir := filepath.Join(root, "nwjs", "0.80.0", "normal", "linux-x64")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	e, err := svc.Add(ctx, AddInput{Version: "0.80.0", EngineType: "nwjs", InstallPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("managed dir kept: %v", err)
	}
	left, _ := os.ReadDir(filepath.Dir(dir))
	if len(left) != 0 {
		t.Fatalf("trash left behind: %v", left)
	}
}

func TestDeleteRefusedWhileInstalling(t *testing.T) {
	svc, _ := newTestService(t, fakeTracker{"nwjs@0.80.0": true})
	ctx := context.Background()
	e, err := svc.Add(ctx, AddInput{Version: "0.80.0", EngineType: "nwjs", InstallPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, e.ID); !apperrors.HasCode(err, apperrors.CodeInstallConflict) {
		t.Fatalf("expected INSTALL_CONFLICT, got %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); err != nil {
		t.Fatalf("row removed: %v", err)
	}
}

func TestDeleteHoldsOffNewInstalls(t *testing.T) {
	root := t.TempDir()
	inst := runtimes.NewInstaller(runtimes.InstallerOptions{Root: root, Target: "linux-x64"})
	svc, _ := newTestService(t, inst)
	ctx := context.Background()
	e, err := svc.Add(ctx, AddInput{Version: "0.80.0", EngineType: "nwjs", InstallPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	release, ok := inst.Hold(dom.EngineNWJS, "0.80.0")
	if !ok {
		t.Fatal("hold refused with nothing running")
	}
	if _, err := inst.Start(ctx, "0.80.0", runtimes.FlavorNormal, ""); !apperrors.HasCode(err, apperrors.CodeInstallConflict) {
		t.Fatalf("start during hold: expected INSTALL_CONFLICT, got %v", err)
	}
	release()
	release()

	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if r2, ok := inst.Hold(dom.EngineNWJS, "0.80.0"); !ok {
		t.Fatal("delete left the engine held")
	} else {
		r2()
	}
}
