package classify

import (
	"testing"
	"testing/fstest"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

func file() *fstest.MapFile { return &fstest.MapFile{Data: []byte("x")} }

func TestClassifyKnownLayouts(t *testing.T) {
	cases := []struct {
		name string
		fsys fstest.MapFS
		want ports.EngineType
	}{
		{"mz", fstest.MapFS{"js/rmmz_core.js": file(), "data/System.json": file(), "package.json": file()}, ports.EngineRPGMakerMZ},
		{"mv under www", fstest.MapFS{"www/js/rpg_core.js": file(), "www/data/System.json": file(), "package.json": file()}, ports.EngineRPGMakerMV},
		{"vxace", fstest.MapFS{"Game.exe": file(), "System/RGSS301.dll": file(), "Game.ini": file()}, ports.EngineRPGMakerVXAce},
		{"vx lowercase", fstest.MapFS{"game.exe": file(), "rgss202e.dll": file(), "game.ini": file()}, ports.EngineRPGMakerVX},
		{"renpy", fstest.MapFS{"renpy/__init__.py": file(), "game/script.rpy": file(), "lib/py3-linux-x86_64/python": file()}, ports.EngineRenPy},
		{"renpy compiled only", fstest.MapFS{"Foo.sh": file(), "game/options.rpyc": file(), "game/archive.rpa": file(), "renpy.sh": file()}, ports.EngineRenPy},
		{"empty", fstest.MapFS{"readme.txt": file()}, ports.EngineOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FS(tc.fsys)
			if got.Engine != tc.want {
				t.Fatalf("got %s (candidates %+v), want %s", got.Engine, got.Candidates, tc.want)
			}
		})
	}
}

func TestMinimumScoreAndAmbiguity(t *testing.T) {
	// data + package only: both MV and MZ reach 3 < 4
	res := FS(fstest.MapFS{"data/System.json": file(), "package.json": file()})
	if res.Engine != ports.EngineOther {
		t.Fatalf("expected other, got %s", res.Engine)
	}
	if !res.Ambiguous {
		t.Fatalf("expected ambiguous flag")
	}
	if !apperrors.HasCode(res.Err(), apperrors.CodeClassificationAmbiguous) {
		t.Fatalf("expected CLASSIFICATION_AMBIGUOUS, got %v", res.Err())
	}
	// no signals at all is plain other
	if res := FS(fstest.MapFS{"notes.md": file()}); res.Ambiguous || res.Err() != nil {
		t.Fatalf("no signal should not be ambiguous")
	}
}

func TestTieBreakIsBySpecificity(t *testing.T) {
	// both MV and MZ cores present: equal scores, MZ is more specific
	fsys := fstest.MapFS{
		"js/rpg_core.js":   file(),
		"js/rmmz_core.js":  file(),
		"data/System.json": file(),
	}
	if got := FS(fsys).Engine; got != ports.EngineRPGMakerMZ {
		t.Fatalf("tie should resolve to MZ, got %s", got)
	}
	// the VX Ace and VX DLLs together: VX Ace wins
	fsys = fstest.MapFS{"Game.exe": file(), "RGSS300.dll": file(), "RGSS202J.dll": file()}
	if got := FS(fsys).Engine; got != ports.EngineRPGMakerVXAce {
		t.Fatalf("tie should resolve to VX Ace, got %s", got)
	}
}

func TestIsRuntimeDir(t *testing.T) {
	if !IsRuntimeDir(fstest.MapFS{}, "nwjs-sdk-v0.90.0-linux-x64") {
		t.Fatal("nwjs-* directory names are runtimes")
	}
	bundle := fstest.MapFS{"nw": file(), "nw.pak": file(), "icudtl.dat": file(), "locales/en-US.pak": file()}
	if !IsRuntimeDir(bundle, "runtime") {
		t.Fatal("unpacked bundle should be detected")
	}
	if IsRuntimeDir(fstest.MapFS{"nw.exe": file(), "Game.exe": file()}, "MyGame") {
		t.Fatal("a game with a bundled exe is not a bare runtime")
	}
}
