package httpserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuihairu/arcade/internal/db"
	"github.com/cuihairu/arcade/internal/events"
	"github.com/cuihairu/arcade/internal/maintenance"
	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
	repoengines "github.com/cuihairu/arcade/internal/repo/gorm/engines"
	repogames "github.com/cuihairu/arcade/internal/repo/gorm/games"
	reposettings "github.com/cuihairu/arcade/internal/repo/gorm/settings"
	"github.com/cuihairu/arcade/internal/sandbox"
	"github.com/cuihairu/arcade/internal/service/engines"
	"github.com/cuihairu/arcade/internal/service/games"
	"github.com/cuihairu/arcade/internal/service/settings"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSpawner struct{ n int }

func (f *fakeSpawner) Spawn(*sandbox.Plan) (int, error) { f.n++; return 31337, nil }

type fixture struct {
	srv     *Server
	handler http.Handler
	bus     *events.Bus
	spawner *fakeSpawner
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb, db.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	root := t.TempDir()
	st := settings.NewService(reposettings.NewRepo(gdb), root)
	layout := profile.NewLayout(st)
	gamesRepo := repogames.NewPortRepo(repogames.NewRepo(gdb))
	engRepo := repoengines.NewRepo(gdb)
	bus := events.NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })
	sp := &fakeSpawner{}

	s := NewServer(Config{}, Deps{
		Games:    games.NewService(gamesRepo, layout, games.Options{Events: bus}),
		Engines:  engines.NewService(engRepo, nil, nil, nil),
		Launcher: sandbox.NewLauncher(gamesRepo, engRepo, layout, sandbox.Options{Spawner: sp}),
		Cleaner:  maintenance.NewCleaner(gamesRepo, layout, nil),
		Settings: st,
		Bus:      bus,
	})
	return &fixture{srv: s, handler: s.ginEngine(), bus: bus, spawner: sp, root: root}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := jsonAPI.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func makeMVGame(t *testing.T, dir string) {
	t.Helper()
	for _, f := range []string{"js/rpg_core.js", "data/System.json", "package.json", "Game.exe"} {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("{}"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGameLifecycle(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), "Foo")
	makeMVGame(t, dir)

	w := f.do(t, http.MethodPost, "/api/games", `{"path":"`+filepath.ToSlash(dir)+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	var g dom.Game
	decode(t, w, &g)
	if g.EngineType != dom.EngineRPGMakerMV || g.ProfileKey != g.ID || !g.PathValid {
		t.Fatalf("game = %+v", g)
	}

	w = f.do(t, http.MethodPost, "/api/games", `{"path":"`+filepath.ToSlash(dir)+`"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("re-import: %d", w.Code)
	}

	w = f.do(t, http.MethodPut, "/api/games/"+g.ID+"/settings", `{"entryPath":"Game.exe","args":["--test"],"sandboxHome":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save settings: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPost, "/api/games/"+g.ID+"/launch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("launch: %d %s", w.Code, w.Body.String())
	}
	var res dom.LaunchResult
	decode(t, w, &res)
	if res.ProcessID != 31337 || f.spawner.n != 1 {
		t.Fatalf("launch result = %+v", res)
	}

	w = f.do(t, http.MethodGet, "/api/games/"+g.ID, "")
	decode(t, w, &g)
	if g.LastPlayedAt == nil {
		t.Fatal("lastPlayedAt not set")
	}

	if w = f.do(t, http.MethodDelete, "/api/games/"+g.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/api/maintenance/cleanup", "")
	var cr dom.CleanupResult
	decode(t, w, &cr)
	if cr.Deleted != 1 {
		t.Fatalf("cleanup = %+v", cr)
	}
}

func TestSaveSettingsKeepsSandboxDefault(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), "Bar")
	makeMVGame(t, dir)
	w := f.do(t, http.MethodPost, "/api/games", `{"path":"`+filepath.ToSlash(dir)+`"}`)
	var g dom.Game
	decode(t, w, &g)

	w = f.do(t, http.MethodPut, "/api/games/"+g.ID+"/settings", `{"entryPath":"Game.exe","args":["--test"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save settings: %d %s", w.Code, w.Body.String())
	}
	var cfg dom.LaunchConfig
	decode(t, w, &cfg)
	if !cfg.SandboxHome || cfg.EntryPath != "Game.exe" {
		t.Fatalf("saved = %+v", cfg)
	}

	w = f.do(t, http.MethodPost, "/api/games/"+g.ID+"/launch?dry_run=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("plan: %d %s", w.Code, w.Body.String())
	}
	var p sandbox.Plan
	decode(t, w, &p)
	home := ""
	for _, kv := range p.Env {
		if strings.HasPrefix(kv, "HOME=") {
			home = strings.TrimPrefix(kv, "HOME=")
		}
	}
	if home == "" || !strings.HasPrefix(home, p.ProfileDir) {
		t.Fatalf("HOME %q not under profile %q", home, p.ProfileDir)
	}
	if f.spawner.n != 0 {
		t.Fatal("dry run spawned a process")
	}
}

func TestErrorBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/games/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body errBody
	decode(t, w, &body)
	if body.Code != "GAME_NOT_FOUND" || body.RequestID == "" {
		t.Fatalf("body = %+v", body)
	}

	w = f.do(t, http.MethodPost, "/api/games", `{"path":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d", w.Code)
	}
	if w = f.do(t, http.MethodGet, "/api/runtime/stable", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("runtime without manager: %d", w.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	f := newFixture(t)
	lib := t.TempDir()
	makeMVGame(t, filepath.Join(lib, "A"))
	makeMVGame(t, filepath.Join(lib, "nested", "B"))

	w := f.do(t, http.MethodPost, "/api/scan", `{"root":"`+filepath.ToSlash(lib)+`","taskId":"scan-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("scan: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		TaskID string         `json:"taskId"`
		Result dom.ScanResult `json:"result"`
	}
	decode(t, w, &out)
	if out.TaskID != "scan-1" || out.Result.Imported != 2 {
		t.Fatalf("scan = %+v", out)
	}
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?task_id=t1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	f.bus.Publish(dom.Event{Kind: dom.EventScanProgress, TaskID: "t1", Label: "a", Progress: 10})
	f.bus.Publish(dom.Event{Kind: dom.EventScanProgress, TaskID: "other", Label: "x", Progress: 50})
	f.bus.Publish(dom.Event{Kind: dom.EventScanProgress, TaskID: "t1", Label: "done", Progress: 100, Terminal: true})

	var kinds []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
		if strings.Contains(line, `"taskId":"other"`) {
			t.Fatal("event for another task relayed")
		}
	}
	if len(kinds) != 2 {
		t.Fatalf("events = %v", kinds)
	}
}
