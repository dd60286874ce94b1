package games

import (
    "context"
    "log/slog"
    "os"
    "path/filepath"
    "strings"

    "github.com/cuihairu/arcade/internal/classify"
    apperrors "github.com/cuihairu/arcade/internal/platform/errors"
    dom "github.com/cuihairu/arcade/internal/ports"
    "github.com/cuihairu/arcade/internal/telemetry"
)

// estimateLimit caps the directory count of the progress pre-pass.
const estimateLimit = 5000

// ScanInput describes a library scan. MaxDepth < 0 selects the service default;
// depth 0 is the root itself.
type ScanInput struct {
    Root     string `json:"root"`
    MaxDepth int    `json:"maxDepth"`
    TaskID   string `json:"taskId,omitempty"`
}

type scanItem struct {
    path  string
    depth int
}

// Scan walks Root breadth-first and registers every recognized game directory.
// Recognized directories are not descended into. Cancelling ctx stops the walk;
// the partial result is returned together with the context error.
func (s *Service) Scan(ctx context.Context, in ScanInput) (*dom.ScanResult, error) {
    ctx, span := telemetry.Start(ctx, "games.scan", telemetry.TaskIDKey.String(in.TaskID))
    res, err := s.scan(ctx, in)
    telemetry.End(span, err)
    if err != nil && in.TaskID != "" {
        s.events.Publish(dom.Event{Kind: dom.EventTaskFailed, TaskID: in.TaskID, Error: err.Error(), Terminal: true, At: s.now()})
    }
    return res, err
}

func (s *Service) scan(ctx context.Context, in ScanInput) (*dom.ScanResult, error) {
    root, err := readableDir(in.Root)
    if err != nil { return nil, err }
    maxDepth := in.MaxDepth
    if maxDepth < 0 { maxDepth = s.maxDepth }

    res := &dom.ScanResult{}
    total := estimateDirs(root, maxDepth)
    visited := map[string]struct{}{}
    queue := []scanItem{{path: root}}
    log := s.log.With("root", root, "task_id", in.TaskID)

    for len(queue) > 0 {
        if err := ctx.Err(); err != nil {
            log.Info("scan cancelled", "scanned", res.ScannedDirs)
            return res, err
        }
        it := queue[0]
        queue = queue[1:]

        real, err := filepath.EvalSymlinks(it.path)
        if err != nil {
            res.Unreadable++
            continue
        }
        if _, seen := visited[real]; seen { continue }
        visited[real] = struct{}{}
        it.path = real

        res.ScannedDirs++
        s.metrics.ScannedDir(ctx)
        children := s.visit(ctx, it, maxDepth, res, log)
        queue = append(queue, children...)
        s.progress(in.TaskID, it.path, res.ScannedDirs, total)
    }
    if in.TaskID != "" {
        s.events.Publish(dom.Event{Kind: dom.EventScanProgress, TaskID: in.TaskID, Label: "done", Progress: 100, Terminal: true, At: s.now()})
    }
    log.Info("scan finished", "scanned", res.ScannedDirs, "found", res.FoundGames,
        "imported", res.Imported, "skipped", res.SkippedExisting, "unreadable", res.Unreadable)
    return res, nil
}

// visit classifies one directory and returns the subdirectories to walk next.
func (s *Service) visit(ctx context.Context, it scanItem, maxDepth int, res *dom.ScanResult, log *slog.Logger) []scanItem {
    entries, err := os.ReadDir(it.path)
    if err != nil {
        res.Unreadable++
        log.Debug("unreadable directory", "path", it.path, "error", err)
        return nil
    }
    cls := classify.FS(os.DirFS(it.path))
    if cls.Recognized() {
        res.FoundGames++
        _, created, err := s.register(ctx, it.path, cls.Engine, "")
        switch {
        case created:
            res.Imported++
        case apperrors.HasCode(err, apperrors.CodeGameExists):
            res.SkippedExisting++
        default:
            log.Warn("register scanned game", "path", it.path, "error", err)
        }
        return nil
    }
    if cls.Ambiguous { log.Debug("engine signals inconclusive", "path", it.path, "error", cls.Err()) }
    if it.depth > 0 && classify.IsRuntimeDir(os.DirFS(it.path), filepath.Base(it.path)) { return nil }
    if it.depth >= maxDepth { return nil }

    var next []scanItem
    for _, e := range entries {
        if strings.HasPrefix(e.Name(), ".") { continue }
        p := filepath.Join(it.path, e.Name())
        if !isDirEntry(e, p) { continue }
        next = append(next, scanItem{path: p, depth: it.depth + 1})
    }
    return next
}

// isDirEntry follows symlinks; the visited set cuts cycles.
func isDirEntry(e os.DirEntry, p string) bool {
    if e.IsDir() { return true }
    if e.Type()&os.ModeSymlink == 0 { return false }
    fi, err := os.Stat(p)
    return err == nil && fi.IsDir()
}

func (s *Service) progress(taskID, label string, scanned, total int) {
    if taskID == "" { return }
    if total < scanned { total = scanned }
    pct := float64(scanned) / float64(total+1) * 100
    if pct > 99 { pct = 99 }
    s.events.Publish(dom.Event{Kind: dom.EventScanProgress, TaskID: taskID, Label: label, Progress: pct, At: s.now()})
}

// estimateDirs counts directories up to maxDepth without classifying, bounded
// by estimateLimit. Symlinks are not followed.
func estimateDirs(root string, maxDepth int) int {
    n := 0
    queue := []scanItem{{path: root}}
    for len(queue) > 0 && n < estimateLimit {
        it := queue[0]
        queue = queue[1:]
        n++
        if it.depth >= maxDepth { continue }
        entries, err := os.ReadDir(it.path)
        if err != nil { continue }
        for _, e := range entries {
            if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
                queue = append(queue, scanItem{path: filepath.Join(it.path, e.Name()), depth: it.depth + 1})
            }
        }
    }
    return n
}
