package games

import (
    "context"
    "io"
    "os"
    "path/filepath"
    "sort"
    "strings"

    dom "github.com/cuihairu/arcade/internal/ports"
)

var (
    coverStems = []string{"cover", "icon"}
    coverExts  = []string{".png", ".jpg", ".jpeg", ".ico"}
    coverDirs  = []string{".", "icon", "icons", "www/icon", "www/icons"}
)

func isImage(name string) bool {
    ext := strings.ToLower(filepath.Ext(name))
    for _, e := range coverExts {
        if ext == e { return true }
    }
    return false
}

// findCover looks for a well-known cover name first, then any image, in the
// game directory and its icon folders. Names compare case-insensitively.
func findCover(gameDir string) string {
    listings := make([][]os.DirEntry, len(coverDirs))
    for i, d := range coverDirs {
        entries, err := os.ReadDir(filepath.Join(gameDir, filepath.FromSlash(d)))
        if err != nil { continue }
        sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })
        listings[i] = entries
    }
    for i, entries := range listings {
        for _, stem := range coverStems {
            for _, ext := range coverExts {
                for _, e := range entries {
                    if !e.IsDir() && strings.EqualFold(e.Name(), stem+ext) {
                        return filepath.Join(gameDir, filepath.FromSlash(coverDirs[i]), e.Name())
                    }
                }
            }
        }
    }
    for i, entries := range listings {
        for _, e := range entries {
            if !e.IsDir() && isImage(e.Name()) {
                return filepath.Join(gameDir, filepath.FromSlash(coverDirs[i]), e.Name())
            }
        }
    }
    return ""
}

// copyCover copies src to <profileDir>/cover.<ext> and returns the destination,
// or "" when src is not a readable image.
func copyCover(src, profileDir string) string {
    if !isImage(src) { return "" }
    in, err := os.Open(src)
    if err != nil { return "" }
    defer in.Close()
    if fi, err := in.Stat(); err != nil || fi.IsDir() { return "" }

    dst := filepath.Join(profileDir, "cover"+strings.ToLower(filepath.Ext(src)))
    tmp, err := os.CreateTemp(profileDir, ".cover-*")
    if err != nil { return "" }
    defer os.Remove(tmp.Name())
    if _, err := io.Copy(tmp, in); err != nil {
        tmp.Close()
        return ""
    }
    if err := tmp.Close(); err != nil { return "" }
    if err := os.Rename(tmp.Name(), dst); err != nil { return "" }
    return dst
}

// importCover is best effort: failures are logged and yield "".
func (s *Service) importCover(ctx context.Context, g *dom.Game, src string) string {
    if src == "" { src = findCover(g.Path) }
    if src == "" { return "" }
    d, err := s.layout.Ensure(ctx, g.ProfileKey)
    if err != nil {
        s.log.Warn("cover import skipped", "game_id", g.ID, "error", err)
        return ""
    }
    dst := copyCover(src, d.Root)
    if dst == "" { s.log.Warn("cover import failed", "game_id", g.ID, "source", src) }
    return dst
}
