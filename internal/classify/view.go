package classify

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// view resolves slash paths case-insensitively against an fs.FS and caches
// directory listings for the duration of one classification.
type view struct {
	fsys  fs.FS
	cache map[string]map[string]fs.DirEntry
}

func newView(fsys fs.FS) *view {
	return &view{fsys: fsys, cache: map[string]map[string]fs.DirEntry{}}
}

func (v *view) list(dir string) map[string]fs.DirEntry {
	if m, ok := v.cache[dir]; ok {
		return m
	}
	m := map[string]fs.DirEntry{}
	if entries, err := fs.ReadDir(v.fsys, dir); err == nil {
		for _, e := range entries {
			k := strings.ToLower(e.Name())
			if _, ok := m[k]; ok {
				continue
			}
			m[k] = e
		}
	}
	v.cache[dir] = m
	return m
}

// resolve maps p onto the real on-disk names.
func (v *view) resolve(p string) (string, bool) {
	dir := "."
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		e, ok := v.list(dir)[strings.ToLower(seg)]
		if !ok {
			return "", false
		}
		dir = path.Join(dir, e.Name())
	}
	return dir, true
}

func (v *view) stat(p string) (fs.FileInfo, bool) {
	real, ok := v.resolve(p)
	if !ok {
		return nil, false
	}
	fi, err := fs.Stat(v.fsys, real)
	if err != nil {
		return nil, false
	}
	return fi, true
}

func (v *view) hasFile(p string) bool {
	fi, ok := v.stat(p)
	return ok && !fi.IsDir()
}

func (v *view) hasDir(p string) bool {
	fi, ok := v.stat(p)
	return ok && fi.IsDir()
}

func (v *view) anyFile(paths ...string) bool {
	for _, p := range paths {
		if v.hasFile(p) {
			return true
		}
	}
	return false
}

// names lists the lower-cased entry names of dir in sorted order.
func (v *view) names(dir string) []string {
	real, ok := v.resolve(dir)
	if !ok {
		return nil
	}
	m := v.list(real)
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
