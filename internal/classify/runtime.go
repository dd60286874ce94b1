package classify

import (
	"io/fs"
	"strings"
)

// IsRuntimeDir reports whether fsys (a directory named name) looks like an
// unpacked NW.js runtime rather than a game. Scans skip such directories.
func IsRuntimeDir(fsys fs.FS, name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "nwjs-") {
		return true
	}
	v := newView(fsys)
	if !v.anyFile("nw", "nw.exe", "nwjs", "nwjs.exe") {
		return false
	}
	if !v.anyFile("nw.pak", "nw_100_percent.pak") {
		return false
	}
	return v.hasFile("icudtl.dat") && v.hasDir("locales")
}
