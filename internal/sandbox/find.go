package sandbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var lookPath = exec.LookPath

// findRootExecutable picks the launcher in a game's root the way a user would:
// a file named after the directory wins, otherwise the first candidate.
func findRootExecutable(dir, goos string) string {
	switch goos {
	case "windows":
		return byExtension(dir, "exe", "bat", "cmd")
	case "darwin":
		if p := macBundleBinary(dir); p != "" {
			return p
		}
	}
	if p := byExtension(dir, "sh"); p != "" && isExecutable(p) {
		return p
	}
	if p := withExecBit(dir); p != "" {
		return p
	}
	if p := byExtension(dir, "py"); p != "" && isExecutable(p) {
		return p
	}
	return ""
}

func rootFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if isFile(p) {
			out = append(out, p)
		}
	}
	return out
}

func pick(dir string, match func(p string) bool) string {
	want := strings.ToLower(filepath.Base(dir))
	fallback := ""
	for _, p := range rootFiles(dir) {
		if !match(p) {
			continue
		}
		base := filepath.Base(p)
		if strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base))) == want {
			return p
		}
		if fallback == "" {
			fallback = p
		}
	}
	return fallback
}

func byExtension(dir string, exts ...string) string {
	return pick(dir, func(p string) bool {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	})
}

func withExecBit(dir string) string { return pick(dir, isExecutable) }

func macBundleBinary(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), ".app") {
			continue
		}
		if files := rootFiles(filepath.Join(dir, e.Name(), "Contents", "MacOS")); len(files) > 0 {
			return files[0]
		}
	}
	return ""
}
