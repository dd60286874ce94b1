// Package runtimes acquires NW.js runtime bundles: it resolves the stable
// version, downloads and verifies the archive for the host, unpacks it under
// the runtimes root and registers it as an engine.
package runtimes

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

// Flavor selects the NW.js bundle.
type Flavor string

const (
	FlavorNormal Flavor = "normal"
	FlavorSDK    Flavor = "sdk"
)

// ParseFlavor accepts "", normal and sdk (any case). Empty means normal.
func ParseFlavor(s string) (Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return FlavorNormal, nil
	case "sdk":
		return FlavorSDK, nil
	}
	return "", apperrors.Newf(apperrors.CodeInvalidConfig, "unknown runtime flavor %q", s)
}

// EngineType maps the flavor onto the engine kind it registers as.
func (f Flavor) EngineType() ports.EngineType {
	if f == FlavorSDK {
		return ports.EngineNWJSSDK
	}
	return ports.EngineNWJS
}

// FlavorOf is the inverse of Flavor.EngineType.
func FlavorOf(t ports.EngineType) (Flavor, bool) {
	switch t {
	case ports.EngineNWJS:
		return FlavorNormal, true
	case ports.EngineNWJSSDK:
		return FlavorSDK, true
	}
	return "", false
}

func (f Flavor) prefix() string {
	if f == FlavorSDK {
		return "nwjs-sdk"
	}
	return "nwjs"
}

var targets = map[string]string{
	"windows/amd64": "win-x64",
	"windows/386":   "win-ia32",
	"windows/arm64": "win-arm64",
	"linux/amd64":   "linux-x64",
	"linux/386":     "linux-ia32",
	"darwin/amd64":  "osx-x64",
	"darwin/arm64":  "osx-arm64",
}

// Target returns the download target name for goos/goarch.
func Target(goos, goarch string) (string, error) {
	if t, ok := targets[goos+"/"+goarch]; ok {
		return t, nil
	}
	return "", apperrors.Newf(apperrors.CodeDownloadFailed, "no NW.js build for %s/%s", goos, goarch)
}

// HostTarget is Target for the running process.
func HostTarget() (string, error) { return Target(runtime.GOOS, runtime.GOARCH) }

// ArchiveExt is tar.gz on Linux and zip elsewhere.
func ArchiveExt(target string) string {
	if strings.HasPrefix(target, "linux-") {
		return "tar.gz"
	}
	return "zip"
}

// ArchiveName is the upstream file name, e.g. nwjs-sdk-v0.80.0-linux-x64.tar.gz.
func ArchiveName(version string, f Flavor, target string) string {
	return fmt.Sprintf("%s-v%s-%s.%s", f.prefix(), version, target, ArchiveExt(target))
}

// ArchiveKey is the path of name relative to the download base.
func ArchiveKey(version, name string) string { return "v" + version + "/" + name }

// ChecksumsName is the per-version checksum manifest.
const ChecksumsName = "SHASUMS256.txt"

// NormalizeVersion trims whitespace and a leading v.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimLeft(v, "vV")
}

// CompareVersions compares dotted numeric versions; a missing component
// counts as zero and a pre-release suffix sorts before the release.
func CompareVersions(a, b string) int {
	pa, sa := splitVersion(NormalizeVersion(a))
	pb, sb := splitVersion(NormalizeVersion(b))
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case sa == sb:
		return 0
	case sa == "":
		return 1
	case sb == "":
		return -1
	case sa < sb:
		return -1
	default:
		return 1
	}
}

func splitVersion(v string) ([]int, string) {
	suffix := ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v, suffix = v[:i], v[i+1:]
	}
	var out []int
	for _, p := range strings.Split(v, ".") {
		n, _ := strconv.Atoi(p)
		out = append(out, n)
	}
	return out, suffix
}
