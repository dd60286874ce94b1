// Package classify maps a directory's contents to an engine type.
//
// Every engine has a set of weighted signals and a minimum score. The highest
// scoring engine that reaches its minimum wins; ties go to the more specific
// engine (Ren'Py, MZ, MV, VX Ace, VX), so the outcome never depends on the
// order in which the filesystem lists entries.
package classify

import (
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-enry/go-enry/v2"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

// Candidate is the score one engine reached.
type Candidate struct {
	Engine   ports.EngineType `json:"engine"`
	Score    int              `json:"score"`
	Min      int              `json:"min"`
	Priority int              `json:"-"`
}

// Matched reports whether the candidate reached its minimum.
func (c Candidate) Matched() bool { return c.Score >= c.Min }

// Result is the outcome of one classification.
type Result struct {
	Engine     ports.EngineType `json:"engine"`
	Score      int              `json:"score"`
	Ambiguous  bool             `json:"ambiguous"`
	Candidates []Candidate      `json:"candidates"`
}

// Recognized reports whether a concrete engine was detected.
func (r Result) Recognized() bool { return r.Engine != ports.EngineOther }

// Err returns CLASSIFICATION_AMBIGUOUS when signals fired but none decided.
// Callers treat it as "other", never as a failure.
func (r Result) Err() error {
	if !r.Ambiguous {
		return nil
	}
	e := apperrors.New(apperrors.CodeClassificationAmbiguous, "engine signals inconclusive")
	for _, c := range r.Candidates {
		if c.Score > 0 {
			e = e.With(string(c.Engine), strconv.Itoa(c.Score))
		}
	}
	return e
}

type rule struct {
	engine   ports.EngineType
	min      int
	priority int
	score    func(v *view) int
}

var rules = []rule{
	{engine: ports.EngineRenPy, min: 4, priority: 0, score: scoreRenPy},
	{engine: ports.EngineRPGMakerMZ, min: 4, priority: 1, score: scoreNW("rmmz_core.js", "rmmz_managers.js")},
	{engine: ports.EngineRPGMakerMV, min: 4, priority: 2, score: scoreNW("rpg_core.js", "rpg_managers.js")},
	{engine: ports.EngineRPGMakerVXAce, min: 5, priority: 3, score: scoreRGSS("rgss3")},
	{engine: ports.EngineRPGMakerVX, min: 5, priority: 4, score: scoreRGSS("rgss2", "rgss1")},
}

// FS classifies the root of fsys.
func FS(fsys fs.FS) Result {
	v := newView(fsys)
	res := Result{Engine: ports.EngineOther}
	anySignal := false
	for _, r := range rules {
		c := Candidate{Engine: r.engine, Score: r.score(v), Min: r.min, Priority: r.priority}
		if c.Score > 0 {
			anySignal = true
		}
		res.Candidates = append(res.Candidates, c)
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Matched() != b.Matched() {
			return a.Matched()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Priority < b.Priority
	})
	if best := res.Candidates[0]; best.Matched() {
		res.Engine, res.Score = best.Engine, best.Score
		return res
	}
	res.Ambiguous = anySignal
	return res
}

// Dir classifies the directory at path. It fails only when the directory
// itself cannot be read.
func Dir(path string) (Result, error) {
	if _, err := os.ReadDir(path); err != nil {
		return Result{Engine: ports.EngineOther}, err
	}
	return FS(os.DirFS(path)), nil
}

func scoreNW(coreFiles ...string) func(v *view) int {
	return func(v *view) int {
		score := 0
		hasCore, hasData, hasPkg := false, false, false
		for _, base := range []string{"", "www/"} {
			for _, f := range coreFiles {
				if v.hasFile(base + "js/" + f) {
					hasCore = true
				}
			}
			if v.hasFile(base + "data/System.json") {
				hasData = true
			}
			if v.hasFile(base + "package.json") {
				hasPkg = true
			}
		}
		if hasCore {
			score += 3
		}
		if hasData {
			score += 2
		}
		if hasPkg {
			score++
		}
		return score
	}
}

var gameExecutables = []string{"Game.exe", "Game", "RPG_RT.exe", "RPG_RT"}

func scoreRGSS(prefixes ...string) func(v *view) int {
	return func(v *view) int {
		score := 0
		if v.anyFile(gameExecutables...) {
			score += 2
		}
		if hasRGSS(v, prefixes) {
			score += 3
		}
		if v.hasFile("Game.ini") {
			score++
		}
		return score
	}
}

func hasRGSS(v *view, prefixes []string) bool {
	for _, dir := range []string{".", "System"} {
		for _, n := range v.names(dir) {
			if !strings.HasSuffix(n, ".dll") {
				continue
			}
			for _, p := range prefixes {
				if strings.HasPrefix(n, p) {
					return true
				}
			}
		}
	}
	return false
}

var renpyWellKnown = []string{"script.rpy", "options.rpy", "gui.rpy", "screens.rpy", "script.rpyc", "options.rpyc", "gui.rpyc", "screens.rpyc"}

func scoreRenPy(v *view) int {
	score := 0
	if v.hasDir("renpy") || v.anyFile("renpy.sh", "renpy.exe") {
		score += 3
	}
	if v.hasDir("game") {
		score++
		names := v.names("game")
		for _, n := range names {
			if isRenPyScript(n) {
				score += 3
				break
			}
		}
		for _, n := range names {
			if contains(renpyWellKnown, n) {
				score++
				break
			}
		}
	}
	for _, n := range v.names("lib") {
		if strings.HasPrefix(n, "py") || strings.Contains(n, "python") {
			score++
			break
		}
	}
	return score
}

func isRenPyScript(name string) bool {
	if strings.HasSuffix(name, ".rpyc") {
		return true
	}
	for _, lang := range enry.GetLanguagesByExtension(name, nil, nil) {
		if lang == "Ren'Py" {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
