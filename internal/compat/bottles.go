// Package compat wraps Windows executables through the Bottles
// compatibility layer on Linux hosts.
package compat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
)

// DefaultFlatpakApp is the Flathub id of Bottles.
const DefaultFlatpakApp = "com.usebottles.bottles"

const cliName = "bottles-cli"

// Runner executes short-lived helper commands. Tests substitute a fake.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

// ExecRunner runs commands through os/exec.
func ExecRunner() Runner { return execRunner{} }

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }

// CLI is a resolved bottles-cli invocation: either the native binary or
// `flatpak run --command=bottles-cli <app>`.
type CLI struct {
	Program string   `json:"program"`
	Prefix  []string `json:"prefix,omitempty"`
	Flatpak bool     `json:"flatpak"`
}

func (c *CLI) argv(args ...string) []string {
	out := make([]string, 0, len(c.Prefix)+len(args))
	out = append(out, c.Prefix...)
	return append(out, args...)
}

// Bottles detects and drives the Bottles CLI.
type Bottles struct {
	runner     Runner
	flatpakApp string
	goos       string
}

func NewBottles(runner Runner, flatpakApp string) *Bottles {
	if runner == nil {
		runner = ExecRunner()
	}
	if strings.TrimSpace(flatpakApp) == "" {
		flatpakApp = DefaultFlatpakApp
	}
	return &Bottles{runner: runner, flatpakApp: flatpakApp, goos: runtime.GOOS}
}

// Supported reports whether the host can run Bottles at all.
func (b *Bottles) Supported() bool { return b.goos == "linux" }

// Detect prefers the flatpak install over a native bottles-cli on PATH.
func (b *Bottles) Detect(ctx context.Context) (*CLI, error) {
	if !b.Supported() {
		return nil, apperrors.Newf(apperrors.CodeCompatLayerUnavailable, "bottles is not supported on %s", b.goos)
	}
	if _, err := b.runner.Output(ctx, "flatpak", "info", b.flatpakApp); err == nil {
		return &CLI{Program: "flatpak", Prefix: []string{"run", "--command=" + cliName, b.flatpakApp}, Flatpak: true}, nil
	}
	if p, err := b.runner.LookPath(cliName); err == nil {
		return &CLI{Program: p}, nil
	}
	return nil, apperrors.New(apperrors.CodeCompatLayerUnavailable, "bottles is not installed")
}

// ListProfiles returns the bottle names, trying JSON output first.
func (b *Bottles) ListProfiles(ctx context.Context, cli *CLI) ([]string, error) {
	if out, err := b.runner.Output(ctx, cli.Program, cli.argv("--json", "list", "bottles")...); err == nil {
		if names := parseJSONList(out); len(names) > 0 {
			return names, nil
		}
	}
	out, err := b.runner.Output(ctx, cli.Program, cli.argv("list", "bottles")...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCompatLayerUnavailable, "list bottles", err)
	}
	return parseTextList(out), nil
}

// Command returns program and argv running exe inside the bottle profile.
// Absolute executables use -e, anything else is treated as a program name
// registered in the bottle.
func (c *CLI) Command(profile, exe string, args []string) (string, []string) {
	flag := "-p"
	if filepath.IsAbs(exe) {
		flag = "-e"
	}
	argv := c.argv("run", "-b", profile, flag, exe)
	if len(args) > 0 {
		argv = append(argv, "--")
		argv = append(argv, args...)
	}
	return c.Program, argv
}

// ParseBottleList accepts `bottles-cli list bottles` output in any of the
// shapes the CLI has produced: a JSON array, an object with a "bottles" array
// (entries as strings or objects with a name field) or plain text.
func ParseBottleList(raw []byte) []string {
	if names := parseJSONList(raw); len(names) > 0 {
		return names
	}
	return parseTextList(raw)
}

func parseJSONList(raw []byte) []string {
	var v any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &v); err != nil {
		return nil
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		switch list := t["bottles"].(type) {
		case []any:
			items = list
		case map[string]any:
			for name := range list {
				items = append(items, name)
			}
		}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if name := bottleName(it); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func bottleName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range []string{"name", "Name", "bottle", "Bottle", "id", "Id"} {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func parseTextList(raw []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		if name := strings.TrimSpace(strings.TrimLeft(line, "-*")); name != "" {
			out = append(out, name)
		}
	}
	return out
}
