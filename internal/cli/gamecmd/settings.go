package gamecmd

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuihairu/arcade/internal/ports"
)

// decodeLaunchConfig reads a launch.yaml document over base, so keys the
// document omits keep base's values.
func decodeLaunchConfig(b []byte, base *ports.LaunchConfig) (*ports.LaunchConfig, error) {
	cfg := *base
	if base.Env != nil {
		cfg.Env = make(map[string]string, len(base.Env))
		for k, v := range base.Env {
			cfg.Env[k] = v
		}
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse launch settings: %w", err)
	}
	if cfg.Args == nil {
		cfg.Args = []string{}
	}
	return &cfg, nil
}

// applySetting edits one field addressed by its launch.yaml key.
func applySetting(cfg *ports.LaunchConfig, key, val string) error {
	if name, ok := strings.CutPrefix(key, "env."); ok {
		if name == "" {
			return fmt.Errorf("empty env name")
		}
		if cfg.Env == nil {
			cfg.Env = map[string]string{}
		}
		if val == "" {
			delete(cfg.Env, name)
		} else {
			cfg.Env[name] = val
		}
		return nil
	}
	switch key {
	case "engine_type":
		cfg.EngineType = ports.ParseEngineType(val)
	case "entry_path":
		cfg.EntryPath = val
	case "runtime_version":
		cfg.RuntimeVersion = val
	case "args":
		cfg.Args = strings.Fields(val)
	case "sandbox_home", "use_compat_layer":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "sandbox_home" {
			cfg.SandboxHome = b
		} else {
			cfg.UseCompatLayer = b
		}
	case "compat_profile_name":
		cfg.CompatProfileName = val
	case "cover_file":
		cfg.CoverFile = val
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
