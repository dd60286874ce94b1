package common

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cuihairu/arcade/internal/app"
)

// EnvPrefix namespaces environment overrides: ARCADE_DB_DSN, ARCADE_HTTP_ADDR, ...
const EnvPrefix = "ARCADE"

// NewViper returns a viper instance reading ARCADE_* variables, seeded with
// every key of app.DefaultConfig so env overrides reach Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, app.DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, d app.Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("db.dsn", d.DB.DSN)
	v.SetDefault("container_root", d.ContainerRoot)
	v.SetDefault("runtime.dir", d.Runtime.Dir)
	v.SetDefault("runtime.versions_url", d.Runtime.VersionsURL)
	v.SetDefault("runtime.download_base", d.Runtime.DownloadBase)
	v.SetDefault("runtime.verify_checksums", d.Runtime.VerifyChecksums)
	v.SetDefault("runtime.mirror_fill", d.Runtime.MirrorFill)
	for _, k := range []string{"driver", "bucket", "region", "endpoint", "access_key", "secret_key", "base_dir", "prefix"} {
		v.SetDefault("runtime.mirror."+k, "")
	}
	v.SetDefault("runtime.mirror.force_path_style", false)
	v.SetDefault("scan.max_depth", d.Scan.MaxDepth)
	v.SetDefault("compat.flatpak_app", d.Compat.FlatpakApp)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.allow_origins", []string{})
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.roots", []string{})
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.depth", d.Watch.Depth)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.service_version", d.Telemetry.ServiceVersion)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sampling_ratio", d.Telemetry.SamplingRatio)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)
	v.SetDefault("log.compress", false)
}

// BindFlags maps the persistent CLI flags onto config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, flag := range map[string]string{
		"data_dir":       "data-dir",
		"db.dsn":         "db-dsn",
		"container_root": "container-root",
		"log.level":      "log-level",
		"log.format":     "log-format",
		"log.file":       "log-file",
	} {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadConfigFile merges file, its `include:` list in order, and an optional
// top-level `arcade:` section into v.
func ReadConfigFile(v *viper.Viper, file string) error {
	if strings.TrimSpace(file) == "" {
		return nil
	}
	fv, err := LoadWithIncludes(file)
	if err != nil {
		return err
	}
	settings := fv.AllSettings()
	if sub, ok := settings["arcade"].(map[string]any); ok {
		delete(settings, "arcade")
		settings = mergeMaps(settings, sub)
	}
	delete(settings, "include")
	return v.MergeConfigMap(settings)
}

// LoadWithIncludes reads base config and merges the files named by its
// `include` key in order.
func LoadWithIncludes(base string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(base)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	for _, inc := range v.GetStringSlice("include") {
		iv := viper.New()
		iv.SetConfigFile(inc)
		if err := iv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
		if err := v.MergeConfigMap(iv.AllSettings()); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
	}
	return v, nil
}

// mergeMaps recursively merges b into a.
func mergeMaps(a, b map[string]any) map[string]any {
	for k, vb := range b {
		if ma, ok := a[k].(map[string]any); ok {
			if mb, ok2 := vb.(map[string]any); ok2 {
				a[k] = mergeMaps(ma, mb)
				continue
			}
		}
		a[k] = vb
	}
	return a
}

// AppConfig decodes v into a normalized app.Config.
func AppConfig(v *viper.Viper) (app.Config, error) {
	cfg := app.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return app.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}
