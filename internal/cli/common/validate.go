package common

import (
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/cuihairu/arcade/internal/app"
)

func ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

// ValidateConfig checks cfg beyond app.Config.Validate. strict also requires
// watch roots to exist.
func ValidateConfig(cfg app.Config, strict bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ValidateAddr(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("http.addr: %w", err)
	}
	if err := validateURL(cfg.Runtime.VersionsURL); err != nil {
		return fmt.Errorf("runtime.versions_url: %w", err)
	}
	if !cfg.Runtime.Mirror.Enabled() || cfg.Runtime.MirrorFill {
		if err := validateURL(cfg.Runtime.DownloadBase); err != nil {
			return fmt.Errorf("runtime.download_base: %w", err)
		}
	}
	if strict {
		for _, r := range cfg.Watch.Roots {
			if st, err := os.Stat(r); err != nil || !st.IsDir() {
				return fmt.Errorf("watch.roots: %s is not a directory", r)
			}
		}
	}
	return nil
}
