package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIBase      = "POSTFETCH_API_BASE"
	EnvSiteURL      = "POSTFETCH_SITE_URL"
	EnvExtraOrigins = "POSTFETCH_EXTRA_ORIGINS"
	EnvProxy        = "POSTFETCH_PROXY"
	EnvCacheDir     = "POSTFETCH_CACHE_DIR"
)

// LoadDotEnv loads variables from the given .env files (or ".env" in the
// current directory when none are given) into the process environment.
// Variables that are already set are not overwritten, and a missing file
// is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overlays POSTFETCH_* environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(name string) string {
		v, ok := lookup(name)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	setString(&cfg.APIBase, get(EnvAPIBase))
	setString(&cfg.SiteURL, get(EnvSiteURL))
	setString(&cfg.ProxyAddress, get(EnvProxy))
	setString(&cfg.CacheDir, get(EnvCacheDir))

	if v := get(EnvExtraOrigins); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.ExtraOrigins = origins
	}
}
