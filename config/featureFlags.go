package config

import (
	"os"
	"strings"
)

// RegistryCacheEnabled caches the schema-filtered reference registry in Redis.
//
// Set via env:
// - REGISTRY_CACHE=false to always consult ftable/ffield
func RegistryCacheEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REGISTRY_CACHE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// InstalledModules lists the ledger modules migrated on startup.
//
// Set via env:
// - TARTAN_MODULES="ctl,gen,drs,crs"
//
// Empty means every module.
func InstalledModules() []string {
	raw := os.Getenv("TARTAN_MODULES")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
