package models

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/tartansystems/tartan_backend/config"
	"gorm.io/gorm"
)

// Tables installed per ledger module. ctl is always installed.
var moduleTables = map[string][]interface{}{
	"ctl": {&Ftable{}, &Ffield{}, &ChangeLog{}, &Ctlctl{}, &Ctlvtf{}, &Ctlbat{}, &Ctlpwu{}, &Ctlrvk{}, &ReconciliationReport{}},
	"gen": {&Genmst{}, &Genbal{}, &Genbud{}, &Gentrn{}},
	"drs": {&Drsmst{}, &Drstrn{}, &Drsage{}},
	"crs": {&Crsmst{}, &Crstrn{}, &Crsage{}},
}

var moduleOrder = []string{"ctl", "gen", "drs", "crs"}

func ModuleNames() []string {
	return append([]string(nil), moduleOrder...)
}

func MigrateTable() {
	db := config.GetDB()
	if err := MigrateModules(context.Background(), db, config.InstalledModules()); err != nil {
		log.Fatal(err)
	}
}

// MigrateModules creates the tables of the named modules and records them in ftable/ffield.
// An empty list installs every module.
func MigrateModules(ctx context.Context, db *gorm.DB, modules []string) error {
	selected, err := resolveModules(modules)
	if err != nil {
		return err
	}
	for _, module := range selected {
		tables := moduleTables[module]
		if err := db.WithContext(ctx).AutoMigrate(tables...); err != nil {
			return fmt.Errorf("migrate module %s: %w", module, err)
		}
		if err := SyncSchemaMetadata(ctx, db, tables...); err != nil {
			return fmt.Errorf("sync metadata for module %s: %w", module, err)
		}
	}
	return nil
}

func resolveModules(modules []string) ([]string, error) {
	if len(modules) == 0 {
		return ModuleNames(), nil
	}
	wanted := map[string]bool{"ctl": true}
	for _, m := range modules {
		m = strings.ToLower(strings.TrimSpace(m))
		if _, ok := moduleTables[m]; !ok {
			known := ModuleNames()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown module %q (known: %s)", m, strings.Join(known, ","))
		}
		wanted[m] = true
	}
	var out []string
	for _, m := range moduleOrder {
		if wanted[m] {
			out = append(out, m)
		}
	}
	return out, nil
}
