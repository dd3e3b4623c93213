// tartan-migrate creates the ledger tables of the selected modules and refreshes
// ftable/ffield so key changes only cascade into installed tables.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/tartan-migrate -modules=ctl,gen,drs
//
// Local copy:
//   go run ./cmd/tartan-migrate -sqlite=./tartan.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"gorm.io/gorm"
)

func main() {
	modulesFlag := flag.String("modules", "", "Optional: comma separated modules ("+strings.Join(models.ModuleNames(), ",")+"); default TARTAN_MODULES or all")
	sqlitePath := flag.String("sqlite", "", "Optional: migrate a SQLite file instead of DB_* settings")
	flag.Parse()

	var db *gorm.DB
	if p := strings.TrimSpace(*sqlitePath); p != "" {
		conn, err := config.ConnectSQLite(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open sqlite: %v\n", err)
			os.Exit(1)
		}
		db = conn
	} else {
		config.ConnectDatabaseWithRetry()
		db = config.GetDB()
	}
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	modules := config.InstalledModules()
	if strings.TrimSpace(*modulesFlag) != "" {
		modules = nil
		for _, m := range strings.Split(*modulesFlag, ",") {
			if m = strings.TrimSpace(m); m != "" {
				modules = append(modules, m)
			}
		}
	}

	if err := models.MigrateModules(context.Background(), db, modules); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	installed, err := models.InstalledSchema(context.Background(), db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read ftable: %v\n", err)
		os.Exit(1)
	}
	config.GetLogger().WithFields(logrus.Fields{
		"field":   "tartan-migrate",
		"modules": modules,
		"tables":  len(installed),
	}).Info("migration complete")
	fmt.Printf("installed tables: %d\n", len(installed))
}
