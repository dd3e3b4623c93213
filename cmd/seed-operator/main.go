// seed-operator creates the first administrator in ctlpwu so /login works on a new install.
// Operators at level 9 may work on every company.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-operator -password=secret
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultOperator = "admin"
	defaultName     = "Tartan Administrator"
)

func main() {
	name := flag.String("name", defaultOperator, "Operator id")
	fullName := flag.String("full-name", defaultName, "Operator name")
	password := flag.String("password", os.Getenv("SEED_OPERATOR_PASSWORD"), "Required: password (or SEED_OPERATOR_PASSWORD)")
	company := flag.Int("company", 0, "Company the operator is limited to (0 for every company)")
	level := flag.Int("level", models.AdminLevel, "Operator level (9 = administrator)")
	sqlitePath := flag.String("sqlite", "", "Optional: seed a SQLite file instead of DB_* settings")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--password is required")
		os.Exit(1)
	}

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

	ctx := context.Background()
	if err := models.MigrateModules(ctx, db, []string{"ctl"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate control tables: %v\n", err)
		os.Exit(1)
	}

	operatorId := strings.ToLower(strings.TrimSpace(*name))
	var existing models.Ctlpwu
	err := db.WithContext(ctx).Where("usr_name = ?", operatorId).Take(&existing).Error
	if err == nil {
		fmt.Printf("operator %q already exists; nothing to do\n", operatorId)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		fmt.Fprintf(os.Stderr, "failed to lookup operator: %v\n", err)
		os.Exit(1)
	}

	operator, err := models.CreateOperator(ctx, db, models.NewOperator{
		Name:     operatorId,
		FullName: *fullName,
		Password: *password,
		Company:  *company,
		Level:    *level,
	})
	if err != nil {
		var invalid *utils.InvalidInputError
		if errors.As(err, &invalid) {
			fmt.Fprintln(os.Stderr, invalid.Error())
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to create operator: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created operator %q (level %d, company %d)\n", operator.UsrName, operator.UsrLvl, operator.UsrCoy)
}
