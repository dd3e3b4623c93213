// tartan-reconcile compares the debtors or creditors control account in the general
// ledger with the subsidiary ledger total. Differences are written to reconciliation_reports.
//
// Usage (from backend directory):
//   go run ./cmd/tartan-reconcile -company=1 -ledger=dr -period=202406
//
// Exit code 3 means the ledger is out of balance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/utils"
	"github.com/tartansystems/tartan_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	company := flag.Int("company", 0, "Required: company number")
	ledger := flag.String("ledger", "", "Required: dr or cr")
	period := flag.Int("period", 0, "Required: period YYYYMM (inclusive)")
	sqlitePath := flag.String("sqlite", "", "Optional: run against a SQLite file instead of DB_* settings")
	flag.Parse()

	if *company <= 0 || strings.TrimSpace(*ledger) == "" || *period <= 0 {
		fmt.Fprintln(os.Stderr, "--company, --ledger and --period are required")
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
	ctx = utils.SetCompanyIdInContext(ctx, *company)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())

	result, err := workflow.ReconcileControlAccount(ctx, db, *company, *ledger, *period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ledger %s period %d control account %d\n", result.Ledger, result.Period, result.ControlAccount)
	fmt.Printf("  general ledger: %s\n", result.GLBalance.StringFixed(2))
	fmt.Printf("  subsidiary:     %s\n", result.LedgerBalance.StringFixed(2))
	fmt.Printf("  difference:     %s\n", result.Difference.StringFixed(2))
	if !result.Balanced {
		fmt.Printf("out of balance (correlation id %s)\n", result.CorrelationId)
		os.Exit(3)
	}
	fmt.Println("balanced")
}
