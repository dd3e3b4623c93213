// tartan-keychange renumbers or merges a GL, debtor or creditor account and cascades the
// new key into every installed dependent table.
//
// Usage (from backend directory):
//
// Preview (default): count affected rows only
//   go run ./cmd/tartan-keychange -company=1 -entity=gl -mode=merge -old=2000 -new=1000 -operator=admin
//
// Execute (asks before committing):
//   go run ./cmd/tartan-keychange -company=1 -entity=dr -mode=renumber -old=3,ACME01 -new=3,ACME02 -operator=admin -dry-run=false
//
// Execute without asking and export the audit rows:
//   go run ./cmd/tartan-keychange ... -dry-run=false -yes -report=chglog.xlsx
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/models/reports"
	"github.com/tartansystems/tartan_backend/utils"
	"github.com/tartansystems/tartan_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	company  int
	entity   string
	mode     models.KeyChangeMode
	oldKey   string
	newKey   string
	operator string
	dryRun   bool
	yes      bool
	skipLog  bool
	report   string
	sqlite   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("tartan-keychange", flag.ContinueOnError)
	fs.SetOutput(stderr)
	company := fs.Int("company", 0, "Required: company number")
	entity := fs.String("entity", "", "Required: gl, dr or cr")
	mode := fs.String("mode", "renumber", "renumber or merge")
	oldKey := fs.String("old", "", "Required: existing key (compound keys comma separated, e.g. 3,ACME01)")
	newKey := fs.String("new", "", "Required: new key")
	operator := fs.String("operator", "", "Required: operator id recorded in the change log")
	dryRun := fs.Bool("dry-run", true, "Preview only (no writes)")
	yes := fs.Bool("yes", false, "Commit without asking")
	skipLog := fs.Bool("skip-log", false, "Do not write change log rows (bulk/import use)")
	report := fs.String("report", "", "Optional: write today's change log for the master table to this .xlsx file")
	sqlitePath := fs.String("sqlite", "", "Optional: run against a SQLite file instead of DB_* settings")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{
		company:  *company,
		entity:   strings.ToUpper(strings.TrimSpace(*entity)),
		mode:     models.KeyChangeMode(strings.ToLower(strings.TrimSpace(*mode))),
		oldKey:   strings.TrimSpace(*oldKey),
		newKey:   strings.TrimSpace(*newKey),
		operator: strings.TrimSpace(*operator),
		dryRun:   *dryRun,
		yes:      *yes,
		skipLog:  *skipLog,
		report:   strings.TrimSpace(*report),
		sqlite:   strings.TrimSpace(*sqlitePath),
	}
	if opts.company <= 0 {
		return nil, errors.New("--company is required")
	}
	if _, ok := models.LookupEntity(opts.entity); !ok {
		return nil, errors.New("--entity must be gl, dr or cr")
	}
	if opts.mode != models.ModeRenumber && opts.mode != models.ModeMerge {
		return nil, errors.New("--mode must be renumber or merge")
	}
	if opts.oldKey == "" || opts.newKey == "" {
		return nil, errors.New("--old and --new are required")
	}
	if opts.operator == "" {
		return nil, errors.New("--operator is required")
	}
	return opts, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	db, err := connect(opts.sqlite)
	if err != nil {
		fmt.Fprintf(stderr, "database not initialized: %v\n", err)
		return 1
	}

	ctx := context.Background()
	ctx = utils.SetCompanyIdInContext(ctx, opts.company)
	ctx = utils.SetOperatorIdInContext(ctx, opts.operator)

	req := workflow.KeyChangeRequest{
		Entity:        opts.entity,
		OldKey:        opts.oldKey,
		NewKey:        opts.newKey,
		SkipChangeLog: opts.skipLog,
	}

	if opts.dryRun {
		result, err := workflow.PreviewKeyChange(ctx, db, req, opts.mode)
		if err != nil {
			fmt.Fprintf(stderr, "preview failed: %v\n", err)
			return 1
		}
		printResult(stdout, result, true)
		return 0
	}

	s, err := workflow.BeginSession(ctx, db)
	if err != nil {
		fmt.Fprintf(stderr, "could not start session: %v\n", err)
		return 1
	}
	var result *workflow.CascadeResult
	if opts.mode == models.ModeMerge {
		result, err = workflow.MergeEntity(ctx, s, req)
	} else {
		result, err = workflow.RenumberEntity(ctx, s, req)
	}
	if err != nil {
		if !s.Closed() {
			_ = s.Rollback()
		}
		fmt.Fprintf(stderr, "%s failed: %v\n", opts.mode, err)
		return 1
	}
	printResult(stdout, result, false)

	var confirmer workflow.Confirmer = newPromptConfirmer(stdin, stdout)
	if opts.yes {
		confirmer = workflow.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	}
	kept, err := s.CommitWithConfirm(ctx, confirmer)
	if err != nil {
		fmt.Fprintf(stderr, "commit failed: %v\n", err)
		return 1
	}
	if !kept {
		fmt.Fprintln(stdout, "changes discarded")
		return 0
	}
	fmt.Fprintln(stdout, "changes committed")

	if opts.report != "" {
		if err := writeReport(ctx, db, opts, result); err != nil {
			fmt.Fprintf(stderr, "report failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "change log written to %s\n", opts.report)
	}
	return 0
}

func connect(sqlitePath string) (*gorm.DB, error) {
	if sqlitePath != "" {
		return config.ConnectSQLite(sqlitePath)
	}
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("config.GetDB returned nil; set DB_* env vars")
	}
	return db, nil
}

func printResult(w io.Writer, result *workflow.CascadeResult, preview bool) {
	verb := "changed"
	if preview {
		verb = "would change"
	}
	if result.NoOp {
		fmt.Fprintf(w, "%s %s -> %s: same key, nothing to do\n", result.Entity, result.OldKey, result.NewKey)
		return
	}
	fmt.Fprintf(w, "%s %s %s -> %s (target existed: %t)\n", result.Mode, result.Entity, result.OldKey, result.NewKey, result.TargetExisted)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TABLE\tROWS %s\tMERGED\n", strings.ToUpper(verb))
	for _, t := range result.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Table, t.Rows, t.Merged)
	}
	_ = tw.Flush()
	if !preview {
		fmt.Fprintf(w, "change log rows: %d\n", result.ChangeLogRows)
	}
}

func writeReport(ctx context.Context, db *gorm.DB, opts *options, result *workflow.CascadeResult) error {
	entity, _ := models.LookupEntity(result.Entity)
	start := startOfDay(time.Now())
	records, err := reports.GetChangeLogReport(ctx, db, models.ChangeLogFilter{
		Company: opts.company,
		Table:   entity.MasterTable,
		From:    &start,
	})
	if err != nil {
		return err
	}
	f, err := os.Create(opts.report)
	if err != nil {
		return err
	}
	defer f.Close()
	return reports.WriteChangeLogXlsx(f, records)
}

// startOfDay is local midnight; chg_dte is written in local time.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// promptConfirmer asks on the terminal; anything but y/yes declines.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *promptConfirmer) Confirm(ctx context.Context, summary string) (bool, error) {
	fmt.Fprintln(p.out, "pending changes:")
	fmt.Fprintln(p.out, summary)
	fmt.Fprint(p.out, "commit these changes? [y/N]: ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
