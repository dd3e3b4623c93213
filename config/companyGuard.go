package config

import (
	"context"
	"strings"

	"github.com/tartansystems/tartan_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyGuardPlugin scopes model-based queries/updates/deletes to the request's company when
// the model has a Tartan company column (any column named *_cono).
//
// NOTE:
// - This does NOT apply to Raw SQL or to Table()-only statements without a model.
// - Admin/maintenance bypass is explicit via context flags.
type CompanyGuardPlugin struct{}

func NewCompanyGuardPlugin() *CompanyGuardPlugin { return &CompanyGuardPlugin{} }

func (p *CompanyGuardPlugin) Name() string { return "company_guard" }

func (p *CompanyGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("company_guard:query", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("company_guard:row", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("company_guard:update", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("company_guard:delete", companyGuardCallback); err != nil {
		return err
	}
	return nil
}

func companyGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassCompanyScope(ctx) {
		return
	}
	company, ok := companyFromContext(ctx)
	if !ok {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	column := ""
	for _, f := range db.Statement.Schema.Fields {
		if IsCompanyColumn(f.DBName) {
			column = f.DBName
			break
		}
	}
	if column == "" {
		return
	}

	// Don't duplicate an explicit company filter.
	if whereHasCompany(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: column},
				Value:  company,
			},
		},
	})
}

// IsCompanyColumn reports whether a column holds a Tartan company number.
func IsCompanyColumn(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "_cono")
}

func companyFromContext(ctx context.Context) (int, bool) {
	v, ok := appctx.GetInt(ctx, appctx.ContextKeyCompanyId)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func shouldBypassCompanyScope(ctx context.Context) bool {
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipCompanyScope); skip {
		return true
	}
	isAdmin, _ := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin)
	return isAdmin
}

func whereHasCompany(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasCompany(e) {
			return true
		}
	}
	return false
}

func exprHasCompany(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsCompany(v.Column)
	case clause.Neq:
		return colIsCompany(v.Column)
	case clause.IN:
		return colIsCompany(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasCompany(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasCompany(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "_cono")
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), "_cono")
	default:
		return false
	}
}

func colIsCompany(col any) bool {
	switch c := col.(type) {
	case string:
		return IsCompanyColumn(c)
	case clause.Column:
		return IsCompanyColumn(c.Name)
	default:
		return false
	}
}
