package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tartansystems/tartan_backend/utils"
)

type KeyChangeMode string

const (
	ModeRenumber KeyChangeMode = "renumber"
	ModeMerge    KeyChangeMode = "merge"
)

type KeyColumn struct {
	Name    string
	Numeric bool
}

// ReferenceTable is one dependent table storing an entity key. KeyColumns line up
// positionally with the owning entity's key columns.
type ReferenceTable struct {
	Table         string
	CompanyColumn string
	KeyColumns    []string
	// Extra equality filter, e.g. the VAT source type on ctlvtf.
	Filter map[string]interface{}
	// Non-empty marks a period keyed balance table; merges sum AmountColumns per period.
	PeriodColumns []string
	AmountColumns []string
	// The table stores the key as text even where the master column is numeric.
	TextKeys bool
}

func (r ReferenceTable) IsBalance() bool {
	return len(r.PeriodColumns) > 0
}

// Label identifies the entry in results and logs; a table may be listed once per key column set.
func (r ReferenceTable) Label() string {
	return fmt.Sprintf("%s(%s)", r.Table, strings.Join(r.KeyColumns, ","))
}

// Columns lists every column the entry names.
func (r ReferenceTable) Columns() []string {
	cols := []string{r.CompanyColumn}
	cols = append(cols, r.KeyColumns...)
	for col := range r.Filter {
		cols = append(cols, col)
	}
	cols = append(cols, r.PeriodColumns...)
	cols = append(cols, r.AmountColumns...)
	return cols
}

// KeyValues maps the entry's key columns to the parts of key.
func (r ReferenceTable) KeyValues(key EntityKey) map[string]interface{} {
	values := make(map[string]interface{}, len(r.KeyColumns))
	for i, col := range r.KeyColumns {
		if i >= len(key.Parts) {
			break
		}
		if r.TextKeys {
			values[col] = fmt.Sprint(key.Parts[i])
		} else {
			values[col] = key.Parts[i]
		}
	}
	return values
}

// Where is the filter selecting every row of the table that references key.
func (r ReferenceTable) Where(key EntityKey) map[string]interface{} {
	where := r.KeyValues(key)
	where[r.CompanyColumn] = key.Company
	for col, v := range r.Filter {
		where[col] = v
	}
	return where
}

type Entity struct {
	Code          string
	Name          string
	MasterTable   string
	CompanyColumn string
	KeyColumns    []KeyColumn
	References    []ReferenceTable
}

// EntityKey is a company number plus the entity's key parts.
type EntityKey struct {
	Company int
	Parts   []interface{}
}

func (k EntityKey) Equal(other EntityKey) bool {
	if k.Company != other.Company || len(k.Parts) != len(other.Parts) {
		return false
	}
	for i := range k.Parts {
		if fmt.Sprint(k.Parts[i]) != fmt.Sprint(other.Parts[i]) {
			return false
		}
	}
	return true
}

// String renders the parts the way operators type them ("3,ACME01").
func (k EntityKey) String() string {
	parts := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}

// RecordKey is the chglog record identifier: zero padded company then parts.
func (k EntityKey) RecordKey() string {
	parts := make([]string, 0, len(k.Parts)+1)
	parts = append(parts, fmt.Sprintf("%03d", k.Company))
	for _, p := range k.Parts {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, "|")
}

// ParseKey reads an operator entered key. Compound parts are comma separated.
func (e Entity) ParseKey(company int, raw string) (EntityKey, error) {
	key := EntityKey{Company: company}
	if company <= 0 {
		return key, &utils.InvalidKeyError{Entity: e.Code, Key: raw, Reason: "company is required"}
	}
	fields := strings.Split(raw, ",")
	if len(fields) != len(e.KeyColumns) {
		return key, &utils.InvalidKeyError{
			Entity: e.Code,
			Key:    raw,
			Reason: fmt.Sprintf("expected %d key part(s), got %d", len(e.KeyColumns), len(fields)),
		}
	}
	for i, col := range e.KeyColumns {
		field := strings.TrimSpace(fields[i])
		if field == "" {
			return key, &utils.InvalidKeyError{Entity: e.Code, Key: raw, Reason: col.Name + " is empty"}
		}
		if col.Numeric {
			n, err := strconv.Atoi(field)
			if err != nil || n <= 0 {
				return key, &utils.InvalidKeyError{Entity: e.Code, Key: raw, Reason: col.Name + " must be a positive number"}
			}
			key.Parts = append(key.Parts, n)
			continue
		}
		key.Parts = append(key.Parts, strings.ToUpper(field))
	}
	return key, nil
}

func (e Entity) MasterKeyValues(key EntityKey) map[string]interface{} {
	values := make(map[string]interface{}, len(e.KeyColumns))
	for i, col := range e.KeyColumns {
		if i >= len(key.Parts) {
			break
		}
		values[col.Name] = key.Parts[i]
	}
	return values
}

func (e Entity) MasterWhere(key EntityKey) map[string]interface{} {
	where := e.MasterKeyValues(key)
	where[e.CompanyColumn] = key.Company
	return where
}

func (e Entity) MasterKeyColumns() []string {
	cols := make([]string, len(e.KeyColumns))
	for i, col := range e.KeyColumns {
		cols[i] = col.Name
	}
	return cols
}

var glAccount = Entity{
	Code:          "GL",
	Name:          "General ledger account",
	MasterTable:   "genmst",
	CompanyColumn: "glm_cono",
	KeyColumns:    []KeyColumn{{Name: "glm_acno", Numeric: true}},
	References: []ReferenceTable{
		{Table: "genbal", CompanyColumn: "glo_cono", KeyColumns: []string{"glo_acno"},
			PeriodColumns: []string{"glo_trdt"}, AmountColumns: []string{"glo_cyr"}},
		{Table: "genbud", CompanyColumn: "glb_cono", KeyColumns: []string{"glb_acno"},
			PeriodColumns: []string{"glb_curdt"}, AmountColumns: []string{"glb_tramt"}},
		{Table: "gentrn", CompanyColumn: "glt_cono", KeyColumns: []string{"glt_acno"}},
		{Table: "ctlvtf", CompanyColumn: "vtt_cono", KeyColumns: []string{"vtt_acno"},
			Filter: map[string]interface{}{"vtt_styp": "G"}, TextKeys: true},
		{Table: "ctlctl", CompanyColumn: "ctl_cono", KeyColumns: []string{"ctl_conacc"}},
		{Table: "assgrp", CompanyColumn: "asg_cono", KeyColumns: []string{"asg_assacc"}},
		{Table: "assgrp", CompanyColumn: "asg_cono", KeyColumns: []string{"asg_depacc"}},
		{Table: "assgrp", CompanyColumn: "asg_cono", KeyColumns: []string{"asg_expacc"}},
		{Table: "rtlprm", CompanyColumn: "rtp_cono", KeyColumns: []string{"rtp_rtlacc"}},
	},
}

var drsAccount = Entity{
	Code:          "DR",
	Name:          "Debtors account",
	MasterTable:   "drsmst",
	CompanyColumn: "drm_cono",
	KeyColumns:    []KeyColumn{{Name: "drm_chain", Numeric: true}, {Name: "drm_acno"}},
	References: []ReferenceTable{
		{Table: "drstrn", CompanyColumn: "drt_cono", KeyColumns: []string{"drt_chain", "drt_acno"}},
		{Table: "drsage", CompanyColumn: "dra_cono", KeyColumns: []string{"dra_chn", "dra_acno"}},
		{Table: "ctlvtf", CompanyColumn: "vtt_cono", KeyColumns: []string{"vtt_chain", "vtt_acno"},
			Filter: map[string]interface{}{"vtt_styp": "D"}},
		{Table: "drsdel", CompanyColumn: "del_cono", KeyColumns: []string{"del_chain", "del_acno"}},
	},
}

var crsAccount = Entity{
	Code:          "CR",
	Name:          "Creditors account",
	MasterTable:   "crsmst",
	CompanyColumn: "crm_cono",
	KeyColumns:    []KeyColumn{{Name: "crm_acno"}},
	References: []ReferenceTable{
		{Table: "crstrn", CompanyColumn: "crt_cono", KeyColumns: []string{"crt_acno"}},
		{Table: "crsage", CompanyColumn: "cra_cono", KeyColumns: []string{"cra_acno"}},
		{Table: "ctlvtf", CompanyColumn: "vtt_cono", KeyColumns: []string{"vtt_acno"},
			Filter: map[string]interface{}{"vtt_styp": "C"}},
		{Table: "strpom", CompanyColumn: "pom_cono", KeyColumns: []string{"pom_acno"}},
	},
}

var entities = []Entity{glAccount, drsAccount, crsAccount}

// LookupEntity returns the registry entry for GL, DR or CR.
func LookupEntity(code string) (Entity, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, e := range entities {
		if e.Code == code {
			return e, true
		}
	}
	return Entity{}, false
}

func EntityCodes() []string {
	codes := make([]string, len(entities))
	for i, e := range entities {
		codes[i] = e.Code
	}
	return codes
}
