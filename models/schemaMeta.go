package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Ftable lists every installed table and its keys. Key 0 is the primary key.
type Ftable struct {
	FtTabl string `gorm:"column:ft_tabl;primaryKey;size:40" json:"ft_tabl"`
	FtKeyn int    `gorm:"column:ft_keyn;primaryKey;autoIncrement:false" json:"ft_keyn"`
	FtDesc string `gorm:"column:ft_desc;size:60" json:"ft_desc"`
	FtType string `gorm:"column:ft_type;size:1" json:"ft_type"` // U unique, N non-unique
	FtKeys string `gorm:"column:ft_keys;size:255" json:"ft_keys"`
}

func (Ftable) TableName() string { return "ftable" }

// Ffield lists the columns of every installed table in declaration order.
type Ffield struct {
	FfTabl string `gorm:"column:ff_tabl;primaryKey;size:40" json:"ff_tabl"`
	FfSeq  int    `gorm:"column:ff_seq;primaryKey;autoIncrement:false" json:"ff_seq"`
	FfName string `gorm:"column:ff_name;size:40;index" json:"ff_name"`
	FfType string `gorm:"column:ff_type;size:40" json:"ff_type"`
	FfSize int    `gorm:"column:ff_size" json:"ff_size"`
	FfDesc string `gorm:"column:ff_desc;size:60" json:"ff_desc"`
}

func (Ffield) TableName() string { return "ffield" }

var schemaCache sync.Map

// TableExists reports whether ftable knows the table.
func TableExists(ctx context.Context, tx *gorm.DB, table string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&Ftable{}).Where("ft_tabl = ?", table).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TableColumns returns the column names ffield records for a table, in ff_seq order.
func TableColumns(ctx context.Context, tx *gorm.DB, table string) ([]string, error) {
	var columns []string
	err := tx.WithContext(ctx).Model(&Ffield{}).
		Where("ff_tabl = ?", table).
		Order("ff_seq").
		Pluck("ff_name", &columns).Error
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// InstalledSchema loads ftable and ffield into a table -> column set map.
// Tables present in ftable without any ffield rows map to an empty set.
func InstalledSchema(ctx context.Context, tx *gorm.DB) (map[string]map[string]bool, error) {
	var tables []string
	if err := tx.WithContext(ctx).Model(&Ftable{}).Distinct("ft_tabl").Pluck("ft_tabl", &tables).Error; err != nil {
		return nil, err
	}
	installed := make(map[string]map[string]bool, len(tables))
	for _, t := range tables {
		installed[t] = map[string]bool{}
	}

	var fields []Ffield
	if err := tx.WithContext(ctx).Select("ff_tabl", "ff_name").Find(&fields).Error; err != nil {
		return nil, err
	}
	for _, f := range fields {
		cols, ok := installed[f.FfTabl]
		if !ok {
			continue
		}
		cols[f.FfName] = true
	}
	return installed, nil
}

// SyncSchemaMetadata rewrites the ftable/ffield rows describing the given models and
// drops every cached registry so the next cascade sees the new schema.
func SyncSchemaMetadata(ctx context.Context, tx *gorm.DB, models ...interface{}) error {
	logger := config.GetLogger()
	for _, model := range models {
		sch, err := schema.Parse(model, &schemaCache, tx.NamingStrategy)
		if err != nil {
			config.LogError(logger, "schemaMeta.go", "SyncSchemaMetadata", "schema.Parse", fmt.Sprintf("%T", model), err)
			return err
		}
		tables, fields := describeSchema(sch)

		err = tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("ft_tabl = ?", sch.Table).Delete(&Ftable{}).Error; err != nil {
				return err
			}
			if err := tx.Where("ff_tabl = ?", sch.Table).Delete(&Ffield{}).Error; err != nil {
				return err
			}
			if err := tx.Create(&tables).Error; err != nil {
				return err
			}
			return tx.Create(&fields).Error
		})
		if err != nil {
			config.LogError(logger, "schemaMeta.go", "SyncSchemaMetadata", "write metadata", sch.Table, err)
			return err
		}
	}
	return utils.ClearRegistryCache(EntityCodes()...)
}

func describeSchema(sch *schema.Schema) ([]Ftable, []Ffield) {
	primary := make([]string, 0, len(sch.PrimaryFieldDBNames))
	primary = append(primary, sch.PrimaryFieldDBNames...)

	tables := []Ftable{{
		FtTabl: sch.Table,
		FtKeyn: 0,
		FtDesc: describeTable(sch.Name),
		FtType: "U",
		FtKeys: strings.Join(primary, " "),
	}}

	var fields []Ffield
	seq := 0
	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		desc := f.Comment
		if desc == "" {
			desc = f.Name
		}
		dataType := string(f.DataType)
		if f.IndirectFieldType == moneyType {
			dataType = "decimal"
		}
		fields = append(fields, Ffield{
			FfTabl: sch.Table,
			FfSeq:  seq,
			FfName: f.DBName,
			FfType: dataType,
			FfSize: f.Size,
			FfDesc: desc,
		})
		seq++
	}
	return tables, fields
}

func describeTable(name string) string {
	if len(name) > 60 {
		return name[:60]
	}
	return name
}
