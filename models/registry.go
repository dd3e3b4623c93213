package models

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

// ActiveReferences returns the entity's reference tables that are installed in this database.
// Entries naming a table missing from ftable, or a column missing from ffield, are skipped.
func ActiveReferences(ctx context.Context, tx *gorm.DB, entity Entity) ([]ReferenceTable, error) {
	logger := config.GetLogger()

	labels, cached, err := utils.RetrieveRegistryTables(entity.Code)
	if err != nil {
		config.LogError(logger, "registry.go", "ActiveReferences", "RetrieveRegistryTables", entity.Code, err)
	} else if cached {
		return selectReferences(entity.References, labels), nil
	}

	installed, err := InstalledSchema(ctx, tx)
	if err != nil {
		config.LogError(logger, "registry.go", "ActiveReferences", "InstalledSchema", entity.Code, err)
		return nil, err
	}

	active, dropped := FilterReferences(entity.References, installed)
	for _, ref := range dropped {
		logger.WithFields(logrus.Fields{
			"field":  "ActiveReferences",
			"entity": entity.Code,
			"table":  ref.Label(),
		}).Debug("reference table not installed; skipped")
	}

	labels = make([]string, len(active))
	for i, ref := range active {
		labels[i] = ref.Label()
	}
	if err := utils.StoreRegistryTables(entity.Code, labels); err != nil {
		config.LogError(logger, "registry.go", "ActiveReferences", "StoreRegistryTables", entity.Code, err)
	}
	return active, nil
}

// FilterReferences splits refs into those fully present in installed (table -> column set)
// and those that are not.
func FilterReferences(refs []ReferenceTable, installed map[string]map[string]bool) (active []ReferenceTable, dropped []ReferenceTable) {
	for _, ref := range refs {
		columns, ok := installed[ref.Table]
		if !ok || !hasColumns(columns, ref.Columns()) {
			dropped = append(dropped, ref)
			continue
		}
		active = append(active, ref)
	}
	return active, dropped
}

func hasColumns(columns map[string]bool, names []string) bool {
	for _, name := range names {
		if !columns[name] {
			return false
		}
	}
	return true
}

func selectReferences(refs []ReferenceTable, labels []string) []ReferenceTable {
	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[l] = true
	}
	var out []ReferenceTable
	for _, ref := range refs {
		if wanted[ref.Label()] {
			out = append(out, ref)
		}
	}
	return out
}
