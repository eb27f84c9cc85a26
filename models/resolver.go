package models

import (
	"strings"

	"bitbucket.org/mmdatafocus/cyclecount_backend/utils"
)

// LookupKey carries the candidate physical-key values for one resolution.
type LookupKey struct {
	Pallet   string
	Location string
	SKU      string
	Lot      string
}

func (k LookupKey) valueFor(field string) string {
	switch field {
	case "pallet_col":
		return k.Pallet
	case "location_col":
		return k.Location
	case "sku_col":
		return k.SKU
	case "lot_col":
		return k.Lot
	}
	return ""
}

// lookupStrategies is the fixed fallback order: most specific match wins.
// Consumers depend on this exact order; do not reorder.
var lookupStrategies = [][]string{
	{"pallet_col", "location_col"},
	{"pallet_col"},
	{"location_col"},
	{"sku_col", "lot_col"},
	{"sku_col"},
}

// ResolveExpectedQty maps a lookup key to an expected quantity via the
// ordered fallback strategies. A strategy is skipped when any of its
// mapping columns is unset/unknown or its lookup value is blank; the
// first strategy with at least one matching row wins, taking the first
// matching row in table order. Best-effort by contract: a miss returns
// (0, false) and must never block assignment creation.
func ResolveExpectedQty(table *ReferenceTable, mapping *ColumnMapping, key LookupKey) (int, bool) {
	if table.Empty() || mapping == nil {
		return 0, false
	}
	expectedCol := strings.TrimSpace(mapping.ExpectedCol)
	if expectedCol == "" || !table.HasColumn(expectedCol) {
		return 0, false
	}

	for _, fields := range lookupStrategies {
		rows, ok := filterRows(table, mapping, key, fields)
		if !ok || len(rows) == 0 {
			continue
		}
		return utils.ParseQuantity(rows[0][expectedCol])
	}
	return 0, false
}

// filterRows narrows the table by every field in the strategy. The
// second return is false when the strategy is not applicable at all
// (unmapped column, unknown column or blank lookup value).
func filterRows(table *ReferenceTable, mapping *ColumnMapping, key LookupKey, fields []string) ([]map[string]string, bool) {
	rows := table.Rows
	for _, field := range fields {
		col := strings.TrimSpace(mapping.columnFor(field))
		val := strings.TrimSpace(key.valueFor(field))
		if col == "" || val == "" || !table.HasColumn(col) {
			return nil, false
		}

		var matched []map[string]string
		for _, row := range rows {
			if strings.TrimSpace(row[col]) == val {
				matched = append(matched, row)
			}
		}
		rows = matched
	}
	return rows, true
}
