package models

import "testing"

func resolverTable() *ReferenceTable {
	return &ReferenceTable{
		Columns: []string{"Pallet", "Loc", "SKU", "Lot", "Qty"},
		Rows: []map[string]string{
			{"Pallet": "P100", "Loc": "A-12", "SKU": "SKU1", "Lot": "L1", "Qty": "50"},
			{"Pallet": "P100", "Loc": "B-03", "SKU": "SKU1", "Lot": "L2", "Qty": "70"},
			{"Pallet": "P200", "Loc": "A-12", "SKU": "SKU2", "Lot": "L1", "Qty": "30"},
			{"Pallet": "P300", "Loc": "C-01", "SKU": "SKU3", "Lot": "L9", "Qty": "12.0"},
			{"Pallet": "P400", "Loc": "C-02", "SKU": "SKU4", "Lot": "L4", "Qty": "n/a"},
		},
	}
}

func resolverMapping() *ColumnMapping {
	return &ColumnMapping{
		SheetName:   "Inventory",
		HeaderRow:   0,
		ExpectedCol: "Qty",
		PalletCol:   "Pallet",
		LocationCol: "Loc",
		SkuCol:      "SKU",
		LotCol:      "Lot",
	}
}

func TestResolvePalletPlusLocationBeatsPalletAlone(t *testing.T) {
	// P100 appears twice with different quantities; the row also matching
	// the location must win over the pallet-only fallback.
	qty, ok := ResolveExpectedQty(resolverTable(), resolverMapping(), LookupKey{Pallet: "P100", Location: "B-03"})
	if !ok || qty != 70 {
		t.Fatalf("expected (70, true), got (%d, %v)", qty, ok)
	}
}

func TestResolveFallsBackDownTheOrder(t *testing.T) {
	table := resolverTable()
	mapping := resolverMapping()

	// Location matches nothing: pallet-only fallback takes the first P100 row.
	qty, ok := ResolveExpectedQty(table, mapping, LookupKey{Pallet: "P100", Location: "Z-99"})
	if !ok || qty != 50 {
		t.Fatalf("pallet fallback: expected (50, true), got (%d, %v)", qty, ok)
	}

	// No pallet at all: location-only.
	qty, ok = ResolveExpectedQty(table, mapping, LookupKey{Location: "A-12"})
	if !ok || qty != 50 {
		t.Fatalf("location fallback: expected (50, true), got (%d, %v)", qty, ok)
	}

	// Only sku and lot are usable.
	qty, ok = ResolveExpectedQty(table, mapping, LookupKey{SKU: "SKU2", Lot: "L1"})
	if !ok || qty != 30 {
		t.Fatalf("sku+lot fallback: expected (30, true), got (%d, %v)", qty, ok)
	}

	// Sku-only is the last resort.
	qty, ok = ResolveExpectedQty(table, mapping, LookupKey{SKU: "SKU2", Lot: "no-such-lot"})
	if !ok || qty != 30 {
		t.Fatalf("sku fallback: expected (30, true), got (%d, %v)", qty, ok)
	}
}

func TestResolveSkipsStrategiesWithUnmappedColumns(t *testing.T) {
	mapping := resolverMapping()
	mapping.PalletCol = "" // pallet strategies must be skipped, not treated as empty matches

	qty, ok := ResolveExpectedQty(resolverTable(), mapping, LookupKey{Pallet: "P100", Location: "A-12"})
	if !ok || qty != 50 {
		t.Fatalf("expected location-only result (50, true), got (%d, %v)", qty, ok)
	}
}

func TestResolveCoercesDecimalQuantities(t *testing.T) {
	qty, ok := ResolveExpectedQty(resolverTable(), resolverMapping(), LookupKey{Pallet: "P300"})
	if !ok || qty != 12 {
		t.Fatalf(`expected "12.0" coerced to 12, got (%d, %v)`, qty, ok)
	}
}

func TestResolveNonNumericQuantityIsAMiss(t *testing.T) {
	if qty, ok := ResolveExpectedQty(resolverTable(), resolverMapping(), LookupKey{Pallet: "P400"}); ok {
		t.Fatalf("non-numeric quantity must resolve to a miss, got (%d, %v)", qty, ok)
	}
}

func TestResolveMissesNeverError(t *testing.T) {
	table := resolverTable()
	mapping := resolverMapping()

	if qty, ok := ResolveExpectedQty(table, mapping, LookupKey{Pallet: "P999"}); ok {
		t.Fatalf("unknown key must miss, got (%d, %v)", qty, ok)
	}
	if qty, ok := ResolveExpectedQty(table, mapping, LookupKey{}); ok {
		t.Fatalf("blank key must miss, got (%d, %v)", qty, ok)
	}
	if qty, ok := ResolveExpectedQty(table, nil, LookupKey{Pallet: "P100"}); ok {
		t.Fatalf("nil mapping must miss, got (%d, %v)", qty, ok)
	}
	if qty, ok := ResolveExpectedQty(&ReferenceTable{}, mapping, LookupKey{Pallet: "P100"}); ok {
		t.Fatalf("empty table must miss, got (%d, %v)", qty, ok)
	}

	mapping.ExpectedCol = "NoSuchColumn"
	if qty, ok := ResolveExpectedQty(table, mapping, LookupKey{Pallet: "P100"}); ok {
		t.Fatalf("unknown expected column must miss, got (%d, %v)", qty, ok)
	}
}
