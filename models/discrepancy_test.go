package models

import "testing"

func TestNonMatchesExcludesMatchAndMissing(t *testing.T) {
	subs := []Submission{
		{User: "Alex", Location: "A-1", IssueType: IssueTypeMatch},
		{User: "Alex", Location: "A-2", IssueType: IssueTypeShort},
		{User: "Karen", Location: "A-3", IssueType: IssueTypeMissing},
		{User: "Karen", Location: "A-4", IssueType: IssueTypeOver},
		{User: "Karen", Location: "A-5", IssueType: IssueTypeDamaged},
	}

	got := NonMatches(subs)
	if len(got) != 3 {
		t.Fatalf("expected 3 non-matches, got %d", len(got))
	}
	for _, s := range got {
		if s.IssueType == IssueTypeMatch || s.IssueType == IssueTypeMissing {
			t.Fatalf("excluded issue type leaked through: %+v", s)
		}
	}
	if got[0].Location != "A-2" || got[1].Location != "A-4" {
		t.Fatalf("submission order not preserved: %+v", got)
	}
}

func TestBulkDiscrepanciesGroupsByPalletKey(t *testing.T) {
	subs := []Submission{
		{User: "Alex", Location: "A-12", ActualPallet: "P100", SKU: "SKU1", Lot: "L1", IssueType: IssueTypeShort},
		{User: "Karen", Location: "A-12", ActualPallet: "P100", SKU: "SKU1", Lot: "L1", IssueType: IssueTypeOver},
		{User: "Alex", Location: "B-03", ActualPallet: "P200", SKU: "SKU2", Lot: "L2", IssueType: IssueTypeShort},
	}

	groups := BulkDiscrepancies(subs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	first := groups[0]
	if first.Location != "A-12" || first.Count != 2 || len(first.Rows) != 2 {
		t.Fatalf("expected shared-key bucket of 2 first, got %+v", first)
	}
	if first.Rows[0].User != "Alex" || first.Rows[1].User != "Karen" {
		t.Fatalf("bucket rows out of submission order: %+v", first.Rows)
	}
	if groups[1].ActualPallet != "P200" || groups[1].Count != 1 {
		t.Fatalf("unexpected second group %+v", groups[1])
	}
}

func TestBulkDiscrepanciesExcludesRackLocations(t *testing.T) {
	subs := []Submission{
		{Location: "TUN-04", ActualPallet: "P1", IssueType: IssueTypeShort},
		{Location: "tun-09", ActualPallet: "P2", IssueType: IssueTypeOver},
		{Location: "A-12", ActualPallet: "P3", IssueType: IssueTypeShort},
	}

	groups := BulkDiscrepancies(subs)
	if len(groups) != 1 || groups[0].Location != "A-12" {
		t.Fatalf("rack locations must be excluded case-insensitively, got %+v", groups)
	}
}

func TestBulkDiscrepanciesMissingFieldsGroupTogether(t *testing.T) {
	subs := []Submission{
		{Location: "A-12", IssueType: IssueTypeShort},
		{Location: "A-12", IssueType: IssueTypeOver},
	}

	groups := BulkDiscrepancies(subs)
	if len(groups) != 1 || groups[0].Count != 2 || groups[0].ActualPallet != "" {
		t.Fatalf("blank fields must share one bucket, got %+v", groups)
	}
}
