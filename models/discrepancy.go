package models

import "strings"

// bulkExcludedPrefix marks rack/bin locations that never participate in
// pallet-level bulk grouping.
const bulkExcludedPrefix = "TUN"

// BulkDiscrepancy is one pallet-granularity bucket of non-matching
// submissions sharing (location, actual_pallet, sku, lot).
type BulkDiscrepancy struct {
	Location     string       `json:"location"`
	ActualPallet string       `json:"actual_pallet"`
	SKU          string       `json:"sku"`
	Lot          string       `json:"lot"`
	Count        int          `json:"count"`
	Rows         []Submission `json:"rows"`
}

// NonMatches filters submissions down to real discrepancies: anything
// that is neither a Match nor the MISSING sentinel.
func NonMatches(submissions []Submission) []Submission {
	var out []Submission
	for _, s := range submissions {
		if s.IssueType == IssueTypeMatch || s.IssueType == IssueTypeMissing {
			continue
		}
		out = append(out, s)
	}
	return out
}

// BulkDiscrepancies groups non-matching submissions at pallet
// granularity. Rack/bin (TUN-prefixed) locations are excluded; grouping
// keys compare as exact strings, with missing fields grouping under "".
// Recomputed on every call; no cached state.
func BulkDiscrepancies(nonMatches []Submission) []BulkDiscrepancy {
	type groupKey struct {
		location, actualPallet, sku, lot string
	}

	index := map[groupKey]int{}
	var groups []BulkDiscrepancy
	for _, s := range nonMatches {
		if strings.HasPrefix(strings.ToUpper(s.Location), bulkExcludedPrefix) {
			continue
		}
		key := groupKey{s.Location, s.ActualPallet, s.SKU, s.Lot}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, BulkDiscrepancy{
				Location:     s.Location,
				ActualPallet: s.ActualPallet,
				SKU:          s.SKU,
				Lot:          s.Lot,
			})
		}
		groups[i].Rows = append(groups[i].Rows, s)
		groups[i].Count++
	}
	return groups
}
