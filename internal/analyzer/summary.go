package analyzer

import (
	"cmp"
	"slices"
)

// Summarize aggregates records.
func Summarize(records []Record) Summary {
	s := Summary{Packages: len(records)}
	for i := range records {
		r := &records[i]
		s.TotalBytes += r.SizeBytes
		if len(r.CoRemoved) == 0 {
			s.Leaves++
		}
		if s.Largest == nil || byImpact(*r, *s.Largest) < 0 {
			s.Largest = r
		}
	}
	return s
}

// TopN returns the n records whose removal reclaims the most storage,
// largest first. Ties are broken by identity. n <= 0 returns all records.
func TopN(records []Record, n int) []Record {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, byImpact)
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func byImpact(a, b Record) int {
	if c := cmp.Compare(b.TotalRemovalBytes, a.TotalRemovalBytes); c != 0 {
		return c
	}
	return cmp.Compare(a.Identity, b.Identity)
}
