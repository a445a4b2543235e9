// Package retrieval embeds a question once and combines the ranked results of
// every configured index.
package retrieval

import (
	"sort"

	"pdfrag/internal/domain"
)

// Merge concatenates lists in priority order and sorts by descending score.
// Equal scores keep list priority, then their order within the list.
func Merge(lists ...[]domain.SearchResult) []domain.SearchResult {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	merged := make([]domain.SearchResult, 0, n)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

// MergeTop merges and keeps at most k results. k <= 0 keeps nothing.
func MergeTop(k int, lists ...[]domain.SearchResult) []domain.SearchResult {
	if k <= 0 {
		return nil
	}
	merged := Merge(lists...)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
