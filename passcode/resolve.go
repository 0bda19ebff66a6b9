// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import "sort"

// Entry is the resolved consensus at one index. Label and symbol are resolved
// independently so either field may be empty; an index is only suppressed from
// the result when both are.
type Entry struct {
	Label  string
	Symbol string
}

// resolve computes the majority label and symbol per index from the latest
// report of every reporter (one vote per reporter, not per report), plus the
// number of indexes at which each reporter's latest symbol matches the
// resolved majority symbol.
//
// A candidate value qualifies once its vote count is >= minCount and
// >= minRate of all votes at that index. Scanning votes in a fixed order
// (ascending reporter ID, histories already ordered by index below), the first
// value to qualify holds the entry and is only replaced by a value with a
// strictly greater count, so ties keep the earliest qualifier and resolution
// is reproducible.
func resolve(reports map[ReporterID]map[int][]Report, minCount int, minRate float64) (map[int]Entry, map[ReporterID]int) {
	type vote struct {
		reporter ReporterID
		label    string
		symbol   string
	}

	votes := make(map[int][]vote)
	for _, id := range sortedReporterIDs(reports) {
		byIndex := reports[id]
		for _, index := range sortedIndexes(byIndex) {
			history := byIndex[index]
			last := history[len(history)-1]
			votes[index] = append(votes[index], vote{
				reporter: id,
				label:    last.Label,
				symbol:   last.Symbol,
			})
		}
	}

	entries := make(map[int]Entry)
	for index, indexVotes := range votes {
		total := len(indexVotes)

		qualifies := func(count int) bool {
			return count >= minCount && float64(count) >= minRate*float64(total)
		}

		var (
			labelCounts  = make(map[string]int)
			symbolCounts = make(map[string]int)
			entry        Entry
			bestLabel    int
			bestSymbol   int
		)
		for _, v := range indexVotes {
			if v.label != "" {
				labelCounts[v.label]++
				if count := labelCounts[v.label]; qualifies(count) && count > bestLabel {
					entry.Label = v.label
					bestLabel = count
				}
			}

			if v.symbol != "" {
				symbolCounts[v.symbol]++
				if count := symbolCounts[v.symbol]; qualifies(count) && count > bestSymbol {
					entry.Symbol = v.symbol
					bestSymbol = count
				}
			}
		}

		if entry.Label == "" && entry.Symbol == "" {
			continue // No qualifying value at all, omit the index.
		}

		entries[index] = entry
	}

	correct := make(map[ReporterID]int)
	for index, indexVotes := range votes {
		symbol := entries[index].Symbol
		if symbol == "" {
			continue
		}

		for _, v := range indexVotes {
			if v.symbol == symbol {
				correct[v.reporter]++
			}
		}
	}

	return entries, correct
}

func sortedReporterIDs[V any](m map[ReporterID]V) []ReporterID {
	resp := make([]ReporterID, 0, len(m))
	for id := range m {
		resp = append(resp, id)
	}

	sort.Slice(resp, func(i, j int) bool {
		return resp[i] < resp[j]
	})

	return resp
}

func sortedIndexes[V any](m map[int]V) []int {
	resp := make([]int, 0, len(m))
	for index := range m {
		resp = append(resp, index)
	}

	sort.Ints(resp)

	return resp
}
