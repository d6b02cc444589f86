// Package paginate orders records and splits them into sheet-sized
// batches.
package paginate

import (
	"sort"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
)

// Sort orders records by ascending RowNumber. Records sharing a row number
// keep their relative order.
func Sort(records []*record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RowNumber < records[j].RowNumber
	})
}

// Split cuts items into consecutive batches of at most capacity elements.
// Empty input yields a single empty batch. A capacity below 1 means
// config.DefaultSheetCapacity.
func Split[T any](items []T, capacity int) [][]T {
	if capacity < 1 {
		capacity = config.DefaultSheetCapacity
	}
	if len(items) == 0 {
		return [][]T{{}}
	}

	batches := make([][]T, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := start + capacity
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// Paginate sorts records and splits them with the given capacity.
func Paginate(records []*record.Record, capacity int) [][]*record.Record {
	Sort(records)
	return Split(records, capacity)
}
