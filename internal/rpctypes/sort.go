package rpctypes

import (
	"cmp"
	"sort"
)

// SortSlice sorts a slice of any ordered type in place. Kept from the
// teacher's `utils.SortSlice` generic helper.
func SortSlice[T cmp.Ordered](slice []T) {
	sort.Slice(slice, func(i, j int) bool {
		return slice[i] < slice[j]
	})
}

// SortLogs orders logs by (blockTimestamp, logIndex), the merge order
// spec §4.5 requires for multi-address `eth_getLogs` fan-out.
func SortLogs(logs []*Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockTimestamp != logs[j].BlockTimestamp {
			return logs[i].BlockTimestamp < logs[j].BlockTimestamp
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}
