package rpctypes

import (
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// LogsBloom computes the bloom filter over a set of logs the same way
// go-ethereum's receipt processing does: each log's address and each of
// its topics is added to the filter.
func LogsBloom(logs []*Log) [256]byte {
	var bin ethtypes.Bloom
	for _, l := range logs {
		bin.Add(l.Address.Bytes())
		for _, t := range l.Topics {
			bin.Add(t.Bytes())
		}
	}
	return [256]byte(bin)
}
