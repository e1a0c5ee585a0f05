package transaction

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PendingEntry is the slice of a submitted-but-not-yet-confirmed
// transaction the pool keeps around purely to answer
// eth_getTransactionCount's "pending" tag (spec §4.9 step 1).
type PendingEntry struct {
	Hash     common.Hash
	From     common.Address
	Nonce    uint64
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Input    []byte
}

// Pool is a per-sender map-of-nonce, the shape of the teacher's
// `tx_pool.go` mempool content dump shrunk to exactly what
// sendRawTransaction and getTransactionCount need: insert on submit,
// evict on lock release. There is no queued/blocked tier here — every
// entry the relay ever sees has already passed precheck, so it is always
// "pending" in the Ethereum sense.
type Pool struct {
	mu       sync.Mutex
	bySender map[common.Address]map[uint64]*PendingEntry
}

func NewPool() *Pool {
	return &Pool{bySender: make(map[common.Address]map[uint64]*PendingEntry)}
}

func (p *Pool) Add(entry *PendingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.bySender[entry.From]
	if !ok {
		m = make(map[uint64]*PendingEntry)
		p.bySender[entry.From] = m
	}
	m[entry.Nonce] = entry
}

func (p *Pool) Remove(from common.Address, nonce uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.bySender[from]; ok {
		delete(m, nonce)
		if len(m) == 0 {
			delete(p.bySender, from)
		}
	}
}

// HighestNonce reports the highest nonce currently pending for a sender,
// used to answer eth_getTransactionCount(address, "pending") one past
// the last submitted nonce.
func (p *Pool) HighestNonce(from common.Address) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.bySender[from]
	if !ok || len(m) == 0 {
		return 0, false
	}
	max := uint64(0)
	first := true
	for n := range m {
		if first || n > max {
			max = n
			first = false
		}
	}
	return max, true
}
