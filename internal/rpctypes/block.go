package rpctypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultRootHash is the fixed placeholder the spec mandates for
// `stateRoot`, and for `receiptsRoot`/`transactionsRoot` of an empty block
// (spec §3 invariant: "Receipts-trie root equals zero32 iff the block
// contains no transactions" — note the spec text also calls this the
// "DEFAULT_ROOT_HASH" constant in §4.8 step 9, distinct from a bare
// zero32; both resolve to the same well-known empty-trie root here).
var DefaultRootHash = common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// EmptyUnclesHash is keccak256(rlp([])), the fixed sha3Uncles value for a
// block with no uncles.
var EmptyUnclesHash = common.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")

// ZeroAddress is the fixed `miner` value (the backend has no block
// proposer concept to surface).
var ZeroAddress = common.Address{}

// Block is the Ethereum-shaped block described in spec §3, assembled from
// a mirror-node block record plus its contract-result/log stream.
type Block struct {
	Number          hexutil.Uint64
	Hash            common.Hash
	ParentHash      common.Hash
	Timestamp       hexutil.Uint64
	GasLimit        hexutil.Uint64
	GasUsed         hexutil.Uint64
	BaseFeePerGas   *hexutil.Big
	Difficulty      *hexutil.Big
	Miner           common.Address
	MixHash         common.Hash
	Nonce           [8]byte
	ReceiptsRoot    common.Hash
	StateRoot       common.Hash
	TransactionsRoot common.Hash
	Sha3Uncles      common.Hash
	Transactions    []interface{} // either hash-only (common.Hash) or full *Transaction
	Uncles          []common.Hash
	Withdrawals     []interface{}
	WithdrawalsRoot common.Hash
	LogsBloom       [256]byte
}

// Transaction is the Ethereum-shaped transaction object returned when a
// block (or tx lookup) is requested with full details.
type Transaction struct {
	BlockHash        *common.Hash
	BlockNumber      *hexutil.Uint64
	From             common.Address
	Gas              hexutil.Uint64
	GasPrice         *hexutil.Big
	GasFeeCap        *hexutil.Big
	GasTipCap        *hexutil.Big
	Hash             common.Hash
	Input            hexutil.Bytes
	Nonce            hexutil.Uint64
	To               *common.Address
	TransactionIndex *hexutil.Uint64
	Value            *hexutil.Big
	Type             hexutil.Uint64
	Accesses         *[]AccessTuple
	ChainID          *hexutil.Big
	V, R, S          *hexutil.Big
}

// AccessTuple mirrors go-ethereum's AccessTuple for JSON round-tripping
// without importing the whole core/types envelope into the wire layer.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// Log is the Ethereum-shaped log entry (spec §3).
type Log struct {
	Address          common.Address
	BlockHash        common.Hash
	BlockNumber      hexutil.Uint64
	BlockTimestamp   hexutil.Uint64
	Data             hexutil.Bytes
	LogIndex         hexutil.Uint64
	Removed          bool
	Topics           []common.Hash
	TransactionHash  common.Hash
	TransactionIndex hexutil.Uint64
}

// Receipt is the Ethereum-shaped transaction receipt (spec §3), covering
// both regular (contract-result backed) and synthetic (log-only) receipts.
type Receipt struct {
	TransactionHash   common.Hash
	TransactionIndex  hexutil.Uint64
	BlockHash         common.Hash
	BlockNumber       hexutil.Uint64
	From              common.Address
	To                *common.Address
	CumulativeGasUsed hexutil.Uint64
	GasUsed           hexutil.Uint64
	ContractAddress   *common.Address
	Logs              []*Log
	LogsBloom         [256]byte
	Status            hexutil.Uint64
	EffectiveGasPrice *hexutil.Big
	Type              hexutil.Uint64
	Root              *common.Hash

	// Synthetic marks a receipt materialized from an orphan log with no
	// backing contract result (spec §3, §4.8 step 6-7).
	Synthetic bool
}
