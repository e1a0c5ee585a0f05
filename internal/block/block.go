// Package block implements the Block Service (C10) of spec §4.8:
// reconstructs Ethereum-shaped blocks and receipts from the mirror
// node's contract-result and log streams, synthesizing pseudo
// transactions for orphan logs and computing the receipts-trie root
// the same way `rpc/backend/blocks.go` computes its own block/receipt
// roots — via `trie.NewStackTrie` through go-ethereum's `DeriveSha`.
//
// Nothing here actually runs on a separate OS thread, and
// server/json_rpc.go adds no thread-pool offload either: each call runs
// on the goroutine go-ethereum's rpc.Server serves the request on.
package block

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

// syntheticGasPrice is the fixed sentinel gas price spec §4.8 step 6
// assigns to a pseudo-transaction synthesized from an orphan log: it
// never paid real gas, so its price is marked with a value no real
// transaction can carry.
var syntheticGasPrice = hexutil.Big(*big.NewInt(0xffffffff))

func bigZero() *hexutil.Big { return (*hexutil.Big)(new(big.Int)) }

// Resolver is the subset of the Common Service (C7) block assembly
// needs: block-record resolution and the current network gas price
// (used as baseFeePerGas, spec §4.8 step 9).
type Resolver interface {
	GetHistoricalBlockResponse(ctx context.Context, tagOrNumberOrHash string, returnLatest bool) (*mirror.BlockResponse, error)
	GasPrice(ctx context.Context) (*hexutil.Big, error)
}

// Config bundles the block-size ceiling spec §6 names
// (TX_COUNT_MAX_BLOCK_RANGE / MAX_BLOCK_SIZE).
type Config struct {
	TxCountMaxBlockRange int
}

// Service assembles blocks and receipts from mirror-node data.
type Service struct {
	mirrorClient *mirror.Client
	resolver     Resolver
	cfg          Config
	logger       log.Logger
}

func NewService(mirrorClient *mirror.Client, resolver Resolver, cfg Config, logger log.Logger) *Service {
	return &Service{mirrorClient: mirrorClient, resolver: resolver, cfg: cfg, logger: logger}
}

// assembly is everything fetched/derived for one block, shared by
// GetBlock and GetBlockReceipts so both walk the same reconstruction.
type assembly struct {
	record        *mirror.BlockResponse
	contractTxs   []mirror.ContractResult
	logsByHash    map[string][]mirror.Log // grouped by transactionHash, owned and orphan alike
	orphanGroups  map[string][]mirror.Log // subset of logsByHash whose hash has no contract result
	orderedHashes []string                // txArray order: contract-result hashes, then orphan hashes
	gasPrice      *hexutil.Big
}

func (s *Service) fetchAssembly(ctx context.Context, record *mirror.BlockResponse) (*assembly, error) {
	type resultsOut struct {
		results *mirror.ContractResultsResponse
		err     error
	}
	type logsOut struct {
		logs *mirror.LogsResponse
		err  error
	}

	resultsCh := make(chan resultsOut, 1)
	logsCh := make(chan logsOut, 1)

	go func() {
		r, err := s.mirrorClient.GetContractResults(ctx, mirror.ContractResultsQuery{
			TimestampGTE: record.Timestamp.From,
			TimestampLTE: record.Timestamp.To,
			Order:        "asc",
			Limit:        1000,
		})
		resultsCh <- resultsOut{r, err}
	}()
	go func() {
		l, err := s.mirrorClient.GetContractResultsLogs(ctx, record.Timestamp.From, record.Timestamp.To, 1000)
		logsCh <- logsOut{l, err}
	}()

	results := <-resultsCh
	logs := <-logsCh
	if results.err != nil {
		return nil, results.err
	}
	if logs.err != nil {
		return nil, logs.err
	}

	if len(results.results.Results) == 0 && len(logs.logs.Logs) == 0 {
		return nil, nil
	}

	txHashes := make(map[string]struct{}, len(results.results.Results))
	var orderedHashes []string
	for _, r := range results.results.Results {
		if r.Hash == "" || isRevertedDueToHederaSpecificValidation(r) {
			continue
		}
		if _, ok := txHashes[r.Hash]; ok {
			continue
		}
		txHashes[r.Hash] = struct{}{}
		orderedHashes = append(orderedHashes, r.Hash)
	}

	logsByHash := make(map[string][]mirror.Log)
	orphanGroups := make(map[string][]mirror.Log)
	var orphanOrder []string
	for _, lg := range logs.logs.Logs {
		logsByHash[lg.TransactionHash] = append(logsByHash[lg.TransactionHash], lg)
		if _, ok := txHashes[lg.TransactionHash]; ok {
			continue
		}
		if _, seen := orphanGroups[lg.TransactionHash]; !seen {
			orphanOrder = append(orphanOrder, lg.TransactionHash)
		}
		orphanGroups[lg.TransactionHash] = append(orphanGroups[lg.TransactionHash], lg)
	}
	orderedHashes = append(orderedHashes, orphanOrder...)

	gasPrice, err := s.resolver.GasPrice(ctx)
	if err != nil {
		gasPrice = bigZero()
	}

	return &assembly{
		record:        record,
		contractTxs:   results.results.Results,
		logsByHash:    logsByHash,
		orphanGroups:  orphanGroups,
		orderedHashes: orderedHashes,
		gasPrice:      gasPrice,
	}, nil
}

// isRevertedDueToHederaSpecificValidation filters out contract results
// that failed Hedera-level (not EVM-level) validation before ever
// reaching execution — spec §4.8 step 5 excludes these from the block's
// transaction list entirely, since Ethereum tooling has no equivalent
// "rejected pre-execution" transaction shape.
func isRevertedDueToHederaSpecificValidation(cr mirror.ContractResult) bool {
	return cr.Status == "" && cr.ErrorMessage != "" && cr.GasUsed == 0
}

// GetBlockByHash implements eth_getBlockByHash.
func (s *Service) GetBlockByHash(ctx context.Context, hash common.Hash, showDetails bool) (*rpctypes.Block, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, hash.Hex(), true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return s.getBlock(ctx, record, showDetails)
}

// GetBlockByNumber implements eth_getBlockByNumber.
func (s *Service) GetBlockByNumber(ctx context.Context, tagOrNumber string, showDetails bool) (*rpctypes.Block, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, tagOrNumber, true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return s.getBlock(ctx, record, showDetails)
}

func (s *Service) getBlock(ctx context.Context, record *mirror.BlockResponse, showDetails bool) (*rpctypes.Block, error) {
	asm, err := s.fetchAssembly(ctx, record)
	if err != nil {
		return nil, err
	}
	if asm == nil {
		return nil, nil
	}

	if showDetails && len(asm.contractTxs) >= s.cfg.TxCountMaxBlockRange {
		return nil, jsonrpcerr.MaxBlockSize()
	}

	byHash := make(map[string]mirror.ContractResult, len(asm.contractTxs))
	for _, r := range asm.contractTxs {
		byHash[r.Hash] = r
	}

	txs := make([]interface{}, 0, len(asm.orderedHashes))
	index := hexutil.Uint64(0)
	for _, h := range asm.orderedHashes {
		if cr, ok := byHash[h]; ok {
			if showDetails {
				txs = append(txs, contractResultToTransaction(cr, record, index))
			} else {
				txs = append(txs, common.HexToHash(h))
			}
			index++
			continue
		}
		group := asm.orphanGroups[h]
		if len(group) == 0 {
			continue
		}
		if showDetails {
			txs = append(txs, syntheticTransaction(group[0], record, index))
		} else {
			txs = append(txs, common.HexToHash(h))
		}
		index++
	}

	receipts := s.buildReceipts(asm)
	receiptsRoot := computeReceiptsRoot(receipts)

	blockHash := common.HexToHash(record.Hash)
	parentHash := parentHashFrom(record.PreviousHash)

	transactionsRoot := rpctypes.DefaultRootHash
	if len(txs) > 0 {
		transactionsRoot = blockHash
	}

	return &rpctypes.Block{
		Number:           hexutil.Uint64(record.Number),
		Hash:             blockHash,
		ParentHash:       parentHash,
		Timestamp:        timestampToUnix(record.Timestamp.From),
		GasLimit:         hexutil.Uint64(15_000_000),
		GasUsed:          hexutil.Uint64(record.GasUsed),
		BaseFeePerGas:    asm.gasPrice,
		Difficulty:       bigZero(),
		Miner:            rpctypes.ZeroAddress,
		MixHash:          common.Hash{},
		ReceiptsRoot:     receiptsRoot,
		StateRoot:        rpctypes.DefaultRootHash,
		TransactionsRoot: transactionsRoot,
		Sha3Uncles:       rpctypes.EmptyUnclesHash,
		Transactions:     txs,
		Uncles:           []common.Hash{},
		LogsBloom:        logsBloomHex(record.LogsBloom),
	}, nil
}

// GetBlockReceipts implements eth_getBlockReceipts.
func (s *Service) GetBlockReceipts(ctx context.Context, hashOrNumber string) ([]*rpctypes.Receipt, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, hashOrNumber, true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	asm, err := s.fetchAssembly(ctx, record)
	if err != nil {
		return nil, err
	}
	if asm == nil {
		return nil, nil
	}
	return s.buildReceipts(asm), nil
}

// GetBlockTransactionCount implements
// eth_getBlockTransactionCountBy{Hash,Number}.
func (s *Service) GetBlockTransactionCount(ctx context.Context, hashOrNumber string) (*hexutil.Uint, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, hashOrNumber, true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	asm, err := s.fetchAssembly(ctx, record)
	if err != nil {
		return nil, err
	}
	if asm == nil {
		n := hexutil.Uint(0)
		return &n, nil
	}
	n := hexutil.Uint(len(asm.orderedHashes))
	return &n, nil
}

func (s *Service) buildReceipts(asm *assembly) []*rpctypes.Receipt {
	byHash := make(map[string]mirror.ContractResult, len(asm.contractTxs))
	for _, r := range asm.contractTxs {
		byHash[r.Hash] = r
	}

	receipts := make([]*rpctypes.Receipt, 0, len(asm.orderedHashes))
	index := hexutil.Uint64(0)
	for _, h := range asm.orderedHashes {
		if cr, ok := byHash[h]; ok {
			receipts = append(receipts, contractResultToReceipt(cr, asm.logsByHash[h], asm.record, index))
			index++
			continue
		}
		group := asm.orphanGroups[h]
		if len(group) == 0 {
			continue
		}
		receipts = append(receipts, syntheticReceipt(h, group, asm.record, asm.gasPrice, index))
		index++
	}
	return receipts
}

func contractResultToTransaction(cr mirror.ContractResult, record *mirror.BlockResponse, index hexutil.Uint64) *rpctypes.Transaction {
	blockHash := common.HexToHash(record.Hash)
	blockNumber := hexutil.Uint64(record.Number)
	var to *common.Address
	if cr.To != "" {
		addr := common.HexToAddress(cr.To)
		to = &addr
	}
	return &rpctypes.Transaction{
		BlockHash:        &blockHash,
		BlockNumber:      &blockNumber,
		From:             common.HexToAddress(cr.From),
		Gas:              hexutil.Uint64(cr.GasLimit),
		GasPrice:         parseHexOrZero(cr.GasPrice),
		Hash:             common.HexToHash(cr.Hash),
		Input:            hexutil.Bytes(common.FromHex(cr.FunctionParameters)),
		Nonce:            hexutil.Uint64(cr.Nonce),
		To:               to,
		TransactionIndex: &index,
		Value:            (*hexutil.Big)(big.NewInt(cr.Amount)),
		Type:             hexutil.Uint64(cr.Type),
	}
}

func syntheticTransaction(lg mirror.Log, record *mirror.BlockResponse, index hexutil.Uint64) *rpctypes.Transaction {
	blockHash := common.HexToHash(record.Hash)
	blockNumber := hexutil.Uint64(record.Number)
	addr := common.HexToAddress(lg.Address)
	return &rpctypes.Transaction{
		BlockHash:        &blockHash,
		BlockNumber:      &blockNumber,
		From:             addr,
		To:               &addr,
		Gas:              21000,
		GasPrice:         &syntheticGasPrice,
		Hash:             common.HexToHash(lg.TransactionHash),
		Input:            hexutil.Bytes{},
		Nonce:            0,
		TransactionIndex: &index,
		Value:            bigZero(),
		Type:             2,
		V:                bigZero(),
		R:                bigZero(),
		S:                bigZero(),
	}
}

func contractResultToReceipt(cr mirror.ContractResult, logs []mirror.Log, record *mirror.BlockResponse, index hexutil.Uint64) *rpctypes.Receipt {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Index < logs[j].Index })
	converted := convertLogs(logs, record, index)
	bloom := rpctypes.LogsBloom(converted)
	if len(logs) == 0 {
		bloom = bloomFromHex(cr.Bloom)
	}

	var to *common.Address
	if cr.To != "" {
		addr := common.HexToAddress(cr.To)
		to = &addr
	}
	var contractAddress *common.Address
	if len(cr.CreatedContractIDs) > 0 && cr.To == "" {
		addr := common.HexToAddress(cr.Address)
		contractAddress = &addr
	}
	status := hexutil.Uint64(1)
	if cr.Status != "0x1" && cr.Status != "" && cr.Status != "SUCCESS" {
		status = 0
	}
	return &rpctypes.Receipt{
		TransactionHash:   common.HexToHash(cr.Hash),
		TransactionIndex:  index,
		BlockHash:         common.HexToHash(record.Hash),
		BlockNumber:       hexutil.Uint64(record.Number),
		From:              common.HexToAddress(cr.From),
		To:                to,
		CumulativeGasUsed: hexutil.Uint64(cr.GasUsed),
		GasUsed:           hexutil.Uint64(cr.GasUsed),
		ContractAddress:   contractAddress,
		Logs:              converted,
		LogsBloom:         bloom,
		Status:            status,
		EffectiveGasPrice: parseHexOrZero(cr.GasPrice),
		Type:              hexutil.Uint64(cr.Type),
	}
}

func syntheticReceipt(txHash string, logs []mirror.Log, record *mirror.BlockResponse, gasPrice *hexutil.Big, index hexutil.Uint64) *rpctypes.Receipt {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Index < logs[j].Index })
	converted := convertLogs(logs, record, index)
	bloom := rpctypes.LogsBloom(converted)
	addr := common.HexToAddress(logs[0].Address)
	return &rpctypes.Receipt{
		TransactionHash:   common.HexToHash(txHash),
		TransactionIndex:  index,
		BlockHash:         common.HexToHash(record.Hash),
		BlockNumber:       hexutil.Uint64(record.Number),
		From:              addr,
		To:                &addr,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              converted,
		LogsBloom:         bloom,
		Status:            1,
		EffectiveGasPrice: gasPrice,
		Type:              2,
		Synthetic:         true,
	}
}

func convertLogs(logs []mirror.Log, record *mirror.BlockResponse, index hexutil.Uint64) []*rpctypes.Log {
	out := make([]*rpctypes.Log, 0, len(logs))
	for _, lg := range logs {
		topics := make([]common.Hash, 0, len(lg.Topics))
		for _, t := range lg.Topics {
			topics = append(topics, common.HexToHash(t))
		}
		out = append(out, &rpctypes.Log{
			Address:          common.HexToAddress(lg.Address),
			BlockHash:        common.HexToHash(record.Hash),
			BlockNumber:      hexutil.Uint64(record.Number),
			Data:             hexutil.Bytes(common.FromHex(lg.Data)),
			LogIndex:         hexutil.Uint64(lg.Index),
			Topics:           topics,
			TransactionHash:  common.HexToHash(lg.TransactionHash),
			TransactionIndex: index,
		})
	}
	return out
}

// logRLP/receiptRLP mirror go-ethereum's own receipt RLP shape (spec
// §4.8 step 8: "[root|status, cumulativeGasUsed, logsBloom, logs]",
// type-prefixed for EIP-2718 typed transactions).
type logRLP struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

type receiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             ethtypes.Bloom
	Logs              []logRLP
}

// receiptDerivableList implements go-ethereum's DerivableList so
// `types.DeriveSha` can key each entry by the RLP encoding of its index
// exactly the way `rpc/backend/blocks.go` builds its own tries via
// `trie.NewStackTrie(nil)`.
type receiptDerivableList []*rpctypes.Receipt

func (l receiptDerivableList) Len() int { return len(l) }

func (l receiptDerivableList) EncodeIndex(i int, w *bytes.Buffer) {
	r := l[i]
	postStateOrStatus := []byte{byte(r.Status)}
	if r.Root != nil {
		postStateOrStatus = r.Root.Bytes()
	}
	logs := make([]logRLP, 0, len(r.Logs))
	for _, lg := range r.Logs {
		logs = append(logs, logRLP{Address: lg.Address, Topics: lg.Topics, Data: lg.Data})
	}
	payload := receiptRLP{
		PostStateOrStatus: postStateOrStatus,
		CumulativeGasUsed: uint64(r.CumulativeGasUsed),
		Bloom:             ethtypes.Bloom(r.LogsBloom),
		Logs:              logs,
	}
	raw, err := rlp.EncodeToBytes(&payload)
	if err != nil {
		return
	}
	if r.Type != 0 {
		w.WriteByte(byte(r.Type))
	}
	w.Write(raw)
}

func computeReceiptsRoot(receipts []*rpctypes.Receipt) common.Hash {
	if len(receipts) == 0 {
		return rpctypes.DefaultRootHash
	}
	return ethtypes.DeriveSha(receiptDerivableList(receipts), trie.NewStackTrie(nil))
}

func parentHashFrom(previousHash string) common.Hash {
	if len(previousHash) >= 66 {
		return common.HexToHash(previousHash[:66])
	}
	return common.HexToHash(previousHash)
}

func timestampToUnix(mirrorTimestamp string) hexutil.Uint64 {
	parts := strings.SplitN(mirrorTimestamp, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0
	}
	return hexutil.Uint64(secs)
}

func logsBloomHex(hexStr string) [256]byte {
	return bloomFromHex(hexStr)
}

func bloomFromHex(hexStr string) [256]byte {
	var bloom [256]byte
	raw := common.FromHex(hexStr)
	if len(raw) > 256 {
		raw = raw[len(raw)-256:]
	}
	copy(bloom[256-len(raw):], raw)
	return bloom
}

func parseHexOrZero(s string) *hexutil.Big {
	if s == "" {
		return bigZero()
	}
	if strings.HasPrefix(s, "0x") {
		b, err := hexutil.DecodeBig(s)
		if err != nil {
			return bigZero()
		}
		return (*hexutil.Big)(b)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return bigZero()
	}
	return (*hexutil.Big)(big.NewInt(n))
}
