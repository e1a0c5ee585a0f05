// Package eth implements the "eth" JSON-RPC namespace of spec §6,
// wiring the Block/Transaction/Contract/Common/Filter services into the
// method-per-JSON-RPC-call shape go-ethereum's rpc.Server expects
// (exported methods map to JSON-RPC names by lowercasing the first
// letter, the same convention `server/json_rpc.go` already relies on
// via ethrpc.NewServer/RegisterName).
package eth

import (
	"context"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/block"
	rpccommon "github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/common"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/contract"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/filter"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/ratelimit"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/transaction"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/metrics"
)

// API implements the eth_* surface of spec §6.
type API struct {
	blocks  *block.Service
	txs     *transaction.Service
	calls   *contract.Service
	common  *rpccommon.Service
	filters *filter.Service
	limiter *ratelimit.Limiter
	chainID *hexutil.Big
	logger  log.Logger
}

func NewAPI(
	blocks *block.Service,
	txs *transaction.Service,
	calls *contract.Service,
	commonSvc *rpccommon.Service,
	filters *filter.Service,
	limiter *ratelimit.Limiter,
	chainID *hexutil.Big,
	logger log.Logger,
) *API {
	return &API{
		blocks:  blocks,
		txs:     txs,
		calls:   calls,
		common:  commonSvc,
		filters: filters,
		limiter: limiter,
		chainID: chainID,
		logger:  logger,
	}
}

// ipFromContext recovers the caller's address for rate limiting; a
// missing peer info (e.g. an in-process call) is never rate limited.
func ipFromContext(ctx context.Context) string {
	if info := ethrpc.PeerInfoFromContext(ctx); info.RemoteAddr != "" {
		return info.RemoteAddr
	}
	return ""
}

func (api *API) checkRateLimit(ctx context.Context, method string) error {
	metrics.RequestsTotal.Inc(1)
	ip := ipFromContext(ctx)
	if ip == "" {
		return nil
	}
	if api.limiter.ShouldLimit(ctx, ip, method) {
		metrics.RequestsRateLimited.Inc(1)
		return jsonrpcerr.IPRateLimitExceeded(method)
	}
	return nil
}

// ChainId implements eth_chainId.
func (api *API) ChainId() (*hexutil.Big, error) {
	return api.chainID, nil
}

// BlockNumber implements eth_blockNumber.
func (api *API) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	if err := api.checkRateLimit(ctx, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return api.common.GetLatestBlockNumber(ctx)
}

// GetBlockByHash implements eth_getBlockByHash.
func (api *API) GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (*rpctypes.Block, error) {
	if err := api.checkRateLimit(ctx, "eth_getBlockByHash"); err != nil {
		return nil, err
	}
	return api.blocks.GetBlockByHash(ctx, hash, fullTx)
}

// GetBlockByNumber implements eth_getBlockByNumber.
func (api *API) GetBlockByNumber(ctx context.Context, blockNrOrTag string, fullTx bool) (*rpctypes.Block, error) {
	if err := api.checkRateLimit(ctx, "eth_getBlockByNumber"); err != nil {
		return nil, err
	}
	return api.blocks.GetBlockByNumber(ctx, blockNrOrTag, fullTx)
}

// GetBlockReceipts implements eth_getBlockReceipts.
func (api *API) GetBlockReceipts(ctx context.Context, blockNrOrHash string) ([]*rpctypes.Receipt, error) {
	if err := api.checkRateLimit(ctx, "eth_getBlockReceipts"); err != nil {
		return nil, err
	}
	return api.blocks.GetBlockReceipts(ctx, blockNrOrHash)
}

// GetBlockTransactionCountByHash implements
// eth_getBlockTransactionCountByHash.
func (api *API) GetBlockTransactionCountByHash(ctx context.Context, hash common.Hash) (*hexutil.Uint, error) {
	if err := api.checkRateLimit(ctx, "eth_getBlockTransactionCountByHash"); err != nil {
		return nil, err
	}
	return api.blocks.GetBlockTransactionCount(ctx, hash.Hex())
}

// GetBlockTransactionCountByNumber implements
// eth_getBlockTransactionCountByNumber.
func (api *API) GetBlockTransactionCountByNumber(ctx context.Context, blockNrOrTag string) (*hexutil.Uint, error) {
	if err := api.checkRateLimit(ctx, "eth_getBlockTransactionCountByNumber"); err != nil {
		return nil, err
	}
	return api.blocks.GetBlockTransactionCount(ctx, blockNrOrTag)
}

// GetUncleCountByBlockHash and GetUncleCountByBlockNumber implement the
// uncle queries spec §6 fixes at zero (Hedera has no uncles).
func (api *API) GetUncleCountByBlockHash(common.Hash) hexutil.Uint {
	return 0
}

func (api *API) GetUncleCountByBlockNumber(string) hexutil.Uint {
	return 0
}

func (api *API) GetUncleByBlockHashAndIndex(common.Hash, hexutil.Uint) *rpctypes.Block {
	return nil
}

func (api *API) GetUncleByBlockNumberAndIndex(string, hexutil.Uint) *rpctypes.Block {
	return nil
}

// GetTransactionByHash implements eth_getTransactionByHash.
func (api *API) GetTransactionByHash(ctx context.Context, hash common.Hash) (*rpctypes.Transaction, error) {
	if err := api.checkRateLimit(ctx, "eth_getTransactionByHash"); err != nil {
		return nil, err
	}
	return api.txs.GetTransactionByHash(ctx, hash)
}

// GetTransactionByBlockHashAndIndex implements
// eth_getTransactionByBlockHashAndIndex.
func (api *API) GetTransactionByBlockHashAndIndex(ctx context.Context, hash common.Hash, index hexutil.Uint) (*rpctypes.Transaction, error) {
	if err := api.checkRateLimit(ctx, "eth_getTransactionByBlockHashAndIndex"); err != nil {
		return nil, err
	}
	return api.txs.GetTransactionByBlockHashAndIndex(ctx, hash, index)
}

// GetTransactionByBlockNumberAndIndex implements
// eth_getTransactionByBlockNumberAndIndex.
func (api *API) GetTransactionByBlockNumberAndIndex(ctx context.Context, blockNrOrTag string, index hexutil.Uint) (*rpctypes.Transaction, error) {
	if err := api.checkRateLimit(ctx, "eth_getTransactionByBlockNumberAndIndex"); err != nil {
		return nil, err
	}
	return api.txs.GetTransactionByBlockNumberAndIndex(ctx, blockNrOrTag, index)
}

// GetTransactionReceipt implements eth_getTransactionReceipt.
func (api *API) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*rpctypes.Receipt, error) {
	if err := api.checkRateLimit(ctx, "eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	return api.txs.GetTransactionReceipt(ctx, hash)
}

// GetTransactionCount implements eth_getTransactionCount.
func (api *API) GetTransactionCount(ctx context.Context, address common.Address, blockNrOrTag string) (hexutil.Uint64, error) {
	if err := api.checkRateLimit(ctx, "eth_getTransactionCount"); err != nil {
		return 0, err
	}
	return api.txs.GetTransactionCount(ctx, address, blockNrOrTag)
}

// GetBalance implements eth_getBalance.
func (api *API) GetBalance(ctx context.Context, address common.Address, blockNrOrTag string) (*hexutil.Big, error) {
	if err := api.checkRateLimit(ctx, "eth_getBalance"); err != nil {
		return nil, err
	}
	return api.common.GetBalance(ctx, address, blockNrOrTag)
}

// GetCode implements eth_getCode.
func (api *API) GetCode(ctx context.Context, address common.Address, blockNrOrTag string) (hexutil.Bytes, error) {
	if err := api.checkRateLimit(ctx, "eth_getCode"); err != nil {
		return nil, err
	}
	record, err := api.common.GetHistoricalBlockResponse(ctx, blockNrOrTag, true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return hexutil.Bytes{}, nil
	}
	return api.calls.GetCode(ctx, address, *record)
}

// GetStorageAt implements eth_getStorageAt.
func (api *API) GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, blockNrOrTag string) (common.Hash, error) {
	if err := api.checkRateLimit(ctx, "eth_getStorageAt"); err != nil {
		return common.Hash{}, err
	}
	record, err := api.common.GetHistoricalBlockResponse(ctx, blockNrOrTag, true)
	if err != nil {
		return common.Hash{}, err
	}
	if record == nil {
		return common.Hash{}, nil
	}
	return api.calls.GetStorageAt(ctx, address, slot, *record)
}

// CallArgs is the eth_call/eth_estimateGas call object (spec §4.7:
// "populate missing fields... prefer input over data").
type CallArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
}

func (a CallArgs) toRequest(blockParam string) contract.CallRequest {
	req := contract.CallRequest{From: a.From, To: a.To, Value: a.Value, Block: blockParam}
	if a.Gas != nil {
		req.Gas = uint64(*a.Gas)
	}
	if a.Input != nil {
		req.Data = *a.Input
	} else if a.Data != nil {
		req.Data = *a.Data
	}
	return req
}

// Call implements eth_call.
func (api *API) Call(ctx context.Context, args CallArgs, blockNrOrTag string) (hexutil.Bytes, error) {
	if err := api.checkRateLimit(ctx, "eth_call"); err != nil {
		return nil, err
	}
	return api.calls.Call(ctx, args.toRequest(blockNrOrTag))
}

// EstimateGas implements eth_estimateGas.
func (api *API) EstimateGas(ctx context.Context, args CallArgs, blockNrOrTag *string) (hexutil.Uint64, error) {
	if err := api.checkRateLimit(ctx, "eth_estimateGas"); err != nil {
		return 0, err
	}
	block := ""
	if blockNrOrTag != nil {
		block = *blockNrOrTag
	}
	recipientExists := true
	if args.To != nil {
		exists, err := api.calls.RecipientExists(ctx, *args.To)
		if err != nil {
			return 0, err
		}
		recipientExists = exists
	}
	return api.calls.EstimateGas(ctx, args.toRequest(block), recipientExists)
}

// GasPrice implements eth_gasPrice.
func (api *API) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	if err := api.checkRateLimit(ctx, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return api.common.GasPrice(ctx)
}

// GetLogsArgs is the eth_getLogs filter-object parameter.
type GetLogsArgs struct {
	BlockHash *common.Hash `json:"blockHash"`
	FromBlock string       `json:"fromBlock"`
	ToBlock   string       `json:"toBlock"`
	Address   interface{}  `json:"address"`
	Topics    [][]string   `json:"topics"`
}

func normalizeAddresses(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GetLogs implements eth_getLogs.
func (api *API) GetLogs(ctx context.Context, args GetLogsArgs) ([]*rpctypes.Log, error) {
	if err := api.checkRateLimit(ctx, "eth_getLogs"); err != nil {
		return nil, err
	}
	blockHash := ""
	if args.BlockHash != nil {
		blockHash = args.BlockHash.Hex()
	}
	logs, err := api.common.GetLogs(ctx, blockHash, args.FromBlock, args.ToBlock, normalizeAddresses(args.Address), args.Topics)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		return []*rpctypes.Log{}, nil
	}
	return logs, nil
}

// NewFilter implements eth_newFilter.
func (api *API) NewFilter(ctx context.Context, args GetLogsArgs) (string, error) {
	if err := api.checkRateLimit(ctx, "eth_newFilter"); err != nil {
		return "", err
	}
	return api.filters.NewFilter(ctx, filter.Criteria{
		FromBlock: args.FromBlock,
		ToBlock:   args.ToBlock,
		Address:   normalizeAddresses(args.Address),
		Topics:    args.Topics,
	})
}

// NewBlockFilter implements eth_newBlockFilter.
func (api *API) NewBlockFilter(ctx context.Context) (string, error) {
	if err := api.checkRateLimit(ctx, "eth_newBlockFilter"); err != nil {
		return "", err
	}
	return api.filters.NewBlockFilter(ctx)
}

// NewPendingTransactionFilter implements
// eth_newPendingTransactionFilter; unsupported (spec §6).
func (api *API) NewPendingTransactionFilter(ctx context.Context) (string, error) {
	return "", jsonrpcerr.Generic("UNSUPPORTED_METHOD", "eth_newPendingTransactionFilter is not supported")
}

// UninstallFilter implements eth_uninstallFilter.
func (api *API) UninstallFilter(ctx context.Context, id string) (bool, error) {
	if err := api.checkRateLimit(ctx, "eth_uninstallFilter"); err != nil {
		return false, err
	}
	return api.filters.UninstallFilter(ctx, id)
}

// GetFilterLogs implements eth_getFilterLogs.
func (api *API) GetFilterLogs(ctx context.Context, id string) ([]*rpctypes.Log, error) {
	if err := api.checkRateLimit(ctx, "eth_getFilterLogs"); err != nil {
		return nil, err
	}
	return api.filters.GetFilterLogs(ctx, id)
}

// GetFilterChanges implements eth_getFilterChanges.
func (api *API) GetFilterChanges(ctx context.Context, id string) (interface{}, error) {
	if err := api.checkRateLimit(ctx, "eth_getFilterChanges"); err != nil {
		return nil, err
	}
	return api.filters.GetFilterChanges(ctx, id)
}

// SendRawTransaction implements eth_sendRawTransaction.
func (api *API) SendRawTransaction(ctx context.Context, rawTx hexutil.Bytes) (common.Hash, error) {
	if err := api.checkRateLimit(ctx, "eth_sendRawTransaction"); err != nil {
		return common.Hash{}, err
	}
	return api.txs.SendRawTransaction(ctx, hexutil.Encode(rawTx), ipFromContext(ctx))
}

// Accounts implements eth_accounts: always empty, this relay never
// holds unlocked keys (spec §6).
func (api *API) Accounts() []common.Address {
	return []common.Address{}
}

// SendTransaction implements eth_sendTransaction; unsupported, the relay
// never signs on a caller's behalf (spec §6).
func (api *API) SendTransaction(context.Context, CallArgs) (common.Hash, error) {
	return common.Hash{}, jsonrpcerr.Generic("UNSUPPORTED_METHOD", "eth_sendTransaction is not supported, submit a signed transaction via eth_sendRawTransaction")
}
