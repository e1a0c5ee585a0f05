// Package transaction implements the Transaction Service (C11) of spec
// §4.9: the read paths (getTransactionByHash, getTransactionReceipt,
// getTransactionByBlock{Hash,Number}AndIndex, getTransactionCount) and
// the eth_sendRawTransaction submission pipeline. The read paths follow
// the "primary lookup, fall back to synthesized" shape of the teacher's
// `rpc/backend/tx_info.go`; the submission pipeline keeps that file's
// retry-with-backoff reconciliation loop but replaces CometBFT tx-indexer
// queries with mirror-node polling, since there is no local indexer here.
package transaction

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/consensus"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/hbar"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/precheck"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

var syntheticGasPrice = hexutil.Big(*big.NewInt(0xffffffff))

func zeroBig() *hexutil.Big { return (*hexutil.Big)(new(big.Int)) }

// BlockResolver is the subset of the Common Service (C7) the block+index
// lookups need: resolving a tag/number/hash to its timestamp range.
type BlockResolver interface {
	GetHistoricalBlockResponse(ctx context.Context, tagOrNumberOrHash string, returnLatest bool) (*mirror.BlockResponse, error)
}

// GasPriceSource supplies the current buffered network gas price (spec
// §4.9 step 3); satisfied directly by the Common Service.
type GasPriceSource interface {
	GasPrice(ctx context.Context) (*hexutil.Big, error)
}

// Locker is the sender-ordering lock (C2), satisfied by both
// lock.RedisLock and lock.LocalLock.
type Locker interface {
	AcquireLock(ctx context.Context, id string) (string, bool, error)
	ReleaseLock(ctx context.Context, id, sessionToken string) error
}

// Config bundles the HFS chunking and submission-policy knobs spec §6
// names.
type Config struct {
	FileAppendChunkSize      int
	FileAppendMaxChunks      int
	JumboTxEnabled           bool
	UseAsyncProcessing       bool
	MaxTxFeeThresholdPct     uint64 // spec §4.9: floor(gasPriceInTinybars * this)
	MirrorReconcileRetries   int
	MirrorReconcileBaseDelay time.Duration
	TinybarToWeibar          uint64
	PaymasterEnabled         bool
	PaymasterWhitelist       map[string]struct{}
}

// Service implements the read paths and the submission pipeline.
type Service struct {
	mirrorClient    *mirror.Client
	resolver        BlockResolver
	consensusClient *consensus.Client
	locker          Locker
	checker         *precheck.Checker
	gasPriceSource  GasPriceSource
	governor        *hbar.Governor
	pool            *Pool
	cfg             Config
	logger          log.Logger
}

func NewService(
	mirrorClient *mirror.Client,
	resolver BlockResolver,
	consensusClient *consensus.Client,
	locker Locker,
	checker *precheck.Checker,
	gasPriceSource GasPriceSource,
	governor *hbar.Governor,
	pool *Pool,
	cfg Config,
	logger log.Logger,
) *Service {
	return &Service{
		mirrorClient:    mirrorClient,
		resolver:        resolver,
		consensusClient: consensusClient,
		locker:          locker,
		checker:         checker,
		gasPriceSource:  gasPriceSource,
		governor:        governor,
		pool:            pool,
		cfg:             cfg,
		logger:          logger,
	}
}

// GetTransactionByHash implements eth_getTransactionByHash (spec §4.9).
func (s *Service) GetTransactionByHash(ctx context.Context, hash common.Hash) (*rpctypes.Transaction, error) {
	cr, err := s.mirrorClient.GetContractResult(ctx, hash.Hex())
	if err == nil && cr != nil && cr.Hash != "" {
		return contractResultToRPCTransaction(cr), nil
	}

	logsResp, err := s.mirrorClient.GetContractResultLogsByHash(ctx, hash.Hex())
	if err != nil || logsResp == nil || len(logsResp.Logs) == 0 {
		return nil, nil
	}
	return syntheticTransactionFromLog(logsResp.Logs[0]), nil
}

// GetTransactionReceipt implements eth_getTransactionReceipt (spec §4.9).
func (s *Service) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*rpctypes.Receipt, error) {
	cr, err := s.mirrorClient.GetContractResult(ctx, hash.Hex())
	if err == nil && cr != nil && cr.Hash != "" {
		logsResp, _ := s.mirrorClient.GetContractResultLogsByHash(ctx, hash.Hex())
		var logs []mirror.Log
		if logsResp != nil {
			logs = logsResp.Logs
		}
		return contractResultToReceipt(cr, logs), nil
	}

	logsResp, err := s.mirrorClient.GetContractResultLogsByHash(ctx, hash.Hex())
	if err != nil || logsResp == nil || len(logsResp.Logs) == 0 {
		return nil, nil
	}
	return syntheticReceiptFromLogs(logsResp.Logs), nil
}

// GetTransactionByBlockHashAndIndex implements
// eth_getTransactionByBlockHashAndIndex.
func (s *Service) GetTransactionByBlockHashAndIndex(ctx context.Context, hash common.Hash, idx hexutil.Uint) (*rpctypes.Transaction, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, hash.Hex(), true)
	if err != nil || record == nil {
		return nil, err
	}
	return s.transactionByRecordAndIndex(ctx, record, idx)
}

// GetTransactionByBlockNumberAndIndex implements
// eth_getTransactionByBlockNumberAndIndex.
func (s *Service) GetTransactionByBlockNumberAndIndex(ctx context.Context, tagOrNumber string, idx hexutil.Uint) (*rpctypes.Transaction, error) {
	record, err := s.resolver.GetHistoricalBlockResponse(ctx, tagOrNumber, true)
	if err != nil || record == nil {
		return nil, err
	}
	return s.transactionByRecordAndIndex(ctx, record, idx)
}

func (s *Service) transactionByRecordAndIndex(ctx context.Context, record *mirror.BlockResponse, idx hexutil.Uint) (*rpctypes.Transaction, error) {
	results, err := s.mirrorClient.GetContractResults(ctx, mirror.ContractResultsQuery{
		TimestampGTE:     record.Timestamp.From,
		TimestampLTE:     record.Timestamp.To,
		TransactionIndex: int64(idx),
		Limit:            1,
		Order:            "asc",
	})
	if err != nil {
		return nil, err
	}
	if len(results.Results) == 0 {
		return nil, nil
	}
	return contractResultToRPCTransaction(&results.Results[0]), nil
}

// GetTransactionCount implements eth_getTransactionCount.
func (s *Service) GetTransactionCount(ctx context.Context, address common.Address, blockTag string) (hexutil.Uint64, error) {
	if blockTag == "pending" {
		if n, ok := s.pool.HighestNonce(address); ok {
			return hexutil.Uint64(n + 1), nil
		}
	}
	account, err := s.mirrorClient.GetAccount(ctx, address.Hex())
	if err != nil {
		return 0, nil // unknown account: nonce 0, matches a never-used address
	}
	return hexutil.Uint64(account.EthereumNonce), nil
}

// SendRawTransaction implements the eth_sendRawTransaction pipeline (spec
// §4.9 steps 1-9, state machine S1-S6).
func (s *Service) SendRawTransaction(ctx context.Context, rawHex, ipAddress string) (common.Hash, error) {
	rawBytes, err := decodeRawTransaction(rawHex)
	if err != nil {
		return common.Hash{}, jsonrpcerr.InvalidParameter("rawTransaction", "not valid hex")
	}

	parsed, err := rpctypes.ParseRawTransaction(rawBytes) // S1 Parsed
	if err != nil {
		return common.Hash{}, jsonrpcerr.InvalidParameter("rawTransaction", err.Error())
	}

	s.pool.Add(&PendingEntry{
		Hash: parsed.Hash, From: parsed.From, Nonce: parsed.Nonce, To: parsed.To,
		Value: parsed.Value, Gas: parsed.GasLimit, GasPrice: parsed.GasPrice, Input: parsed.Data,
	})

	token, _, err := s.locker.AcquireLock(ctx, parsed.From.Hex()) // S2 LockAcquired
	if err != nil {
		s.pool.Remove(parsed.From, parsed.Nonce)
		return common.Hash{}, jsonrpcerr.InternalError(err)
	}

	release := func() {
		if token != "" {
			if err := s.locker.ReleaseLock(context.Background(), parsed.From.Hex(), token); err != nil {
				s.logger.Error("sender lock release failed, TTL will reclaim it", "from", parsed.From.Hex(), "error", err)
			}
		}
		s.pool.Remove(parsed.From, parsed.Nonce)
	}

	if err := s.checker.Run(ctx, parsed); err != nil { // S3 Validated
		release()
		return common.Hash{}, err
	}

	if s.cfg.UseAsyncProcessing {
		go func() {
			bg := context.Background()
			if _, err := s.submitAndReconcile(bg, parsed, ipAddress, release); err != nil {
				s.logger.Error("async sendRawTransaction submission failed", "hash", parsed.Hash.Hex(), "error", err)
			}
		}()
		return parsed.Hash, nil // S4 Submitted (terminal for async)
	}

	return s.submitAndReconcile(ctx, parsed, ipAddress, release)
}

// submitAndReconcile runs steps 6-9 of spec §4.9: submit to consensus
// (via HFS when the calldata is oversized), classify any submission
// error, then reconcile against the mirror node.
func (s *Service) submitAndReconcile(ctx context.Context, parsed *rpctypes.ParsedTransaction, ipAddress string, release func()) (common.Hash, error) {
	defer release()

	req := consensus.EthereumTransactionRequest{CallData: parsed.Data}

	if len(parsed.Data) > s.cfg.FileAppendChunkSize && !s.cfg.JumboTxEnabled {
		fileID, err := s.uploadCallDataToHFS(ctx, parsed)
		if err != nil {
			return common.Hash{}, jsonrpcerr.InternalError(fmt.Errorf("HFS upload: %w", err))
		}
		req.CallDataFileID = fileID
		req.CallData = nil
		defer func() {
			if err := s.consensusClient.DeleteFile(context.Background(), fileID); err != nil {
				s.logger.Error("HFS file delete failed, file will expire via its own TTL", "fileId", fileID, "error", err)
			}
		}()
	}

	gasPriceTinybars := weibarToTinybar(parsed.EffectiveGasPrice(nil), s.cfg.TinybarToWeibar)
	maxFee := new(big.Int).Mul(gasPriceTinybars, new(big.Int).SetUint64(s.cfg.MaxTxFeeThresholdPct))
	req.MaxTransactionFee = maxFee.Int64()
	if s.cfg.PaymasterEnabled && parsed.To != nil {
		if _, ok := s.cfg.PaymasterWhitelist[parsed.To.Hex()]; ok {
			req.MaxGasAllowance = maxFee.Int64()
		}
	}

	if s.governor != nil {
		if s.governor.ShouldLimit(ctx, hbar.ModeEstimate, "sendRawTransaction", "SubmitEthereumTransaction", parsed.From.Hex(), ipAddress, req.MaxTransactionFee) {
			return common.Hash{}, jsonrpcerr.HBarRateLimitExceeded()
		}
	}

	resp, submitErr := s.consensusClient.SubmitEthereumTransaction(ctx, req)

	if resp != nil {
		s.notifyGovernor(ctx, parsed.From.Hex(), ipAddress, "SubmitEthereumTransaction", resp.TransactionID)
	}

	if submitErr != nil {
		if rejected, propagate := s.classifySubmissionError(ctx, parsed, submitErr); propagate {
			return common.Hash{}, submitErr
		} else if rejected != nil {
			return common.Hash{}, rejected
		}
		// ConsensusPostExecution: the tx did execute, let the mirror node
		// have the final word (spec §7 category 5).
	}

	var txID string
	if resp != nil {
		txID = resp.TransactionID
	}
	return s.reconcile(ctx, txID, submitErr)
}

// notifyGovernor reports the observed cost of a completed chargeable
// operation (spec §4.4: "notified ... with the observed cost (from a
// transaction-record query)"). Failures are logged, not propagated: the
// operation itself already completed.
func (s *Service) notifyGovernor(ctx context.Context, senderAddress, ipAddress, methodName, transactionID string) {
	if s.governor == nil || transactionID == "" {
		return
	}
	record, err := s.consensusClient.GetTransactionRecordMetrics(ctx, transactionID)
	if err != nil {
		s.logger.Error("transaction record lookup for hbar governor failed", "transactionId", transactionID, "error", err)
		return
	}
	if err := s.governor.Notify(ctx, senderAddress, ipAddress, methodName, record.TransactionFee); err != nil {
		s.logger.Error("hbar governor notify failed", "transactionId", transactionID, "error", err)
	}
}

// classifySubmissionError implements spec §7's ConsensusReject /
// ConsensusPostExecution / Fatal split for errors returned by the
// consensus node before execution. rejected is a non-nil JSON-RPC error
// to surface immediately; propagate=true means the raw error should be
// returned unchanged (category 6, Fatal); both nil/false means the error
// describes a post-execution outcome and reconciliation should proceed.
func (s *Service) classifySubmissionError(ctx context.Context, parsed *rpctypes.ParsedTransaction, err error) (rejected error, propagate bool) {
	var statusErr *consensus.StatusError
	if !errors.As(err, &statusErr) {
		return nil, true
	}

	switch statusErr.Status {
	case "WRONG_NONCE":
		account, lookupErr := s.mirrorClient.GetAccount(ctx, parsed.From.Hex())
		if lookupErr != nil {
			return jsonrpcerr.TransactionRejected(statusErr.Status, "nonce mismatch"), false
		}
		if uint64(account.EthereumNonce) > parsed.Nonce {
			return jsonrpcerr.NonceTooLow(parsed.Nonce, uint64(account.EthereumNonce)), false
		}
		return jsonrpcerr.NonceTooHigh(parsed.Nonce, uint64(account.EthereumNonce)), false
	case "INSUFFICIENT_PAYER_BALANCE":
		return jsonrpcerr.Generic("INSUFFICIENT_PAYER_BALANCE", "operator account cannot cover the transaction fee"), false
	case "CONTRACT_REVERT_EXECUTED", "INVALID_ALIAS_KEY":
		// already executed: let mirror reconciliation surface the result.
		return nil, false
	default:
		return jsonrpcerr.TransactionRejected(statusErr.Status, statusErr.Message), false
	}
}

// reconcile implements spec §4.9 step 9: poll the mirror node for the
// submitted transaction id with bounded exponential backoff.
func (s *Service) reconcile(ctx context.Context, transactionID string, submissionErr error) (common.Hash, error) {
	if transactionID == "" {
		if submissionErr != nil {
			return common.Hash{}, submissionErr
		}
		return common.Hash{}, jsonrpcerr.InternalError(fmt.Errorf("consensus submission returned no transaction id"))
	}

	delay := s.cfg.MirrorReconcileBaseDelay
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MirrorReconcileRetries; attempt++ {
		cr, err := s.mirrorClient.GetContractResult(ctx, transactionID)
		if err == nil && cr != nil && cr.Hash != "" {
			return common.HexToHash(cr.Hash), nil
		}
		lastErr = err
		if attempt < s.cfg.MirrorReconcileRetries {
			select {
			case <-ctx.Done():
				return common.Hash{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	if submissionErr != nil {
		return common.Hash{}, submissionErr
	}
	return common.Hash{}, jsonrpcerr.InternalError(fmt.Errorf("contract result unavailable after %d retries: %w", s.cfg.MirrorReconcileRetries, lastErr))
}

// uploadCallDataToHFS implements the FileCreate -> FileAppend* -> FileInfo
// sequence of spec §4.9 step 6, guarded by the HBAR governor using an
// estimated fee derived from hex length and the current exchange rate.
func (s *Service) uploadCallDataToHFS(ctx context.Context, parsed *rpctypes.ParsedTransaction) (string, error) {
	chunks := splitIntoChunks(parsed.Data, s.cfg.FileAppendChunkSize)
	if len(chunks) == 0 {
		return "", fmt.Errorf("no call data to upload")
	}
	if len(chunks) > s.cfg.FileAppendMaxChunks {
		return "", fmt.Errorf("call data requires %d chunks, exceeds max %d", len(chunks), s.cfg.FileAppendMaxChunks)
	}

	if s.governor != nil {
		estimatedCost := s.estimateHFSFeeTinybars(ctx, len(parsed.Data))
		if s.governor.ShouldLimit(ctx, hbar.ModeEstimate, "sendRawTransaction", "FileCreate", parsed.From.Hex(), "", estimatedCost) {
			return "", jsonrpcerr.HBarRateLimitExceeded()
		}
	}

	createResp, err := s.consensusClient.ExecuteTransaction(ctx, "FileCreate", chunks[0])
	if err != nil {
		return "", err
	}
	fileID := createResp.EntityID

	if len(chunks) > 1 {
		if _, err := s.consensusClient.ExecuteAllTransaction(ctx, "FileAppend:"+fileID, chunks[1:]); err != nil {
			return "", err
		}
	}

	info, err := s.consensusClient.GetFileInfo(ctx, fileID)
	if err != nil {
		return "", err
	}
	if info.Size == 0 {
		return "", fmt.Errorf("HFS upload produced empty file %s", fileID)
	}
	return fileID, nil
}

const hfsFeeTinybarsPerByte = 1_000

// estimateHFSFeeTinybars derives a rough pre-submission fee estimate from
// the calldata's hex length and the current USD-per-HBAR exchange rate
// (spec §4.9 step 6), used only to gate the HBAR governor before the real
// fee is known.
func (s *Service) estimateHFSFeeTinybars(ctx context.Context, dataLen int) int64 {
	rate, err := s.mirrorClient.GetNetworkExchangeRate(ctx)
	if err != nil || rate.CurrentRate.CentEquivalent == 0 {
		return int64(dataLen*2) * hfsFeeTinybarsPerByte
	}
	return int64(dataLen*2) * hfsFeeTinybarsPerByte * rate.CurrentRate.HbarEquivalent / rate.CurrentRate.CentEquivalent
}

func splitIntoChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}
	return chunks
}

func weibarToTinybar(weibar *big.Int, tinybarToWeibar uint64) *big.Int {
	if weibar == nil || tinybarToWeibar == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(weibar, new(big.Int).SetUint64(tinybarToWeibar))
}

func decodeRawTransaction(rawHex string) ([]byte, error) {
	rawHex = strings.TrimPrefix(rawHex, "0x")
	return hex.DecodeString(rawHex)
}

func parseHexOrZero(s string) *hexutil.Big {
	if s == "" {
		return zeroBig()
	}
	if strings.HasPrefix(s, "0x") {
		b, err := hexutil.DecodeBig(s)
		if err != nil {
			return zeroBig()
		}
		return (*hexutil.Big)(b)
	}
	return zeroBig()
}

func contractResultToRPCTransaction(cr *mirror.ContractResult) *rpctypes.Transaction {
	blockHash := common.HexToHash(cr.BlockHash)
	blockNumber := hexutil.Uint64(cr.BlockNumber)
	index := hexutil.Uint64(cr.TransactionIndex)
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

func syntheticTransactionFromLog(l mirror.Log) *rpctypes.Transaction {
	blockHash := common.HexToHash(l.BlockHash)
	blockNumber := hexutil.Uint64(l.BlockNumber)
	index := hexutil.Uint64(l.TransactionIndex)
	addr := common.HexToAddress(l.Address)
	return &rpctypes.Transaction{
		BlockHash:        &blockHash,
		BlockNumber:      &blockNumber,
		From:             addr,
		To:               &addr,
		Gas:              21000,
		GasPrice:         &syntheticGasPrice,
		Hash:             common.HexToHash(l.TransactionHash),
		Input:            hexutil.Bytes{},
		Nonce:            0,
		TransactionIndex: &index,
		Value:            zeroBig(),
		Type:             2,
		V:                zeroBig(),
		R:                zeroBig(),
		S:                zeroBig(),
	}
}

func contractResultToReceipt(cr *mirror.ContractResult, logs []mirror.Log) *rpctypes.Receipt {
	converted := logsFromMirror(logs)
	bloom := rpctypes.LogsBloom(converted)
	if len(converted) == 0 {
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
		TransactionIndex:  hexutil.Uint64(cr.TransactionIndex),
		BlockHash:         common.HexToHash(cr.BlockHash),
		BlockNumber:       hexutil.Uint64(cr.BlockNumber),
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

func syntheticReceiptFromLogs(logs []mirror.Log) *rpctypes.Receipt {
	converted := logsFromMirror(logs)
	bloom := rpctypes.LogsBloom(converted)
	first := logs[0]
	addr := common.HexToAddress(first.Address)

	return &rpctypes.Receipt{
		TransactionHash:   common.HexToHash(first.TransactionHash),
		TransactionIndex:  hexutil.Uint64(first.TransactionIndex),
		BlockHash:         common.HexToHash(first.BlockHash),
		BlockNumber:       hexutil.Uint64(first.BlockNumber),
		From:              addr,
		To:                &addr,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              converted,
		LogsBloom:         bloom,
		Status:            1,
		EffectiveGasPrice: zeroBig(),
		Type:              2,
		Synthetic:         true,
	}
}

func logsFromMirror(raw []mirror.Log) []*rpctypes.Log {
	out := make([]*rpctypes.Log, 0, len(raw))
	for _, l := range raw {
		topics := make([]common.Hash, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, common.HexToHash(t))
		}
		out = append(out, &rpctypes.Log{
			Address:          common.HexToAddress(l.Address),
			BlockHash:        common.HexToHash(l.BlockHash),
			BlockNumber:      hexutil.Uint64(l.BlockNumber),
			Data:             hexutil.Bytes(common.FromHex(l.Data)),
			LogIndex:         hexutil.Uint64(l.Index),
			Topics:           topics,
			TransactionHash:  common.HexToHash(l.TransactionHash),
			TransactionIndex: hexutil.Uint64(l.TransactionIndex),
		})
	}
	return out
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
