// Package common implements the Common Service (C7) of spec §4.5:
// block-number/tag resolution, block-range validation for log queries,
// getLogs topic normalization and address fan-out, and gas price
// derivation. Every operation here follows the same
// "cache read-through, fall back to mirror, (value, error) return"
// shape as `rpc/backend/*.go` in the teacher repo.
package common

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/cache"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

const (
	blockNumberCacheKey   = "eth:blockNumber"
	blockNumberCacheTTL   = 4 * time.Second
	maxNestedTopicEntries = 100
	sevenDays             = 7 * 24 * time.Hour
)

// Service implements getLatestBlockNumber, getHistoricalBlockResponse,
// validateBlockRangeAndAddTimestampToParams, getLogs and gasPrice.
type Service struct {
	mirrorClient       *mirror.Client
	cache              cache.Cache
	logger             log.Logger
	maxBlockRange      int64
	logsBlockRangeLimit int64
	gasPriceBufferPct   int64
	tinybarToWeibar     uint64
}

func NewService(mirrorClient *mirror.Client, c cache.Cache, maxBlockRange, logsBlockRangeLimit, gasPriceBufferPct int64, tinybarToWeibar uint64, logger log.Logger) *Service {
	return &Service{
		mirrorClient:        mirrorClient,
		cache:               c,
		logger:              logger,
		maxBlockRange:       maxBlockRange,
		logsBlockRangeLimit: logsBlockRangeLimit,
		gasPriceBufferPct:   gasPriceBufferPct,
		tinybarToWeibar:     tinybarToWeibar,
	}
}

// GetLatestBlockNumber reads through a short-TTL cache entry, falling
// back to the mirror node's most recent block on a miss (spec §4.5).
func (s *Service) GetLatestBlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	if v, ok, err := s.cache.Get(ctx, blockNumberCacheKey, "eth_blockNumber"); err == nil && ok {
		if n, ok := asUint64(v); ok {
			return hexutil.Uint64(n), nil
		}
	}

	resp, err := s.mirrorClient.GetBlocks(ctx, "desc", 1)
	if err != nil {
		return 0, fmt.Errorf("fetch latest block: %w", err)
	}
	if len(resp.Blocks) == 0 {
		return 0, fmt.Errorf("mirror node returned no blocks")
	}

	number := uint64(resp.Blocks[0].Number)
	_ = s.cache.Set(ctx, blockNumberCacheKey, number, "eth_blockNumber", blockNumberCacheTTL)
	return hexutil.Uint64(number), nil
}

// GetHistoricalBlockResponse resolves a block tag/number/hash string to a
// mirror-node block record (spec §4.5).
func (s *Service) GetHistoricalBlockResponse(ctx context.Context, tagOrNumberOrHash string, returnLatest bool) (*mirror.BlockResponse, error) {
	isLatestLike := tagOrNumberOrHash == "latest" || tagOrNumberOrHash == "pending"
	if !returnLatest && isLatestLike {
		return nil, nil
	}

	switch tagOrNumberOrHash {
	case "earliest":
		return s.mirrorClient.GetBlock(ctx, "0")
	case "latest", "pending", "safe", "finalized":
		latest, err := s.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		return s.mirrorClient.GetBlock(ctx, strconv.FormatUint(uint64(latest), 10))
	}

	if strings.HasPrefix(tagOrNumberOrHash, "0x") && len(tagOrNumberOrHash) < 32 {
		n, err := hexutil.DecodeUint64(tagOrNumberOrHash)
		if err != nil {
			return nil, jsonrpcerr.InvalidParameter("block", "not a valid block number")
		}
		latest, err := s.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		if n > uint64(latest)+uint64(s.maxBlockRange) {
			return nil, nil
		}
		return s.mirrorClient.GetBlock(ctx, strconv.FormatUint(n, 10))
	}

	return s.mirrorClient.GetBlock(ctx, tagOrNumberOrHash)
}

// RangeParams is the filter parameter set augmented with resolved
// timestamp boundaries for the mirror-node query (spec §4.5).
type RangeParams struct {
	FromBlock        int64
	ToBlock          int64
	TimestampFrom    string
	TimestampTo      string
}

// ValidateBlockRangeAndAddTimestampToParams resolves the boundary blocks
// and enforces the range invariants of spec §4.5/§8. ok=false signals an
// empty result (not an error): the caller should return `[]`.
func (s *Service) ValidateBlockRangeAndAddTimestampToParams(ctx context.Context, fromBlock, toBlock, singleAddress string) (*RangeParams, bool, error) {
	if fromBlock == "" {
		latest, err := s.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, false, err
		}
		if toBlock != "" && toBlock != "latest" {
			if n, err := hexutil.DecodeUint64(toBlock); err == nil && n != uint64(latest) {
				return nil, false, jsonrpcerr.InvalidParameter("fromBlock", "required unless toBlock is latest")
			}
		}
	}

	fromResp, err := s.GetHistoricalBlockResponse(ctx, orDefault(fromBlock, "latest"), true)
	if err != nil {
		return nil, false, err
	}
	if fromResp == nil {
		return nil, false, nil
	}

	toResp, err := s.GetHistoricalBlockResponse(ctx, orDefault(toBlock, "latest"), true)
	if err != nil {
		return nil, false, err
	}
	if toResp == nil {
		return nil, false, nil
	}

	if fromResp.Number > toResp.Number {
		return nil, false, jsonrpcerr.InvalidBlockRange()
	}

	fromTime, err := parseTimestamp(fromResp.Timestamp.From)
	if err != nil {
		return nil, false, err
	}
	toTime, err := parseTimestamp(toResp.Timestamp.To)
	if err != nil {
		return nil, false, err
	}
	if toTime.Sub(fromTime) > sevenDays {
		return nil, false, jsonrpcerr.TimestampRangeTooLarge()
	}

	if singleAddress == "" && toResp.Number-fromResp.Number > s.logsBlockRangeLimit {
		return nil, false, jsonrpcerr.InvalidBlockRange()
	}

	return &RangeParams{
		FromBlock:     fromResp.Number,
		ToBlock:       toResp.Number,
		TimestampFrom: fromResp.Timestamp.From,
		TimestampTo:   toResp.Timestamp.To,
	}, true, nil
}

// asUint64 accepts either the raw Go value the local in-process cache
// hands back unchanged, or the float64 a JSON round-trip through the
// shared store produces.
func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case float64:
		return uint64(n), true
	default:
		return 0, false
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseTimestamp(s string) (time.Time, error) {
	parts := strings.SplitN(s, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid mirror node timestamp %q: %w", s, err)
	}
	var nanos int64
	if len(parts) == 2 {
		padded := parts[1]
		for len(padded) < 9 {
			padded += "0"
		}
		nanos, _ = strconv.ParseInt(padded[:9], 10, 64)
	}
	return time.Unix(secs, nanos).UTC(), nil
}

// NormalizeTopics strips leading zeros from each topic and each nested
// topic array entry, capping nested arrays at 100 entries (spec §4.5).
func NormalizeTopics(topics [][]string) ([][]string, error) {
	out := make([][]string, len(topics))
	for i, group := range topics {
		if len(group) > maxNestedTopicEntries {
			return nil, jsonrpcerr.InvalidParameter("topics", "nested topic array exceeds 100 entries")
		}
		normalized := make([]string, len(group))
		for j, t := range group {
			normalized[j] = stripLeadingZeros(t)
		}
		out[i] = normalized
	}
	return out, nil
}

func stripLeadingZeros(topic string) string {
	if !strings.HasPrefix(topic, "0x") {
		return topic
	}
	body := strings.TrimLeft(topic[2:], "0")
	if body == "" {
		body = "0"
	}
	return "0x" + body
}

// GetLogs implements the single-block and range branches of spec §4.5.
// A single address is queried directly; multiple addresses fan out in
// parallel via errgroup and are merged and sorted by (timestamp,
// logIndex).
func (s *Service) GetLogs(ctx context.Context, blockHash string, fromBlock, toBlock string, addresses []string, topics [][]string) ([]*rpctypes.Log, error) {
	normalizedTopics, err := NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}
	flatTopics := flattenTopics(normalizedTopics)

	var timestampGTE, timestampLTE string
	singleAddress := ""
	if len(addresses) == 1 {
		singleAddress = addresses[0]
	}

	if blockHash != "" {
		block, err := s.mirrorClient.GetBlock(ctx, blockHash)
		if err != nil {
			return nil, err
		}
		timestampGTE, timestampLTE = block.Timestamp.From, block.Timestamp.To
	} else {
		rng, ok, err := s.ValidateBlockRangeAndAddTimestampToParams(ctx, fromBlock, toBlock, singleAddress)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		timestampGTE, timestampLTE = rng.TimestampFrom, rng.TimestampTo
	}

	if len(addresses) <= 1 {
		var resp *mirror.LogsResponse
		var err error
		if singleAddress == "" {
			resp, err = s.mirrorClient.GetContractResultsLogs(ctx, timestampGTE, timestampLTE, 0)
		} else {
			resp, err = s.mirrorClient.GetContractsResultsLogsByAddress(ctx, singleAddress, timestampGTE, timestampLTE, flatTopics, 0)
		}
		if err != nil {
			return nil, err
		}
		return convertAndSortLogs(resp.Logs), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([][]mirror.Log, len(addresses))
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			resp, err := s.mirrorClient.GetContractsResultsLogsByAddress(gctx, addr, timestampGTE, timestampLTE, flatTopics, 0)
			if err != nil {
				return err
			}
			results[i] = resp.Logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []mirror.Log
	for _, r := range results {
		merged = append(merged, r...)
	}
	return convertAndSortLogs(merged), nil
}

func flattenTopics(topics [][]string) []string {
	var out []string
	for _, group := range topics {
		if len(group) > 0 {
			out = append(out, group[0])
		}
	}
	return out
}

func convertAndSortLogs(raw []mirror.Log) []*rpctypes.Log {
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
	rpctypes.SortLogs(out)
	return out
}

// GetBalance implements eth_getBalance: the mirror node's own historical
// timestamp query resolves a block-parameter-scoped balance directly,
// so this relay never replays transfers to reconstruct one.
func (s *Service) GetBalance(ctx context.Context, address common.Address, blockParam string) (*hexutil.Big, error) {
	timestamp := ""
	if blockParam != "" && blockParam != "latest" && blockParam != "pending" {
		record, err := s.GetHistoricalBlockResponse(ctx, blockParam, true)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return (*hexutil.Big)(new(big.Int)), nil
		}
		timestamp = record.Timestamp.To
	}

	account, err := s.mirrorClient.GetAccountAt(ctx, address.Hex(), timestamp)
	if err != nil {
		if mirror.IsNotFound(err) {
			return (*hexutil.Big)(new(big.Int)), nil
		}
		return nil, err
	}

	weibars := new(big.Int).Mul(big.NewInt(account.Balance.Balance), new(big.Int).SetUint64(s.tinybarToWeibar))
	return (*hexutil.Big)(weibars), nil
}

// GasPrice converts the mirror node's EthereumTransaction fee schedule
// row from tinybars to weibars and applies the configured percentage
// buffer (spec §4.5).
func (s *Service) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	resp, err := s.mirrorClient.GetNetworkFees(ctx)
	if err != nil {
		return nil, err
	}

	var tinybarFee int64
	for _, fee := range resp.Fees {
		if fee.TransactionType == "EthereumTransaction" {
			tinybarFee = fee.Gas
			break
		}
	}
	if tinybarFee == 0 && len(resp.Fees) > 0 {
		tinybarFee = resp.Fees[0].Gas
	}

	weibars := uint64(tinybarFee) * s.tinybarToWeibar
	if s.gasPriceBufferPct > 0 {
		weibars += weibars * uint64(s.gasPriceBufferPct) / 100
	}

	return (*hexutil.Big)(new(big.Int).SetUint64(weibars)), nil
}
