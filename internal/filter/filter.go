// Package filter implements the eth_newFilter/eth_newBlockFilter/
// eth_uninstallFilter/eth_getFilterLogs/eth_getFilterChanges lifecycle
// named in spec §6's JSON-RPC surface. Filters are small enough that they
// get their own "filter:" keyspace directly against the shared store,
// the same way internal/lock talks to Redis directly rather than routing
// through internal/cache's own "cache:"-prefixed Get/Set (spec §9
// persisted-state key prefixes list `filter:` as a sibling of `cache:`,
// not a sub-key of it).
package filter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"cosmossdk.io/log"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

// Type distinguishes the two filter kinds the spec supports;
// eth_newPendingTransactionFilter is explicitly unsupported (spec §6).
type Type string

const (
	TypeLog      Type = "log"
	TypeNewBlock Type = "newblock"
)

// Criteria is the normalized eth_newFilter argument (spec §4.5 getLogs
// parameter shape, reused here for the filter's standing query).
type Criteria struct {
	FromBlock string
	ToBlock   string
	Address   []string
	Topics    [][]string
}

// Filter is the persisted filter record; LastBlock is the cursor
// eth_getFilterChanges advances on every poll.
type Filter struct {
	ID        string
	Type      Type
	Criteria  Criteria
	CreatedAt time.Time
	LastBlock uint64
}

// Store persists filters across relay instances (spec §9: filters
// survive in the shared store, not just in one process's memory).
type Store interface {
	Save(ctx context.Context, f *Filter) error
	Load(ctx context.Context, id string) (*Filter, bool, error)
	UpdateCursor(ctx context.Context, id string, lastBlock uint64) error
	Delete(ctx context.Context, id string) (bool, error)
}

const keyPrefix = "filter:"

// RedisStore is the shared-store backed implementation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, f *Filter) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+f.ID, raw, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Filter, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var f Filter
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false, err
	}
	return &f, true, nil
}

func (s *RedisStore) UpdateCursor(ctx context.Context, id string, lastBlock uint64) error {
	f, ok, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	f.LastBlock = lastBlock
	return s.Save(ctx, f)
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+id).Result()
	return n > 0, err
}

// LocalStore is the single-process fallback, mirroring lock.LocalLock's
// role when no shared store is configured.
type LocalStore struct {
	mu      sync.Mutex
	filters map[string]*Filter
}

func NewLocalStore() *LocalStore {
	return &LocalStore{filters: make(map[string]*Filter)}
}

func (s *LocalStore) Save(_ context.Context, f *Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.filters[f.ID] = &cp
	return nil
}

func (s *LocalStore) Load(_ context.Context, id string) (*Filter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[id]
	if !ok {
		return nil, false, nil
	}
	cp := *f
	return &cp, true, nil
}

func (s *LocalStore) UpdateCursor(_ context.Context, id string, lastBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.filters[id]; ok {
		f.LastBlock = lastBlock
	}
	return nil
}

func (s *LocalStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.filters[id]
	delete(s.filters, id)
	return ok, nil
}

// LogsSource is the subset of the Common Service (C7) GetFilterLogs and
// GetFilterChanges need to re-run a standing log query.
type LogsSource interface {
	GetLogs(ctx context.Context, blockHash string, fromBlock, toBlock string, addresses []string, topics [][]string) ([]*rpctypes.Log, error)
}

// BlockSource resolves block numbers to hashes for eth_newBlockFilter
// polling.
type BlockSource interface {
	GetLatestBlockNumber(ctx context.Context) (hexutil.Uint64, error)
}

// BlockHashResolver fetches a single block's hash by number, used to walk
// the range between a block filter's cursor and the current tip.
type BlockHashResolver interface {
	GetBlockByNumber(ctx context.Context, tagOrNumber string, showDetails bool) (*rpctypes.Block, error)
}

const maxBlockFilterBacklog = 100

// Service implements the filter lifecycle.
type Service struct {
	store   Store
	logs    LogsSource
	numbers BlockSource
	blocks  BlockHashResolver
	logger  log.Logger
}

func NewService(store Store, logs LogsSource, numbers BlockSource, blocks BlockHashResolver, logger log.Logger) *Service {
	return &Service{store: store, logs: logs, numbers: numbers, blocks: blocks, logger: logger}
}

func newFilterID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// NewFilter implements eth_newFilter.
func (s *Service) NewFilter(ctx context.Context, criteria Criteria) (string, error) {
	latest, err := s.numbers.GetLatestBlockNumber(ctx)
	if err != nil {
		return "", jsonrpcerr.InternalError(err)
	}
	f := &Filter{
		ID:        newFilterID(),
		Type:      TypeLog,
		Criteria:  criteria,
		CreatedAt: time.Now(),
		LastBlock: uint64(latest),
	}
	if err := s.store.Save(ctx, f); err != nil {
		return "", jsonrpcerr.InternalError(err)
	}
	return f.ID, nil
}

// NewBlockFilter implements eth_newBlockFilter.
func (s *Service) NewBlockFilter(ctx context.Context) (string, error) {
	latest, err := s.numbers.GetLatestBlockNumber(ctx)
	if err != nil {
		return "", jsonrpcerr.InternalError(err)
	}
	f := &Filter{
		ID:        newFilterID(),
		Type:      TypeNewBlock,
		CreatedAt: time.Now(),
		LastBlock: uint64(latest),
	}
	if err := s.store.Save(ctx, f); err != nil {
		return "", jsonrpcerr.InternalError(err)
	}
	return f.ID, nil
}

// UninstallFilter implements eth_uninstallFilter.
func (s *Service) UninstallFilter(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// GetFilterLogs implements eth_getFilterLogs: re-run the filter's
// standing criteria against its full range, ignoring the cursor.
func (s *Service) GetFilterLogs(ctx context.Context, id string) ([]*rpctypes.Log, error) {
	f, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, jsonrpcerr.InternalError(err)
	}
	if !ok {
		return nil, jsonrpcerr.Generic("FILTER_NOT_FOUND", "filter does not exist")
	}
	if f.Type != TypeLog {
		return nil, jsonrpcerr.Generic("FILTER_TYPE_MISMATCH", "eth_getFilterLogs only applies to log filters")
	}
	return s.logs.GetLogs(ctx, "", f.Criteria.FromBlock, f.Criteria.ToBlock, f.Criteria.Address, f.Criteria.Topics)
}

// GetFilterChanges implements eth_getFilterChanges: for a log filter,
// returns logs since the cursor and advances it to the current tip; for
// a block filter, returns the block hashes seen since the cursor.
func (s *Service) GetFilterChanges(ctx context.Context, id string) (any, error) {
	f, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, jsonrpcerr.InternalError(err)
	}
	if !ok {
		return nil, jsonrpcerr.Generic("FILTER_NOT_FOUND", "filter does not exist")
	}

	latest, err := s.numbers.GetLatestBlockNumber(ctx)
	if err != nil {
		return nil, jsonrpcerr.InternalError(err)
	}

	if uint64(latest) <= f.LastBlock {
		if f.Type == TypeLog {
			return []*rpctypes.Log{}, nil
		}
		return []gethcommon.Hash{}, nil
	}

	from := f.LastBlock + 1
	to := uint64(latest)
	if to-from+1 > maxBlockFilterBacklog {
		from = to - maxBlockFilterBacklog + 1
	}

	defer func() {
		if err := s.store.UpdateCursor(ctx, id, to); err != nil {
			s.logger.Error("filter cursor update failed", "filterId", id, "error", err)
		}
	}()

	if f.Type == TypeLog {
		fromStr := hexutil.EncodeUint64(from)
		toStr := hexutil.EncodeUint64(to)
		return s.logs.GetLogs(ctx, "", fromStr, toStr, f.Criteria.Address, f.Criteria.Topics)
	}

	hashes := make([]gethcommon.Hash, 0, to-from+1)
	for n := from; n <= to; n++ {
		block, err := s.blocks.GetBlockByNumber(ctx, hexutil.EncodeUint64(n), false)
		if err != nil {
			return nil, jsonrpcerr.InternalError(err)
		}
		if block == nil {
			continue
		}
		hashes = append(hashes, block.Hash)
	}
	return hashes, nil
}
