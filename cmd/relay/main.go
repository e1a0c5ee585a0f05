// Command relay is the JSON-RPC relay process: it wires the spec's
// components (cache, lock, rate limit, HBAR governor, mirror client,
// consensus client, block/transaction/contract/common/filter services)
// into the rpc namespaces and starts serving.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/config"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/block"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/cache"
	rpccommon "github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/common"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/consensus"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/contract"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/filter"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/hbar"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/lock"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/precheck"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/ratelimit"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/transaction"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/metrics"
	jrpcrpc "github.com/hiero-ledger/hiero-json-rpc-relay-sub001/rpc"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/rpc/namespaces/eth"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/server"
)

func main() {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Hedera JSON-RPC relay",
		RunE:  runStart,
	}
	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "start the JSON-RPC relay",
		RunE:  runStart,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// precheckGasPriceAdapter adapts the Common Service's buffered
// hexutil.Big gas price to precheck.GasPriceSource's plain *big.Int.
type precheckGasPriceAdapter struct{ common *rpccommon.Service }

func (a precheckGasPriceAdapter) GasPrice(ctx context.Context) (*big.Int, error) {
	v, err := a.common.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return (*big.Int)(v), nil
}

func runStart(cmd *cobra.Command, _ []string) error {
	logger := log.NewLogger(os.Stdout)
	cfg := config.Load(logger)

	sharedCache, err := buildCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	mirrorClient := mirror.NewClient(os.Getenv("MIRROR_NODE_URL"), 10*time.Second, uint64(cfg.MirrorRetryCount), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consensusClient, err := consensus.Dial(
		ctx,
		os.Getenv("CONSENSUS_NODE_URL"),
		consensus.Policy{
			Deadline:       cfg.SDKGRPCDeadline,
			MaxAttempts:    uint64(cfg.SDKMaxAttempts),
			RequestTimeout: cfg.SDKRequestTimeout,
		},
		consensus.Operator{
			AccountID:  os.Getenv("OPERATOR_ID"),
			PrivateKey: os.Getenv("OPERATOR_KEY"),
		},
		consensus.UnconfiguredTransport{},
		logger,
	)
	if err != nil {
		return fmt.Errorf("dial consensus node: %w", err)
	}
	defer consensusClient.Close()

	locker := buildLocker(cfg, logger)

	commonSvc := rpccommon.NewService(
		mirrorClient, sharedCache,
		int64(cfg.MaxBlockRange), int64(cfg.EthGetLogsBlockRangeLimit),
		int64(cfg.GasPricePercentBuffer), config.TinybarToWeibar(),
		logger,
	)

	blockSvc := block.NewService(mirrorClient, commonSvc, block.Config{
		TxCountMaxBlockRange: int(cfg.MaxBlockRange),
	}, logger)

	entityResolver := contract.NewMirrorEntityResolver(mirrorClient)

	consensusSelectors := make(map[string]struct{}, len(cfg.EthCallConsensusSelectors))
	for _, sel := range cfg.EthCallConsensusSelectors {
		consensusSelectors[sel] = struct{}{}
	}

	governor := hbar.New(
		hbar.NewMemoryPlanStore(hbar.Tier{Name: hbar.BasicTierName, DailyCap: cfg.HBarRateLimitBasic}),
		sharedCache,
		logger,
	)

	contractSvc := contract.NewService(mirrorClient, consensusClient, entityResolver, sharedCache, governor, contract.Config{
		DefaultToConsensus:       cfg.EthCallDefaultToConsensus,
		ConsensusSelectors:       consensusSelectors,
		NetworkGasCeiling:        15_000_000,
		CallCacheTTL:             cfg.EthCallCacheTTL,
		HollowAccountCreationGas: 587_000,
		ContractCallAverageGas:   500_000,
		DefaultGasEstimate:       400_000,
	}, logger)

	chainIDNum, err := hexutil.DecodeBig(cfg.ChainID)
	if err != nil {
		return fmt.Errorf("invalid CHAIN_ID: %w", err)
	}

	checker := precheck.NewChecker(mirrorClient, precheckGasPriceAdapter{common: commonSvc}, precheck.Limits{
		CallDataSize:          cfg.CallDataSizeLimit,
		TransactionSize:       cfg.TransactionSizeLimit,
		MaxTxFeeThreshold:     cfg.MaxTxFeeThreshold,
		ChainID:               chainIDNum.Uint64(),
		TinybarToWeibar:       config.TinybarToWeibar(),
		GasPriceTinybarBuffer: cfg.GasPriceTinybarBuffer,
		PaymasterEnabled:      cfg.PaymasterEnabled,
		PaymasterWhitelist:    toSet(cfg.PaymasterWhitelist),
	})

	txSvc := transaction.NewService(
		mirrorClient, commonSvc, consensusClient, locker, checker, commonSvc, governor, transaction.NewPool(),
		transaction.Config{
			FileAppendChunkSize:      int(cfg.FileAppendChunkSize),
			FileAppendMaxChunks:      int(cfg.FileAppendMaxChunks),
			JumboTxEnabled:           cfg.JumboTxEnabled,
			UseAsyncProcessing:       cfg.UseAsyncTxProcessing,
			MaxTxFeeThresholdPct:     cfg.MaxTxFeeThreshold,
			MirrorReconcileRetries:   cfg.MirrorReconcileAttempts,
			MirrorReconcileBaseDelay: cfg.MirrorReconcileBackoff,
			TinybarToWeibar:          config.TinybarToWeibar(),
			PaymasterEnabled:         cfg.PaymasterEnabled,
			PaymasterWhitelist:       toSet(cfg.PaymasterWhitelist),
		},
		logger,
	)

	filterSvc := filter.NewService(buildFilterStore(cfg), commonSvc, commonSvc, blockSvc, logger)

	limiter := ratelimit.New(sharedCache, time.Minute, nil, 200, []string{"eth_getFilterChanges"}, logger)

	ethAPI := eth.NewAPI(blockSvc, txSvc, contractSvc, commonSvc, filterSvc, limiter, (*hexutil.Big)(chainIDNum), logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddress != "" {
		g.Go(func() error { return metrics.StartGethMetricServer(gctx, logger, cfg.MetricsAddress) })
	}

	if _, _, err := server.StartJSONRPC(gctx, logger, g, cfg, jrpcrpc.GetAPIs(cfg, ethAPI)); err != nil {
		return fmt.Errorf("start json-rpc server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return g.Wait()
}

func buildCache(cfg *config.Config, logger log.Logger) (cache.Cache, error) {
	local := cache.NewLocalCache(cfg.LocalLRUSize, cfg.EthCallCacheTTL)
	if !cfg.RedisEnabled {
		return local, nil
	}
	redisCache, err := cache.NewRedisCache(cfg.RedisURL, logger)
	if err != nil {
		return nil, err
	}
	return cache.NewFallbackCache(redisCache, local, logger), nil
}

func buildLocker(cfg *config.Config, logger log.Logger) transaction.Locker {
	if !cfg.RedisEnabled {
		return lock.NewLocalLock(cfg.LockTTL, cfg.LockAcquisitionTimeout)
	}
	client := redisClientFromURL(cfg.RedisURL)
	return lock.NewRedisLock(client, cfg.LockTTL, cfg.LockAcquisitionTimeout, cfg.LockPollInterval, logger)
}

func buildFilterStore(cfg *config.Config) filter.Store {
	if !cfg.RedisEnabled {
		return filter.NewLocalStore()
	}
	return filter.NewRedisStore(redisClientFromURL(cfg.RedisURL), 0)
}

func redisClientFromURL(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// buildCache has already parsed this same URL through
		// cache.NewRedisCache and failed startup if it was invalid, so a
		// parse failure is not expected here.
		panic(fmt.Sprintf("invalid REDIS_URL: %v", err))
	}
	return redis.NewClient(opts)
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
