// Package config loads the relay's runtime configuration from the
// environment, following the "read typed value, log and fall back to a
// safe default on error" shape the teacher uses for its own app-options
// readers.
package config

import (
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/viper"
)

// Config is the full set of environment-driven knobs consumed by the relay
// core. Field names mirror the environment keys in spec.md §6.
type Config struct {
	ChainID        string // CHAIN_ID, hex
	HederaNetwork  string // HEDERA_NETWORK

	EthCallDefaultToConsensus bool     // ETH_CALL_DEFAULT_TO_CONSENSUS_NODE
	EthCallConsensusSelectors []string // ETH_CALL_CONSENSUS_SELECTORS

	EthGetLogsBlockRangeLimit uint64 // ETH_GET_LOGS_BLOCK_RANGE_LIMIT
	MaxBlockRange             uint64 // MAX_BLOCK_RANGE

	FileAppendChunkSize uint64 // FILE_APPEND_CHUNK_SIZE
	FileAppendMaxChunks uint64 // FILE_APPEND_MAX_CHUNKS

	MaxGasPerSec uint64 // MAX_GAS_PER_SEC
	JumboTxEnabled bool // JUMBO_TX_ENABLED

	PaymasterEnabled   bool     // PAYMASTER_ENABLED
	PaymasterWhitelist []string // PAYMASTER_WHITELIST

	UseAsyncTxProcessing bool // USE_ASYNC_TX_PROCESSING

	HBarRateLimitTiny  int64         // HBAR_RATE_LIMIT_TINYBAR
	HBarRateLimitBasic int64         // HBAR_RATE_LIMIT_BASIC
	HBarLimitDuration  time.Duration // HBAR_RATE_LIMIT_DURATION

	RedisEnabled bool   // REDIS_ENABLED
	RedisURL     string // REDIS_URL

	LockTTL               time.Duration // LOCK_TTL_MS
	LockAcquisitionTimeout time.Duration // LOCK_ACQUISITION_TIMEOUT_MS
	LockPollInterval       time.Duration

	IPRateLimitStore string // IP_RATE_LIMIT_STORE: "LRU" or "REDIS"

	SDKGRPCDeadline    time.Duration // SDK_GRPC_DEADLINE
	SDKMaxAttempts     int           // SDK_MAX_ATTEMPTS
	SDKRequestTimeout  time.Duration // SDK_REQUEST_TIMEOUT

	MaxTxFeeThreshold   uint64 // tinybar ceiling applied to submitted txs
	CallDataSizeLimit   int    // bytes
	TransactionSizeLimit int   // bytes
	GasPriceTinybarBuffer uint64
	GasPricePercentBuffer float64

	EthCallCacheTTL    time.Duration
	LocalLRUSize       int
	MirrorRetryCount   int
	MirrorRetryBackoff time.Duration

	MirrorReconcileAttempts int
	MirrorReconcileBackoff  time.Duration

	JSONRPCAddress   string
	JSONRPCWsAddress string
	MetricsAddress   string
}

const tinybarToWeibarCoefficient = 10_000_000_000 // 10^10

// TinybarToWeibar returns the fixed conversion coefficient (spec GLOSSARY).
func TinybarToWeibar() uint64 { return tinybarToWeibarCoefficient }

// Load reads the configuration from the process environment using viper's
// automatic env binding, logging and defaulting any value that is absent
// or malformed rather than failing startup — the same resilience posture
// the teacher's GetBlockGasLimit/GetMinGasPrices readers take.
func Load(logger log.Logger) *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		ChainID:                   v.GetString("chain_id"),
		HederaNetwork:             v.GetString("hedera_network"),
		EthCallDefaultToConsensus: v.GetBool("eth_call_default_to_consensus_node"),
		EthCallConsensusSelectors: splitCSV(v.GetString("eth_call_consensus_selectors")),
		EthGetLogsBlockRangeLimit: v.GetUint64("eth_get_logs_block_range_limit"),
		MaxBlockRange:             v.GetUint64("max_block_range"),
		FileAppendChunkSize:       v.GetUint64("file_append_chunk_size"),
		FileAppendMaxChunks:       v.GetUint64("file_append_max_chunks"),
		MaxGasPerSec:              v.GetUint64("max_gas_per_sec"),
		JumboTxEnabled:            v.GetBool("jumbo_tx_enabled"),
		PaymasterEnabled:          v.GetBool("paymaster_enabled"),
		PaymasterWhitelist:        splitCSV(v.GetString("paymaster_whitelist")),
		UseAsyncTxProcessing:      v.GetBool("use_async_tx_processing"),
		HBarRateLimitTiny:         v.GetInt64("hbar_rate_limit_tinybar"),
		HBarRateLimitBasic:        v.GetInt64("hbar_rate_limit_basic"),
		HBarLimitDuration:         v.GetDuration("hbar_rate_limit_duration"),
		RedisEnabled:              v.GetBool("redis_enabled"),
		RedisURL:                  v.GetString("redis_url"),
		LockTTL:                   v.GetDuration("lock_ttl_ms"),
		LockAcquisitionTimeout:    v.GetDuration("lock_acquisition_timeout_ms"),
		LockPollInterval:          v.GetDuration("lock_poll_interval_ms"),
		IPRateLimitStore:          strings.ToUpper(v.GetString("ip_rate_limit_store")),
		SDKGRPCDeadline:           resolveDeadline(v, logger),
		SDKMaxAttempts:            v.GetInt("sdk_max_attempts"),
		SDKRequestTimeout:         v.GetDuration("sdk_request_timeout"),
		MaxTxFeeThreshold:         v.GetUint64("max_tx_fee_threshold"),
		CallDataSizeLimit:         v.GetInt("call_data_size_limit"),
		TransactionSizeLimit:      v.GetInt("transaction_size_limit"),
		GasPriceTinybarBuffer:     v.GetUint64("gas_price_tinybar_buffer"),
		GasPricePercentBuffer:     v.GetFloat64("gas_price_percent_buffer"),
		EthCallCacheTTL:           v.GetDuration("eth_call_cache_ttl"),
		LocalLRUSize:              v.GetInt("local_lru_size"),
		MirrorRetryCount:          v.GetInt("mirror_retry_count"),
		MirrorRetryBackoff:        v.GetDuration("mirror_retry_backoff"),
		MirrorReconcileAttempts:   v.GetInt("mirror_reconcile_attempts"),
		MirrorReconcileBackoff:    v.GetDuration("mirror_reconcile_backoff"),
		JSONRPCAddress:            v.GetString("jsonrpc_address"),
		JSONRPCWsAddress:          v.GetString("jsonrpc_ws_address"),
		MetricsAddress:            v.GetString("metrics_address"),
	}

	if cfg.ChainID == "" {
		logger.Error("CHAIN_ID not set, defaulting to 0x0 — eth_chainId and precheck will reject everything")
		cfg.ChainID = "0x0"
	}
	if cfg.RedisEnabled && cfg.RedisURL == "" {
		logger.Error("REDIS_ENABLED is true but REDIS_URL is empty, disabling shared cache tier")
		cfg.RedisEnabled = false
	}

	return cfg
}

// resolveDeadline implements the SDK_GRPC_DEADLINE / CONSENSUS_MAX_EXECUTION_TIME
// / default fallback chain from spec §4.10.
func resolveDeadline(v *viper.Viper, logger log.Logger) time.Duration {
	if v.IsSet("sdk_grpc_deadline") {
		return v.GetDuration("sdk_grpc_deadline")
	}
	if v.IsSet("consensus_max_execution_time") {
		logger.Warn("CONSENSUS_MAX_EXECUTION_TIME is deprecated, use SDK_GRPC_DEADLINE")
		return v.GetDuration("consensus_max_execution_time")
	}
	return 10 * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("eth_get_logs_block_range_limit", 1000)
	v.SetDefault("max_block_range", 5)
	v.SetDefault("file_append_chunk_size", 5120)
	v.SetDefault("file_append_max_chunks", 20)
	v.SetDefault("max_gas_per_sec", 15_000_000)
	v.SetDefault("hbar_rate_limit_duration", 24*time.Hour)
	v.SetDefault("lock_ttl_ms", 5*time.Second)
	v.SetDefault("lock_acquisition_timeout_ms", 10*time.Second)
	v.SetDefault("lock_poll_interval_ms", 50*time.Millisecond)
	v.SetDefault("ip_rate_limit_store", "LRU")
	v.SetDefault("sdk_max_attempts", 10)
	v.SetDefault("sdk_request_timeout", 30*time.Second)
	v.SetDefault("max_tx_fee_threshold", 5_000_000_000)
	v.SetDefault("call_data_size_limit", 128*1024)
	v.SetDefault("transaction_size_limit", 256*1024)
	v.SetDefault("gas_price_tinybar_buffer", 10)
	v.SetDefault("gas_price_percent_buffer", 0.1)
	v.SetDefault("eth_call_cache_ttl", 1500*time.Millisecond)
	v.SetDefault("local_lru_size", 2000)
	v.SetDefault("mirror_retry_count", 3)
	v.SetDefault("mirror_retry_backoff", 250*time.Millisecond)
	v.SetDefault("mirror_reconcile_attempts", 10)
	v.SetDefault("mirror_reconcile_backoff", 500*time.Millisecond)
	v.SetDefault("jsonrpc_address", "0.0.0.0:7546")
	v.SetDefault("jsonrpc_ws_address", "0.0.0.0:8546")
	v.SetDefault("metrics_address", "0.0.0.0:9090")
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
