package config

import (
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	logger := log.NewNopLogger()
	cfg := Load(logger)

	require.Equal(t, "0x0", cfg.ChainID, "missing CHAIN_ID should default rather than panic")
	require.Equal(t, uint64(1000), cfg.EthGetLogsBlockRangeLimit)
	require.Equal(t, "LRU", cfg.IPRateLimitStore)
	require.False(t, cfg.RedisEnabled)
}

func TestLoadRedisEnabledWithoutURLDisables(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	logger := log.NewNopLogger()
	cfg := Load(logger)

	require.False(t, cfg.RedisEnabled, "REDIS_ENABLED without REDIS_URL must fail safe")
}

func TestSplitCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "0xabcdef12", want: []string{"0xabcdef12"}},
		{name: "multiple with spaces", in: "0x1, 0x2 ,0x3", want: []string{"0x1", "0x2", "0x3"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, splitCSV(tc.in))
		})
	}
}
