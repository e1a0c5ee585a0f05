package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/cache"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mc := mirror.NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	c := cache.NewLocalCache(100, time.Minute)
	return NewService(mc, c, 100, 1000, 10, 10_000_000_000, log.NewNopLogger()), srv
}

func TestGetLatestBlockNumberCachesResult(t *testing.T) {
	t.Parallel()
	calls := 0
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blocks":[{"number":42}]}`))
	})

	n1, err := s.GetLatestBlockNumber(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, n1)

	n2, err := s.GetLatestBlockNumber(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, n2)
	require.Equal(t, 1, calls, "second call must hit the cache, not the mirror node")
}

func TestNormalizeTopicsStripsLeadingZeros(t *testing.T) {
	t.Parallel()
	out, err := NormalizeTopics([][]string{{"0x000abc", "0x00"}})
	require.NoError(t, err)
	require.Equal(t, []string{"0xabc", "0x0"}, out[0])
}

func TestNormalizeTopicsRejectsOversizedNestedArray(t *testing.T) {
	t.Parallel()
	group := make([]string, 101)
	_, err := NormalizeTopics([][]string{group})
	require.Error(t, err)
}

func TestValidateBlockRangeRejectsInvertedRange(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/blocks/10":
			_, _ = w.Write([]byte(`{"number":10,"timestamp":{"from":"100.0","to":"110.0"}}`))
		case "/api/v1/blocks/5":
			_, _ = w.Write([]byte(`{"number":5,"timestamp":{"from":"50.0","to":"60.0"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	_, _, err := s.ValidateBlockRangeAndAddTimestampToParams(context.Background(), "10", "5", "")
	require.Error(t, err)
}

func TestValidateBlockRangeAcceptsInOrderRange(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/blocks/5":
			_, _ = w.Write([]byte(`{"number":5,"timestamp":{"from":"50.0","to":"60.0"}}`))
		case "/api/v1/blocks/10":
			_, _ = w.Write([]byte(`{"number":10,"timestamp":{"from":"100.0","to":"110.0"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rng, ok, err := s.ValidateBlockRangeAndAddTimestampToParams(context.Background(), "5", "10", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), rng.FromBlock)
	require.Equal(t, int64(10), rng.ToBlock)
}

func TestGasPriceConvertsTinybarToWeibarWithBuffer(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fees":[{"gas":1,"transaction_type":"EthereumTransaction"}]}`))
	})

	price, err := s.GasPrice(context.Background())
	require.NoError(t, err)
	// 1 tinybar * 1e10 weibar/tinybar = 1e10, +10% buffer = 1.1e10
	require.Equal(t, "0x28fa6ae00", price.String())
}

func TestGetBalanceConvertsTinybarToWeibar(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0x00000000000000000000000000000000000abc")
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/accounts/" + addr.Hex():
			_, _ = w.Write([]byte(`{"account":"0.0.1234","balance":{"balance":5}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	balance, err := s.GetBalance(context.Background(), addr, "latest")
	require.NoError(t, err)
	require.Equal(t, "0xba43b7400", balance.String())
}

func TestGetBalanceReturnsZeroForUnknownAccount(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0x00000000000000000000000000000000000def")
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	balance, err := s.GetBalance(context.Background(), addr, "latest")
	require.NoError(t, err)
	require.Equal(t, "0x0", balance.String())
}

func TestGetBalanceAtHistoricalBlockUsesTimestamp(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0x00000000000000000000000000000000000abc")
	var gotQuery string
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/blocks/5":
			_, _ = w.Write([]byte(`{"number":5,"timestamp":{"from":"50.0","to":"60.0"}}`))
		case "/api/v1/accounts/" + addr.Hex():
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"account":"0.0.1234","balance":{"balance":10}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	balance, err := s.GetBalance(context.Background(), addr, "5")
	require.NoError(t, err)
	require.Equal(t, "0x174876e800", balance.String())
	require.Contains(t, gotQuery, "60.0")
}
