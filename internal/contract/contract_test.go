package contract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/cache"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/consensus"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/hbar"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
)

// fakeConsensusTransport satisfies consensus.NodeTransport for tests that
// route eth_call to the consensus node.
type fakeConsensusTransport struct {
	queryResult []byte
	queryErr    error
}

func (f *fakeConsensusTransport) SubmitEthereumTransaction(context.Context, consensus.EthereumTransactionRequest) (*consensus.TransactionResponse, error) {
	return nil, nil
}

func (f *fakeConsensusTransport) ExecuteTransaction(context.Context, string, []byte) (*consensus.TransactionResponse, error) {
	return nil, nil
}

func (f *fakeConsensusTransport) ExecuteQuery(context.Context, string, []byte) ([]byte, error) {
	return f.queryResult, f.queryErr
}

func (f *fakeConsensusTransport) DeleteFile(context.Context, string) error { return nil }

func (f *fakeConsensusTransport) GetTransactionRecord(context.Context, string) (*consensus.TransactionRecord, error) {
	return &consensus.TransactionRecord{}, nil
}

func (f *fakeConsensusTransport) GetFileInfo(context.Context, string) (*consensus.FileInfo, error) {
	return nil, nil
}

func newTestConsensusClient(t *testing.T, transport consensus.NodeTransport) *consensus.Client {
	t.Helper()
	c, err := consensus.Dial(context.Background(), "passthrough:///test", consensus.Policy{MaxAttempts: 1}, consensus.Operator{AccountID: "0.0.2"}, transport, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type fakeEntities struct {
	entityType EntityType
	bytecode   []byte
	createdAt  time.Time
	err        error
}

func (f *fakeEntities) EntityTypeByEvmAddress(context.Context, string) (EntityType, []byte, time.Time, error) {
	return f.entityType, f.bytecode, f.createdAt, f.err
}

func newTestService(t *testing.T, handler http.HandlerFunc, entities EntityResolver, cfg Config) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mc := mirror.NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	c := cache.NewLocalCache(100, time.Minute)
	if cfg.NetworkGasCeiling == 0 {
		cfg.NetworkGasCeiling = 15_000_000
	}
	return NewService(mc, nil, entities, c, nil, cfg, log.NewNopLogger()), srv
}

func TestCallRoutesToMirrorByDefault(t *testing.T) {
	t.Parallel()
	called := false
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, "/api/v1/contracts/call", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"0x0102"}`))
	}, &fakeEntities{}, Config{})

	to := common.HexToAddress("0xabc")
	out, err := s.Call(context.Background(), CallRequest{To: &to})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, hexutil.Bytes{0x01, 0x02}, out)
}

func TestCallNormalizesContractRevertError(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"_status":"CONTRACT_REVERT_EXECUTED","message":"revert","data":"0x08c379a0"}`))
	}, &fakeEntities{}, Config{})

	to := common.HexToAddress("0xabc")
	_, err := s.Call(context.Background(), CallRequest{To: &to})
	require.Error(t, err)
	require.Contains(t, err.Error(), "execution reverted")
}

func TestCallReturnsEmptyBytesOnFailInvalid(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"_status":"FAIL_INVALID"}`))
	}, &fakeEntities{}, Config{})

	to := common.HexToAddress("0xabc")
	out, err := s.Call(context.Background(), CallRequest{To: &to})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestCallRoutesToConsensusWhenSelectorMatches(t *testing.T) {
	t.Parallel()
	transport := &fakeConsensusTransport{queryResult: []byte{0x01, 0x02}}
	consensusClient := newTestConsensusClient(t, transport)

	srv := httptest.NewServer(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not call the mirror node when routed to consensus")
	})
	t.Cleanup(srv.Close)
	mc := mirror.NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	c := cache.NewLocalCache(100, time.Minute)

	s := NewService(mc, consensusClient, &fakeEntities{}, c, nil, Config{DefaultToConsensus: true, NetworkGasCeiling: 15_000_000}, log.NewNopLogger())

	to := common.HexToAddress("0xabc")
	out, err := s.Call(context.Background(), CallRequest{To: &to})
	require.NoError(t, err)
	require.Equal(t, hexutil.Bytes{0x01, 0x02}, out)
}

func TestCallConsensusBlockedByHBarGovernorDailyCap(t *testing.T) {
	t.Parallel()
	transport := &fakeConsensusTransport{queryResult: []byte{0x01}}
	consensusClient := newTestConsensusClient(t, transport)

	srv := httptest.NewServer(nil)
	t.Cleanup(srv.Close)
	mc := mirror.NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	c := cache.NewLocalCache(100, time.Minute)

	governor := hbar.New(hbar.NewMemoryPlanStore(hbar.Tier{Name: hbar.BasicTierName, DailyCap: 1}), cache.NewLocalCache(100, time.Minute), log.NewNopLogger())

	s := NewService(mc, consensusClient, &fakeEntities{}, c, governor, Config{DefaultToConsensus: true, NetworkGasCeiling: 15_000_000, ContractCallAverageGas: 500_000}, log.NewNopLogger())

	to := common.HexToAddress("0xabc")
	from := common.HexToAddress("0xdef")
	_, err := s.Call(context.Background(), CallRequest{From: &from, To: &to})
	require.Error(t, err)
}

func TestEstimateGasFallsBackToStaticSimpleTransfer(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, &fakeEntities{}, Config{})

	to := common.HexToAddress("0xabc")
	gas, err := s.EstimateGas(context.Background(), CallRequest{To: &to}, true)
	require.NoError(t, err)
	require.EqualValues(t, 21000, gas)
}

func TestEstimateGasFallsBackToHollowAccountCreationForNewRecipient(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, &fakeEntities{}, Config{HollowAccountCreationGas: 587000})

	to := common.HexToAddress("0xabc")
	gas, err := s.EstimateGas(context.Background(), CallRequest{To: &to}, false)
	require.NoError(t, err)
	require.EqualValues(t, 587000, gas)
}

func TestGetCodeReturnsInvalidOpcodeForHTSPrecompile(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not call the mirror node for the HTS precompile address")
	}, &fakeEntities{}, Config{})

	out, err := s.GetCode(context.Background(), htsPrecompileAddress, mirror.BlockResponse{Number: 10})
	require.NoError(t, err)
	require.Equal(t, invalidEVMInstruction, out)
}

func TestGetCodeReturnsEmptyForPlainAccount(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, nil, &fakeEntities{entityType: EntityAccount}, Config{})

	out, err := s.GetCode(context.Background(), common.HexToAddress("0xdef"), mirror.BlockResponse{Number: 10})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestGetCodeReturnsEmptyWhenEntityCreatedAfterRequestedBlock(t *testing.T) {
	t.Parallel()
	bytecode := []byte{0x60, 0x00, 0x60, 0x01}
	s, _ := newTestService(t, nil, &fakeEntities{entityType: EntityContract, bytecode: bytecode, createdAt: time.Unix(200, 0)}, Config{})

	block := mirror.BlockResponse{Number: 10}
	block.Timestamp.To = "100.0"
	out, err := s.GetCode(context.Background(), common.HexToAddress("0xdef"), block)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestGetCodeCachesContractBytecodeWithNoRestrictedOpcodes(t *testing.T) {
	t.Parallel()
	bytecode := []byte{0x60, 0x00, 0x60, 0x01}
	s, _ := newTestService(t, nil, &fakeEntities{entityType: EntityContract, bytecode: bytecode, createdAt: time.Unix(50, 0)}, Config{})

	addr := common.HexToAddress("0xdef")
	block := mirror.BlockResponse{Number: 10}
	block.Timestamp.To = "100.0"
	out, err := s.GetCode(context.Background(), addr, block)
	require.NoError(t, err)
	require.Equal(t, hexutil.Bytes(bytecode), out)

	v, ok, err := s.cache.Get(context.Background(), fmt.Sprintf("getCode.%s.%d", addr.Hex(), block.Number), "eth_getCode")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, hexutil.Encode(bytecode), v)
}

func TestGetCodeDoesNotCacheBytecodeWithSelfDestruct(t *testing.T) {
	t.Parallel()
	bytecode := []byte{0x60, 0x00, 0xff} // ... SELFDESTRUCT
	s, _ := newTestService(t, nil, &fakeEntities{entityType: EntityContract, bytecode: bytecode}, Config{})

	addr := common.HexToAddress("0xdef")
	block := mirror.BlockResponse{Number: 10}
	out, err := s.GetCode(context.Background(), addr, block)
	require.NoError(t, err)
	require.Equal(t, hexutil.Bytes(bytecode), out)

	_, ok, err := s.cache.Get(context.Background(), fmt.Sprintf("getCode.%s.%d", addr.Hex(), block.Number), "eth_getCode")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetCodeReturnsRedirectProxyForToken(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, nil, &fakeEntities{entityType: EntityToken}, Config{})

	out, err := s.GetCode(context.Background(), common.HexToAddress("0x1234"), mirror.BlockResponse{Number: 10})
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestGetStorageAtReturnsZeroHashWhenSlotAbsent(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":[]}`))
	}, &fakeEntities{}, Config{})

	block := mirror.BlockResponse{}
	out, err := s.GetStorageAt(context.Background(), common.HexToAddress("0xabc"), common.HexToHash("0x1"), block)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, out)
}

func TestGetStorageAtReturnsSlotValue(t *testing.T) {
	t.Parallel()
	want := common.HexToHash("0xdeadbeef")
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":[{"value":"` + want.Hex() + `"}]}`))
	}, &fakeEntities{}, Config{})

	block := mirror.BlockResponse{}
	out, err := s.GetStorageAt(context.Background(), common.HexToAddress("0xabc"), common.HexToHash("0x1"), block)
	require.NoError(t, err)
	require.Equal(t, want, out)
}

func newTestMirrorEntityResolver(t *testing.T, handler http.HandlerFunc) *MirrorEntityResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mc := mirror.NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	return NewMirrorEntityResolver(mc)
}

func TestMirrorEntityResolverResolvesContractFirst(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0xabc")
	r := newTestMirrorEntityResolver(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/v1/contracts/"+addr.Hex(), req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"contract_id":"0.0.1","runtime_bytecode":"0x6001","created_timestamp":"100.0"}`))
	})

	entityType, bytecode, _, err := r.EntityTypeByEvmAddress(context.Background(), addr.Hex())
	require.NoError(t, err)
	require.Equal(t, EntityContract, entityType)
	require.Equal(t, []byte{0x60, 0x01}, bytecode)
}

func TestMirrorEntityResolverFallsBackToAccount(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0xdef")
	r := newTestMirrorEntityResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case req.URL.Path == "/api/v1/contracts/"+addr.Hex():
			w.WriteHeader(http.StatusNotFound)
		case req.URL.Path == "/api/v1/accounts/"+addr.Hex():
			_, _ = w.Write([]byte(`{"account":"0.0.2","created_timestamp":"200.0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	entityType, bytecode, _, err := r.EntityTypeByEvmAddress(context.Background(), addr.Hex())
	require.NoError(t, err)
	require.Equal(t, EntityAccount, entityType)
	require.Nil(t, bytecode)
}

func TestMirrorEntityResolverReturnsEmptyForUnknownAddress(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0xfff")
	r := newTestMirrorEntityResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	entityType, bytecode, _, err := r.EntityTypeByEvmAddress(context.Background(), addr.Hex())
	require.NoError(t, err)
	require.Empty(t, entityType)
	require.Nil(t, bytecode)
}

func TestMirrorEntityResolverRecipientExists(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0xabc")
	r := newTestMirrorEntityResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"account":"0.0.1"}`))
	})

	exists, err := r.RecipientExists(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMirrorEntityResolverRecipientDoesNotExist(t *testing.T) {
	t.Parallel()
	addr := common.HexToAddress("0xabc")
	r := newTestMirrorEntityResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := r.RecipientExists(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestServiceRecipientExistsDefaultsTrueWithoutCapability(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, &fakeEntities{}, Config{})

	exists, err := s.RecipientExists(context.Background(), common.HexToAddress("0xabc"))
	require.NoError(t, err)
	require.True(t, exists)
}
