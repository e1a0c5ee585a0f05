package filter

import (
	"context"
	"math/big"
	"testing"

	"cosmossdk.io/log"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

type fakeLogs struct {
	calls []string
	logs  []*rpctypes.Log
}

func (f *fakeLogs) GetLogs(_ context.Context, _ string, fromBlock, toBlock string, _ []string, _ [][]string) ([]*rpctypes.Log, error) {
	f.calls = append(f.calls, fromBlock+".."+toBlock)
	return f.logs, nil
}

type fakeNumbers struct{ n hexutil.Uint64 }

func (f *fakeNumbers) GetLatestBlockNumber(context.Context) (hexutil.Uint64, error) { return f.n, nil }

type fakeBlocks struct{}

func (f *fakeBlocks) GetBlockByNumber(_ context.Context, tagOrNumber string, _ bool) (*rpctypes.Block, error) {
	n, err := hexutil.DecodeUint64(tagOrNumber)
	if err != nil {
		return nil, err
	}
	return &rpctypes.Block{Number: hexutil.Uint64(n), Hash: gethcommon.BigToHash(new(big.Int).SetUint64(n))}, nil
}

func newTestService(store Store, numbers *fakeNumbers) (*Service, *fakeLogs) {
	logs := &fakeLogs{}
	return NewService(store, logs, numbers, &fakeBlocks{}, log.NewNopLogger()), logs
}

func TestNewFilterAndGetFilterLogs(t *testing.T) {
	t.Parallel()
	svc, logs := newTestService(NewLocalStore(), &fakeNumbers{n: 10})
	logs.logs = []*rpctypes.Log{{}}

	id, err := svc.NewFilter(context.Background(), Criteria{FromBlock: "0x1", ToBlock: "0xa"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := svc.GetFilterLogs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestGetFilterChangesAdvancesCursor(t *testing.T) {
	t.Parallel()
	numbers := &fakeNumbers{n: 10}
	svc, logs := newTestService(NewLocalStore(), numbers)

	id, err := svc.NewFilter(context.Background(), Criteria{})
	require.NoError(t, err)

	numbers.n = 12
	changes, err := svc.GetFilterChanges(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Contains(t, logs.calls, "0xb..0xc")

	// a second poll with no new blocks returns an empty slice.
	second, err := svc.GetFilterChanges(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []*rpctypes.Log{}, second)
}

func TestNewBlockFilterReturnsHashesSinceCursor(t *testing.T) {
	t.Parallel()
	numbers := &fakeNumbers{n: 5}
	svc, _ := newTestService(NewLocalStore(), numbers)

	id, err := svc.NewBlockFilter(context.Background())
	require.NoError(t, err)

	numbers.n = 7
	changes, err := svc.GetFilterChanges(context.Background(), id)
	require.NoError(t, err)
	hashes, ok := changes.([]gethcommon.Hash)
	require.True(t, ok)
	require.Len(t, hashes, 2)
}

func TestUninstallFilterRemovesIt(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(NewLocalStore(), &fakeNumbers{n: 1})

	id, err := svc.NewFilter(context.Background(), Criteria{})
	require.NoError(t, err)

	ok, err := svc.UninstallFilter(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.GetFilterLogs(context.Background(), id)
	require.Error(t, err)
}
