package rpc

import (
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/config"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/rpc/namespaces/eth"
)

func TestGetAPIsRegistersAllNamespaces(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{ChainID: "0x127"}
	ethAPI := eth.NewAPI(nil, nil, nil, nil, nil, nil, nil, log.NewNopLogger())

	apis := GetAPIs(cfg, ethAPI)

	require.Len(t, apis, 3)
	namespaces := make([]string, 0, len(apis))
	for _, api := range apis {
		namespaces = append(namespaces, api.Namespace)
		require.True(t, api.Public)
	}
	require.ElementsMatch(t, []string{"eth", "net", "web3"}, namespaces)
}
