package web3

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestClientVersion(t *testing.T) {
	t.Parallel()
	api := NewAPI("hiero-json-rpc-relay/1.0.0")
	require.Equal(t, "hiero-json-rpc-relay/1.0.0", api.ClientVersion())
}

func TestSha3MatchesKeccak256(t *testing.T) {
	t.Parallel()
	api := NewAPI("test")
	input := []byte("hello")
	want := crypto.Keccak256(input)
	require.Equal(t, want, []byte(api.Sha3(input)))
}

func TestSha3EmptyInput(t *testing.T) {
	t.Parallel()
	api := NewAPI("test")
	want := crypto.Keccak256(nil)
	require.Equal(t, want, []byte(api.Sha3(nil)))
}
