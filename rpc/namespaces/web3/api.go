// Package web3 implements the "web3" JSON-RPC namespace of spec §6.
package web3

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// API implements web3_clientVersion and web3_sha3.
type API struct {
	clientVersion string
}

func NewAPI(clientVersion string) *API {
	return &API{clientVersion: clientVersion}
}

// ClientVersion implements web3_clientVersion.
func (api *API) ClientVersion() string {
	return api.clientVersion
}

// Sha3 implements web3_sha3: keccak256 of the input.
func (api *API) Sha3(input hexutil.Bytes) hexutil.Bytes {
	return crypto.Keccak256(input)
}
