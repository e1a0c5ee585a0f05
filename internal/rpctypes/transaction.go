package rpctypes

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// ParsedTransaction is the tagged variant over legacy/EIP-2930/EIP-1559/
// EIP-7702 transactions described in spec §3. Rather than re-implementing
// go-ethereum's transaction envelope, this wraps `ethtypes.Transaction`
// (itself already a tagged-variant-over-TxData type, see spec §9's design
// note "Runtime polymorphism on transaction variants") and derives the
// Ethereum-shaped fields the relay core needs from it.
type ParsedTransaction struct {
	Type     uint8
	ChainID  *big.Int
	Nonce    uint64
	From     common.Address // always ECDSA-recovered, never client-asserted
	To       *common.Address
	Value    *big.Int
	GasLimit uint64

	GasPrice             *big.Int // legacy/2930
	MaxFeePerGas         *big.Int // 1559/7702
	MaxPriorityFeePerGas *big.Int // 1559/7702

	Data          []byte
	AccessList    ethtypes.AccessList
	AuthorizationList []ethtypes.SetCodeAuthorization

	Hash common.Hash
	Raw  []byte

	inner *ethtypes.Transaction
}

// ParseRawTransaction decodes the RLP-encoded hex-wrapped raw transaction
// bytes a client submits to `eth_sendRawTransaction`, and recovers the
// sender address from its signature. The transaction hash is derivable
// from the raw bytes before any submission (spec §3 invariant).
func ParseRawTransaction(raw []byte) (*ParsedTransaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		// legacy transactions may arrive as a bare RLP list rather than a
		// typed envelope; retry with the raw RLP decoder.
		if err2 := rlp.DecodeBytes(raw, tx); err2 != nil {
			return nil, fmt.Errorf("invalid raw transaction: %w", err)
		}
	}

	signer := ethtypes.LatestSignerForChainID(tx.ChainId())
	from, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("unable to recover sender: %w", err)
	}

	p := &ParsedTransaction{
		Type:                 tx.Type(),
		ChainID:              tx.ChainId(),
		Nonce:                tx.Nonce(),
		From:                 from,
		To:                   tx.To(),
		Value:                tx.Value(),
		GasLimit:             tx.Gas(),
		GasPrice:             tx.GasPrice(),
		MaxFeePerGas:         tx.GasFeeCap(),
		MaxPriorityFeePerGas: tx.GasTipCap(),
		Data:                 tx.Data(),
		AccessList:           tx.AccessList(),
		Hash:                 tx.Hash(),
		Raw:                  raw,
		inner:                tx,
	}
	if al := tx.SetCodeAuthorizations(); al != nil {
		p.AuthorizationList = al
	}
	return p, nil
}

// IntrinsicGas computes 21000 + 4*(zero bytes) + 16*(non-zero bytes), the
// fixed formula spec §4.6 precheck #4 and §4.7 estimateGas fallback both
// reference.
func IntrinsicGas(data []byte, isContractCreation bool) uint64 {
	gas := uint64(21000)
	var zero, nonZero uint64
	for _, b := range data {
		if b == 0 {
			zero++
		} else {
			nonZero++
		}
	}
	gas += zero * 4
	gas += nonZero * 16
	_ = isContractCreation // contract-creation surcharge is out of scope: no EVM execution
	return gas
}

// IsLegacyPreEIP155 reports whether this is a legacy pre-EIP-155 transaction
// (chainId == 0 and v in {27, 28}), the exemption precheck #5 names.
func (p *ParsedTransaction) IsLegacyPreEIP155() bool {
	if p.Type != ethtypes.LegacyTxType {
		return false
	}
	v, _, _ := p.inner.RawSignatureValues()
	if v == nil {
		return false
	}
	return (p.ChainID == nil || p.ChainID.Sign() == 0) && (v.Cmp(big.NewInt(27)) == 0 || v.Cmp(big.NewInt(28)) == 0)
}

// EffectiveGasPrice returns the gas price a legacy/2930 tx pays outright,
// or for 1559/7702 the price implied by a given base fee:
// min(tip, feeCap-baseFee) + baseFee.
func (p *ParsedTransaction) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if p.Type == ethtypes.LegacyTxType || p.Type == ethtypes.AccessListTxType {
		return p.GasPrice
	}
	if baseFee == nil {
		return p.MaxFeePerGas
	}
	price := new(big.Int).Add(p.MaxPriorityFeePerGas, baseFee)
	if price.Cmp(p.MaxFeePerGas) > 0 {
		return new(big.Int).Set(p.MaxFeePerGas)
	}
	return price
}

// SerializedSize returns the byte length of the RLP-encoded envelope, used
// by the transactionSize precheck.
func (p *ParsedTransaction) SerializedSize() int {
	return len(p.Raw)
}
